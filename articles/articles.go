package articles

import "time"

// Status keys understood by the store. Callers pass them to MarkArticles
// together with the flag value to set.
const (
	StatusRead    = "read"
	StatusStarred = "starred"
)

// Article is one stored item of a feed.
type Article struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feedId"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}
