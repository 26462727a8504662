package account

import (
	"context"
	"fmt"
)

// Type identifies the synchronization backend an account is bound to. The
// binding is chosen when the account is created, stored in the settings
// file, and never changes afterwards.
type Type string

const (
	OnMyMac      Type = "onmymac"
	Feedly       Type = "feedly"
	Feedbin      Type = "feedbin"
	FeedWrangler Type = "feedwrangler"
	NewsBlur     Type = "newsblur"
)

// ParseType validates a backend kind read from disk or user input.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case OnMyMac, Feedly, Feedbin, FeedWrangler, NewsBlur:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

// Delegate is the capability seam between an account and its backend.
// Adding a backend means adding one implementation of this interface,
// never a new account variant.
//
// RefreshAll must not block: it hands work off and returns, and completion
// is observable only through the shared progress object reaching zero
// outstanding tasks.
type Delegate interface {
	RefreshAll(ctx context.Context, a *Account)
	SupportsSubFolders() bool
	Progress() *RefreshProgress
}
