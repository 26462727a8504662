// Package opml imports and exports account subscription trees as OPML.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"feedstand/account"

	log "github.com/sirupsen/logrus"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a single outline element: a feed when it carries an xmlUrl,
// otherwise a folder of nested outlines.
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

func (o Outline) name() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Text
}

// ImportInto parses an OPML document and inserts its subscriptions through
// the account's normal containment rules: existing feeds are reused and
// duplicates within a container collapse. When the account's backend does
// not support sub-folders, deeper nesting flattens into the first folder
// level.
func ImportInto(a *account.Account, r io.Reader) error {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode opml: %w", err)
	}

	importOutlines(a, doc.Body.Outlines, nil)
	return nil
}

func importOutlines(a *account.Account, outlines []Outline, folder *account.Folder) {
	for _, o := range outlines {
		if o.XMLURL != "" {
			feed := a.CreateFeed(o.name(), "", o.XMLURL)
			if feed == nil {
				continue
			}
			if !a.AddFeed(feed, folder) {
				log.WithFields(log.Fields{
					"account": a.ID,
					"feed":    o.XMLURL,
				}).Warn("Could not add imported feed")
			}
			continue
		}

		if len(o.Outlines) == 0 {
			continue
		}

		target := folder
		if folder == nil {
			target = a.EnsureFolder(o.name())
		} else if a.Delegate().SupportsSubFolders() {
			sub := &account.Folder{Name: o.name()}
			if a.AddFolder(sub, folder) {
				target = a.ExistingSubFolder(folder, o.name())
			}
		}
		importOutlines(a, o.Outlines, target)
	}
}

// Export renders the account's subscription tree as an OPML document,
// preserving child order and nesting.
func Export(a *account.Account) ([]byte, error) {
	title := a.Name
	if title == "" {
		title = a.ID
	}

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
		Body: Body{Outlines: outlinesFromEntities(a.Children())},
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

func outlinesFromEntities(children []account.Entity) []Outline {
	outlines := make([]Outline, 0, len(children))
	for _, e := range children {
		switch e := e.(type) {
		case *account.Feed:
			outlines = append(outlines, Outline{
				Text:   e.NameForDisplay(),
				Title:  e.NameForDisplay(),
				Type:   "rss",
				XMLURL: e.URL,
			})
		case *account.Folder:
			outlines = append(outlines, Outline{
				Text:     e.Name,
				Title:    e.Name,
				Outlines: outlinesFromEntities(e.Children),
			})
		}
	}
	return outlines
}
