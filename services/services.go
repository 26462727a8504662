// Package services binds backend kinds to their delegate implementations.
package services

import (
	"fmt"
	"net/http"

	"feedstand/account"
	"feedstand/services/feedbin"
)

// Options carries the collaborators delegates are built from.
type Options struct {
	HTTPClient *http.Client
	Store      feedbin.ArticleStore
	Refresher  account.Refresher // local refresh pipeline, may be nil

	FeedbinBaseURL  string
	FeedbinPassword string
}

// Factory returns the delegate factory for the closed set of backend
// kinds. Kinds without an implementation yet fail at account open time,
// not at refresh time.
func Factory(opts Options) account.DelegateFactory {
	return func(t account.Type, username string) (account.Delegate, error) {
		switch t {
		case account.OnMyMac:
			return account.NewLocalDelegate(opts.Refresher), nil
		case account.Feedbin:
			client := feedbin.NewClient(opts.FeedbinBaseURL, username, opts.FeedbinPassword, opts.HTTPClient)
			return feedbin.NewDelegate(client, opts.Store), nil
		case account.Feedly, account.FeedWrangler, account.NewsBlur:
			return nil, fmt.Errorf("account type %q is not supported yet", t)
		}
		return nil, fmt.Errorf("unknown account type %q", t)
	}
}
