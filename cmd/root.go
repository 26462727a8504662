package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"

	"feedstand/account"
	"feedstand/articles"
	"feedstand/config"
	"feedstand/fetch"
	"feedstand/services"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedstand",
		Usage: "A feed reader backend with local and synced accounts",
		Description: `Feedstand manages feed subscriptions for one or more accounts.

		Each account keeps an ordered tree of feeds and folders in a settings
		file inside its own data folder and is bound to a synchronization
		backend: the local on-device backend or a remote service such as
		Feedbin. Fetched articles are stored in an SQLite database shared by
		all accounts and can be accessed via an HTTP API.

		Flags can generally be set via environment variables, e.g.:

		--config => FEEDSTAND_CONFIG=feedstand.toml
		--port => FEEDSTAND_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			addCmd(),
			listCmd(),
			refreshCmd(),
			opmlCmd(),
			accountCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the feedstand configuration file",
		EnvVars: []string{"FEEDSTAND_CONFIG"},
	}
}

func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	path := ctx.String("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// openManager wires the article store, the local fetch pipeline and the
// delegate factory, then discovers all accounts under the data folder.
func openManager(cfg *config.TomlConfig) (*account.Manager, *articles.Store, error) {
	store, err := articles.Open(filepath.Join(cfg.DataDir, "articles.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("error opening article store: %w", err)
	}

	factory := services.Factory(services.Options{
		HTTPClient:      http.DefaultClient,
		Store:           store,
		Refresher:       fetch.New(nil, store, cfg.UserAgent),
		FeedbinBaseURL:  cfg.Feedbin.BaseURL,
		FeedbinPassword: cfg.Feedbin.Password,
	})

	mgr := account.NewManager(account.ManagerConfig{
		DataFolder: cfg.DataDir,
		Factory:    factory,
		Articles:   store,
		SaveDelay:  cfg.SaveDelay(),
	})
	if err := mgr.Load(); err != nil {
		store.Close()
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"accounts": len(mgr.Accounts()),
		"data":     cfg.DataDir,
	}).Info("Accounts loaded")

	return mgr, store, nil
}

// resolveAccount picks the account a command operates on: the --account
// flag when given, otherwise the single account, otherwise the default
// local one.
func resolveAccount(ctx *cli.Context, mgr *account.Manager) (*account.Account, error) {
	if id := ctx.String("account"); id != "" {
		a := mgr.Account(id)
		if a == nil {
			return nil, fmt.Errorf("unknown account %q", id)
		}
		return a, nil
	}

	accounts := mgr.Accounts()
	if len(accounts) == 1 {
		return accounts[0], nil
	}
	if a := mgr.Account(account.LocalAccountID); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("several accounts available, pass --account")
}

func accountFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "account",
		Aliases: []string{"a"},
		Usage:   "The account to operate on",
		EnvVars: []string{"FEEDSTAND_ACCOUNT"},
	}
}
