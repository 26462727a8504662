package cmd

import (
	"fmt"

	"feedstand/account"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func accountCmd() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Manage accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new account",
				Description: `Creates a new account bound to a synchronization backend.

The backend binding is permanent: an account keeps its type for its whole
life. Remote backends ask for the service username; the matching password
is read from the configuration file.`,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Value:   string(account.OnMyMac),
						Usage:   "Backend kind (onmymac, feedly, feedbin, feedwrangler, newsblur)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name for the account",
					},
				},
				Action: func(ctx *cli.Context) error {
					t, err := account.ParseType(ctx.String("type"))
					if err != nil {
						return err
					}

					name := ctx.String("name")
					if name == "" {
						name, err = prompt.New().Ask("Account name:").Input("")
						if err != nil {
							return err
						}
					}

					username := ""
					if t != account.OnMyMac {
						username, err = prompt.New().Ask("Service username:").Input("me@example.com")
						if err != nil {
							return err
						}
					}

					cfg, err := loadConfig(ctx)
					if err != nil {
						return err
					}
					mgr, store, err := openManager(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					defer mgr.Shutdown()

					a, err := mgr.CreateAccount(t, name, username)
					if err != nil {
						return err
					}
					fmt.Printf("Created account %s (%s)\n", a.ID, a.Type)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List accounts",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx)
					if err != nil {
						return err
					}
					mgr, store, err := openManager(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					defer mgr.Shutdown()

					for _, a := range mgr.Accounts() {
						fmt.Printf("%s\t%s\t%s\n", a.ID, a.Type, a.Name)
					}
					return nil
				},
			},
		},
	}
}
