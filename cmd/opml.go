package cmd

import (
	"fmt"
	"os"

	"feedstand/opml"

	"github.com/urfave/cli/v2"
)

func opmlCmd() *cli.Command {
	return &cli.Command{
		Name:  "opml",
		Usage: "Import or export subscriptions as OPML",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import an OPML file into an account",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					configFlag(),
					accountFlag(),
				},
				Action: func(ctx *cli.Context) error {
					path := ctx.Args().First()
					if path == "" {
						return fmt.Errorf("an OPML file is required")
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

					a, err := resolveAccount(ctx, mgr)
					if err != nil {
						return err
					}

					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()

					if err := opml.ImportInto(a, f); err != nil {
						return err
					}
					fmt.Printf("Imported %s into %s\n", path, a.ID)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "Export an account's subscriptions as OPML to stdout",
				Flags: []cli.Flag{
					configFlag(),
					accountFlag(),
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

					a, err := resolveAccount(ctx, mgr)
					if err != nil {
						return err
					}

					doc, err := opml.Export(a)
					if err != nil {
						return err
					}
					fmt.Println(string(doc))
					return nil
				},
			},
		},
	}
}
