package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a feed subscription",
		ArgsUsage: "<feed url>",
		Description: `Adds a feed to an account, optionally inside a folder.

Adding a feed that is already subscribed in the same place is a no-op.
The folder is created when it does not exist yet.`,
		Flags: []cli.Flag{
			configFlag(),
			accountFlag(),
			&cli.StringFlag{
				Name:  "name",
				Usage: "Display name for the feed",
			},
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "Folder to place the feed in",
			},
		},
		Action: func(ctx *cli.Context) error {
			url := ctx.Args().First()
			if url == "" {
				return fmt.Errorf("a feed url is required")
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

			feed := a.CreateFeed(ctx.String("name"), "", url)
			if feed == nil {
				return fmt.Errorf("could not create feed for %q", url)
			}

			if folderName := ctx.String("folder"); folderName != "" {
				folder := a.EnsureFolder(folderName)
				if !a.AddFeed(feed, folder) {
					return fmt.Errorf("could not add feed to folder %q", folderName)
				}
				fmt.Printf("Added %s to %s\n", feed.URL, folderName)
				return nil
			}

			if !a.AddFeed(feed, nil) {
				return fmt.Errorf("could not add feed")
			}
			fmt.Printf("Added %s\n", feed.URL)
			return nil
		},
	}
}
