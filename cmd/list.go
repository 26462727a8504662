package cmd

import (
	"fmt"
	"strings"

	"feedstand/account"

	"github.com/urfave/cli/v2"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the subscription tree of an account",
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

			fmt.Printf("%s (%s)\n", a.ID, a.Type)
			printEntities(a.Children(), 1)
			return nil
		},
	}
}

func printEntities(children []account.Entity, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, e := range children {
		switch e := e.(type) {
		case *account.Feed:
			fmt.Printf("%s%s <%s>\n", indent, e.NameForDisplay(), e.URL)
		case *account.Folder:
			fmt.Printf("%s%s/\n", indent, e.Name)
			printEntities(e.Children, depth+1)
		}
	}
}
