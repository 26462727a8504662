package cmd

import (
	"fmt"
	"time"

	"feedstand/account"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Refresh all accounts and wait for completion",
		Description: `Starts a refresh cycle on every account and waits until all
backends report zero outstanding operations.

Progress events are logged as they arrive on the event stream.`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Minute,
				Usage: "Give up waiting after this long",
			},
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

			events := make(chan account.Event, 100)
			mgr.Events().AddClient("refresh-cli", events)

			go func() {
				for evt := range events {
					log.WithFields(log.Fields{
						"account":   evt.AccountID,
						"event":     evt.Type,
						"remaining": evt.Progress.NumberRemaining,
						"total":     evt.Progress.NumberOfTasks,
					}).Info("Refresh event")
				}
			}()

			mgr.RefreshAll(ctx.Context)

			deadline := time.Now().Add(ctx.Duration("timeout"))
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()

			for range ticker.C {
				if !anyRefreshing(mgr) {
					fmt.Println("Done!")
					return nil
				}
				if time.Now().After(deadline) {
					return fmt.Errorf("timed out waiting for refresh to finish")
				}
			}
			return nil
		},
	}
}

func anyRefreshing(mgr *account.Manager) bool {
	for _, a := range mgr.Accounts() {
		if a.RefreshInProgress() {
			return true
		}
	}
	return false
}
