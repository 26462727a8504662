package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedstand/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feedstand HTTP API",
		Description: `Starts the feedstand HTTP server and the background refresh loop.

Accounts are discovered under the data folder and refreshed periodically
through their backends. The subscription trees, stored articles and a
server-sent-events stream of refresh lifecycle events are exposed over the
HTTP API.`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "The port to listen on",
				EnvVars: []string{"FEEDSTAND_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.Int("port") != 0 {
				cfg.Port = ctx.Int("port")
			}

			mgr, store, err := openManager(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			// Flush pending settings writes on every exit path
			defer mgr.Shutdown()

			app := server.Server(&server.ServerConfig{
				Manager:  mgr,
				Articles: store,
			})

			refreshCtx, cancelRefresh := context.WithCancel(ctx.Context)
			defer cancelRefresh()

			// Periodic background refresh across all accounts
			go func() {
				ticker := time.NewTicker(cfg.RefreshInterval())
				defer ticker.Stop()

				mgr.RefreshAll(refreshCtx)

				for {
					select {
					case <-refreshCtx.Done():
						return
					case <-ticker.C:
						mgr.RefreshAll(refreshCtx)
					}
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-quit
				log.Info("Gracefully shutting down...")
				cancelRefresh()
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.Errorf("Error shutting down server: %v", err)
				}
			}()

			log.WithFields(log.Fields{
				"port": cfg.Port,
			}).Info("Starting server")

			return app.Listen(fmt.Sprintf(":%d", cfg.Port))
		},
	}
}
