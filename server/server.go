package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"feedstand/account"
	"feedstand/articles"
	"feedstand/opml"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// ArticleReader is the slice of the article store the HTTP API reads from.
type ArticleReader interface {
	ArticlesForFeed(ctx context.Context, accountID, feedID string, limit int) ([]articles.Article, error)
}

type ServerConfig struct {

	// The manager owning all accounts
	Manager *account.Manager

	// Read access to stored articles
	Articles ArticleReader
}

type accountSummary struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Refreshing bool   `json:"refreshing"`
}

// treeNode is the JSON rendering of one entity; folders nest recursively.
type treeNode struct {
	Kind       string     `json:"kind"`
	Name       string     `json:"name"`
	URL        string     `json:"url,omitempty"`
	EditedName string     `json:"editedName,omitempty"`
	Children   []treeNode `json:"children,omitempty"`
}

type addFeedRequest struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// Returns a fiber.App instance serving the feedstand HTTP API
func Server(config *ServerConfig) *fiber.App {

	mgr := config.Manager

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/accounts", func(c *fiber.Ctx) error {
		summaries := []accountSummary{}
		for _, a := range mgr.Accounts() {
			summaries = append(summaries, accountSummary{
				ID:         a.ID,
				Type:       string(a.Type),
				Name:       a.Name,
				Refreshing: a.RefreshInProgress(),
			})
		}
		return c.JSON(summaries)
	})

	app.Get("/accounts/:id/tree", func(c *fiber.Ctx) error {
		a := mgr.Account(c.Params("id"))
		if a == nil {
			return c.Status(404).SendString("Unknown account")
		}
		return c.JSON(nodesFromEntities(a.Children()))
	})

	app.Post("/accounts/:id/feeds", func(c *fiber.Ctx) error {
		a := mgr.Account(c.Params("id"))
		if a == nil {
			return c.Status(404).SendString("Unknown account")
		}

		var req addFeedRequest
		if err := c.BodyParser(&req); err != nil || req.URL == "" {
			return c.Status(400).SendString("A feed url is required")
		}

		var folder *account.Folder
		if req.Folder != "" {
			folder = a.EnsureFolder(req.Folder)
		}

		feed := a.CreateFeed(req.Name, "", req.URL)
		if feed == nil || !a.AddFeed(feed, folder) {
			return c.Status(500).SendString("Could not add feed")
		}

		log.WithFields(log.Fields{
			"account": a.ID,
			"feed":    feed.URL,
			"folder":  req.Folder,
		}).Info("Added feed")

		return c.Status(201).JSON(treeNode{
			Kind: "feed",
			Name: feed.NameForDisplay(),
			URL:  feed.URL,
		})
	})

	app.Post("/accounts/:id/refresh", func(c *fiber.Ctx) error {
		a := mgr.Account(c.Params("id"))
		if a == nil {
			return c.Status(404).SendString("Unknown account")
		}
		a.RefreshAll(context.Background())
		return c.Status(202).JSON(a.Delegate().Progress().Snapshot())
	})

	app.Get("/accounts/:id/articles", func(c *fiber.Ctx) error {
		a := mgr.Account(c.Params("id"))
		if a == nil {
			return c.Status(404).SendString("Unknown account")
		}
		feedID := c.Query("feed", "")
		if feedID == "" {
			return c.Status(400).SendString("A feed query parameter is required")
		}
		limit := c.QueryInt("limit", 50)

		stored, err := config.Articles.ArticlesForFeed(c.Context(), a.ID, feedID, limit)
		if err != nil {
			log.WithFields(log.Fields{
				"account": a.ID,
				"feed":    feedID,
				"error":   err,
			}).Error("Error reading articles")
			return c.Status(500).SendString("Error reading articles")
		}
		if stored == nil {
			stored = []articles.Article{}
		}
		return c.JSON(stored)
	})

	app.Get("/accounts/:id/opml", func(c *fiber.Ctx) error {
		a := mgr.Account(c.Params("id"))
		if a == nil {
			return c.Status(404).SendString("Unknown account")
		}
		doc, err := opml.Export(a)
		if err != nil {
			return c.Status(500).SendString("Error exporting OPML")
		}
		c.Set("Content-Type", "text/x-opml")
		return c.Send(doc)
	})

	app.Delete("/events/sse", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		mgr.Events().RemoveClient(key)
		return c.Status(200).SendString("OK")
	})

	app.Get("/events/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		eventChannel := make(chan account.Event, 10) // Buffered channel
		aliveChan := time.NewTicker(5 * time.Second)

		defer aliveChan.Stop()

		mgr.Events().AddClient(key, eventChannel)

		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			mgr.Events().RemoveClient(key)
		}

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case evt, ok := <-eventChannel:
					if !ok {
						log.Warnf("Event channel closed for client %s", key)
						return
					}
					jsonEvent, err := json.Marshal(evt)
					if err != nil {
						log.Errorf("Error marshalling event for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, jsonEvent); err != nil {
						log.Warnf("Failed to send event to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush event for client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

func nodesFromEntities(children []account.Entity) []treeNode {
	nodes := make([]treeNode, 0, len(children))
	for _, e := range children {
		switch e := e.(type) {
		case *account.Feed:
			nodes = append(nodes, treeNode{
				Kind:       "feed",
				Name:       e.NameForDisplay(),
				URL:        e.URL,
				EditedName: e.EditedName,
			})
		case *account.Folder:
			nodes = append(nodes, treeNode{
				Kind:     "folder",
				Name:     e.Name,
				Children: nodesFromEntities(e.Children),
			})
		}
	}
	return nodes
}
