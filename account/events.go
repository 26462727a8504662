package account

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type EventType string

const (
	EventRefreshDidBegin        EventType = "refresh_did_begin"
	EventRefreshDidFinish       EventType = "refresh_did_finish"
	EventRefreshProgressChanged EventType = "refresh_progress_changed"
)

// Event is a lifecycle notification emitted by an account. Events carry the
// originating account's identity so subscribers can fan in several accounts
// over one channel.
type Event struct {
	Type      EventType        `json:"type"`
	AccountID string           `json:"accountId"`
	Progress  ProgressSnapshot `json:"progress"`
}

// Broadcaster delivers account events to registered subscriber channels.
// Sends are non-blocking: a subscriber that cannot keep up misses events
// rather than stalling the account.
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan Event),
	}
}

func (b *Broadcaster) Broadcast(evt Event) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- evt: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping event for client: %v", id)
		}
	}
}

// AddClient registers a subscriber channel under the given key.
func (b *Broadcaster) AddClient(key string, client chan Event) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient unregisters a subscriber and closes its channel.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
