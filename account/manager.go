package account

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// LocalAccountID is the fixed identifier of the default on-device account.
// Remote accounts get generated identifiers.
const LocalAccountID = "local"

// DelegateFactory builds the delegate for a backend kind. Kept as a
// function so the account package does not depend on the service packages.
type DelegateFactory func(t Type, username string) (Delegate, error)

// Manager discovers and owns all accounts under one data folder. Each
// sub-folder containing a settings file is one account; the folder name is
// the account ID.
type Manager struct {
	dataFolder string
	factory    DelegateFactory
	articles   ArticleStore
	events     *Broadcaster
	saveDelay  time.Duration

	accounts []*Account
}

type ManagerConfig struct {
	DataFolder string
	Factory    DelegateFactory
	Articles   ArticleStore
	SaveDelay  time.Duration
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		dataFolder: cfg.DataFolder,
		factory:    cfg.Factory,
		articles:   cfg.Articles,
		events:     NewBroadcaster(),
		saveDelay:  cfg.SaveDelay,
	}
}

// Events is the shared sink all managed accounts emit into.
func (m *Manager) Events() *Broadcaster {
	return m.events
}

// Load discovers account folders on disk. When none exist, the default
// local account is created so the application always has somewhere to put
// subscriptions.
func (m *Manager) Load() error {
	entries, err := os.ReadDir(m.dataFolder)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error reading data folder: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(m.dataFolder, entry.Name())
		sf, err := loadSettingsFile(settingsPath(folder))
		if err != nil {
			log.WithFields(log.Fields{
				"folder": folder,
				"error":  err,
			}).Warn("Skipping folder without readable settings file")
			continue
		}

		t, err := ParseType(sf.Type)
		if err != nil {
			log.WithFields(log.Fields{
				"folder": folder,
				"error":  err,
			}).Warn("Skipping account with unknown type")
			continue
		}

		if _, err := m.open(entry.Name(), t, sf.Username); err != nil {
			log.WithFields(log.Fields{
				"account": entry.Name(),
				"error":   err,
			}).Error("Error opening account")
		}
	}

	if len(m.accounts) == 0 {
		log.Info("No accounts found, creating default local account")
		if _, err := m.CreateAccount(OnMyMac, "On My Mac", ""); err != nil {
			return err
		}
	}

	return nil
}

// CreateAccount makes the data folder and settings file for a new account
// and opens it. The local account uses its fixed ID so there is only ever
// one; remote accounts get generated IDs.
func (m *Manager) CreateAccount(t Type, name, username string) (*Account, error) {
	id := LocalAccountID
	if t != OnMyMac {
		id = uuid.New().String()
	}
	if m.byID(id) != nil {
		return nil, fmt.Errorf("account %q already exists", id)
	}

	folder := filepath.Join(m.dataFolder, id)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("error creating account folder: %w", err)
	}

	sf := &settingsFile{Type: string(t), Name: name, Username: username}
	if err := writeSettingsFile(settingsPath(folder), sf); err != nil {
		return nil, err
	}

	return m.open(id, t, username)
}

func (m *Manager) open(id string, t Type, username string) (*Account, error) {
	delegate, err := m.factory(t, username)
	if err != nil {
		return nil, err
	}

	a, err := New(Config{
		ID:         id,
		Type:       t,
		DataFolder: filepath.Join(m.dataFolder, id),
		Delegate:   delegate,
		Articles:   m.articles,
		Events:     m.events,
		SaveDelay:  m.saveDelay,
	})
	if err != nil {
		return nil, err
	}

	m.accounts = append(m.accounts, a)
	log.WithFields(log.Fields{
		"account": a.ID,
		"type":    a.Type,
	}).Info("Opened account")
	return a, nil
}

// Accounts returns the managed accounts in discovery order.
func (m *Manager) Accounts() []*Account {
	return append([]*Account(nil), m.accounts...)
}

func (m *Manager) Account(id string) *Account {
	return m.byID(id)
}

// RefreshAll starts a refresh cycle on every account.
func (m *Manager) RefreshAll(ctx context.Context) {
	for _, a := range m.accounts {
		a.RefreshAll(ctx)
	}
}

// Shutdown flushes pending settings writes and closes the event sink.
func (m *Manager) Shutdown() {
	for _, a := range m.accounts {
		if err := a.Saver().SaveNow(); err != nil {
			log.WithFields(log.Fields{
				"account": a.ID,
				"error":   err,
			}).Error("Error flushing account settings")
		}
	}
	m.events.Shutdown()
}

func (m *Manager) byID(id string) *Account {
	for _, a := range m.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}
