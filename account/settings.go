package account

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SettingsFileName is the name of the per-account settings file inside the
// account's data folder.
const SettingsFileName = "settings.yaml"

// DefaultSaveDelay is how long the saver waits after the first mutation
// before writing, so that bursts of mutations coalesce into one write.
const DefaultSaveDelay = time.Second

// settingsFile is the on-disk shape of an account. The one structural key
// is "children"; a child record carrying a url is a feed, anything else is
// a folder with its own nested children.
type settingsFile struct {
	Type     string         `yaml:"type"`
	Name     string         `yaml:"name,omitempty"`
	Username string         `yaml:"username,omitempty"`
	Children []entityRecord `yaml:"children"`
}

type entityRecord struct {
	URL        string         `yaml:"url,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	EditedName string         `yaml:"editedName,omitempty"`
	Children   []entityRecord `yaml:"children,omitempty"`
}

func (r entityRecord) isFeed() bool {
	return r.URL != ""
}

func recordsFromEntities(children []Entity) []entityRecord {
	records := make([]entityRecord, 0, len(children))
	for _, e := range children {
		switch e := e.(type) {
		case *Feed:
			records = append(records, entityRecord{
				URL:        e.URL,
				Name:       e.Name,
				EditedName: e.EditedName,
			})
		case *Folder:
			records = append(records, entityRecord{
				Name:     e.Name,
				Children: recordsFromEntities(e.Children),
			})
		}
	}
	return records
}

// entitiesFromRecords rebuilds a tree, reusing one canonical *Feed per
// feed ID via the feeds map so cross-folder duplicates stay one instance.
func entitiesFromRecords(records []entityRecord, accountID string, feeds map[string]*Feed) []Entity {
	children := make([]Entity, 0, len(records))
	for _, r := range records {
		if r.isFeed() {
			f, ok := feeds[r.URL]
			if !ok {
				f = &Feed{
					FeedID:     r.URL,
					URL:        r.URL,
					Name:       r.Name,
					EditedName: r.EditedName,
					AccountID:  accountID,
				}
				feeds[r.URL] = f
			}
			children = append(children, f)
			continue
		}
		children = append(children, &Folder{
			Name:     r.Name,
			Children: entitiesFromRecords(r.Children, accountID, feeds),
		})
	}
	return children
}

func loadSettingsFile(path string) (*settingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sf settingsFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}
	return &sf, nil
}

func writeSettingsFile(path string, sf *settingsFile) error {
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("error encoding settings file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing settings file: %w", err)
	}
	return nil
}

// Saver owns the dirty flag and the debounce timer for one account's
// settings file. Mutations call MarkDirty; the pending write fires once the
// delay elapses with no further mutations re-arming it. The dirty flag is
// cleared only after a successful write, so a failed write is retried by
// the next mutation or an explicit SaveNow.
type Saver struct {
	mu      sync.Mutex
	dirty   bool
	gen     uint64 // bumped by every MarkDirty; guards clearing dirty across a write
	timer   *time.Timer
	delay   time.Duration
	save    func() error
	onError func(error)
}

func NewSaver(delay time.Duration, save func() error) *Saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Saver{
		delay: delay,
		save:  save,
	}
}

// SetOnError registers a hook invoked with every failed write, in addition
// to logging. Used to surface persistence failures to the caller.
func (s *Saver) SetOnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *Saver) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkDirty records that in-memory state has diverged from disk and
// schedules a debounced save.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.gen++
	s.scheduleLocked()
	s.mu.Unlock()
}

// ScheduleSave arms the debounce timer, replacing any pending one.
func (s *Saver) ScheduleSave() {
	s.mu.Lock()
	s.scheduleLocked()
	s.mu.Unlock()
}

// CancelPendingSave disarms the pending timer without writing.
func (s *Saver) CancelPendingSave() {
	s.mu.Lock()
	s.cancelLocked()
	s.mu.Unlock()
}

// SaveNow writes immediately when dirty, bypassing the timer. Used on
// shutdown so pending changes are not lost.
func (s *Saver) SaveNow() error {
	s.mu.Lock()
	s.cancelLocked()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.fire()
}

func (s *Saver) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.fire() //nolint:errcheck // reported via log and onError hook
	})
}

func (s *Saver) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Saver) fire() error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	err := s.save()

	s.mu.Lock()
	if err == nil && gen == s.gen {
		s.dirty = false
		s.cancelLocked()
	}
	fn := s.onError
	s.mu.Unlock()

	if err != nil {
		settingsSaveErrors.Inc()
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error saving account settings")
		if fn != nil {
			fn(err)
		}
		return err
	}

	settingsSaves.Inc()
	return nil
}

func settingsPath(dataFolder string) string {
	return filepath.Join(dataFolder, SettingsFileName)
}
