package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// ScratchpadStore persists agent memory. Writes always append a new entry;
// Consume only stamps consumed_at.
type ScratchpadStore interface {
	Write(scope models.ScratchpadScope, kind models.ScratchpadKind, content string) (models.ScratchpadEntry, error)
	Read(query models.ScratchpadQuery) ([]models.ScratchpadEntry, error)
	Consume(id string) (models.ScratchpadEntry, error)
}

// scratchpadFile is the layout of scratchpad.yaml.
type scratchpadFile struct {
	Version string                   `yaml:"version"`
	Counter int                      `yaml:"counter"`
	Entries []models.ScratchpadEntry `yaml:"entries"`
}

type yamlScratchpadStore struct {
	basePath string
	now      func() time.Time
}

// NewYAMLScratchpadStore creates a ScratchpadStore backed by
// scratchpad.yaml in basePath. Every operation reloads the file under an
// exclusive lock so several processes can share it.
func NewYAMLScratchpadStore(basePath string) ScratchpadStore {
	return &yamlScratchpadStore{basePath: basePath, now: time.Now}
}

func (s *yamlScratchpadStore) filePath() string {
	return filepath.Join(s.basePath, "scratchpad.yaml")
}

func (s *yamlScratchpadStore) lockPath() string {
	return filepath.Join(s.basePath, ".scratchpad.lock")
}

// withLock runs fn over the loaded file and saves it when fn reports a change.
func (s *yamlScratchpadStore) withLock(fn func(f *scratchpadFile) (bool, error)) error {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("%w: creating scratchpad directory: %v", models.ErrStoreUnavailable, err)
	}
	unlock, err := lockFile(s.lockPath())
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	defer func() { _ = unlock() }()

	f, err := s.load()
	if err != nil {
		return err
	}
	changed, err := fn(f)
	if err != nil || !changed {
		return err
	}
	return s.save(f)
}

func (s *yamlScratchpadStore) load() (*scratchpadFile, error) {
	f := &scratchpadFile{Version: "1.0"}
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("%w: reading scratchpad: %v", models.ErrStoreUnavailable, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: parsing scratchpad: %v", models.ErrStoreUnavailable, err)
	}
	return f, nil
}

// save writes to a temp file and renames it into place.
func (s *yamlScratchpadStore) save(f *scratchpadFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshalling scratchpad: %w", err)
	}
	tmp := s.filePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing scratchpad: %v", models.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, s.filePath()); err != nil {
		return fmt.Errorf("%w: replacing scratchpad: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *yamlScratchpadStore) Write(scope models.ScratchpadScope, kind models.ScratchpadKind, content string) (models.ScratchpadEntry, error) {
	if err := models.ValidateScratchpadWrite(scope, kind, content); err != nil {
		return models.ScratchpadEntry{}, err
	}

	var entry models.ScratchpadEntry
	err := s.withLock(func(f *scratchpadFile) (bool, error) {
		f.Counter++
		entry = models.ScratchpadEntry{
			ID:        fmt.Sprintf("SP-%05d", f.Counter),
			Scope:     scope,
			Kind:      kind,
			Content:   content,
			CreatedAt: s.now().UTC(),
		}
		f.Entries = append(f.Entries, entry)
		return true, nil
	})
	if err != nil {
		return models.ScratchpadEntry{}, err
	}
	return entry, nil
}

// Read returns matching entries ordered by creation time, then id.
func (s *yamlScratchpadStore) Read(query models.ScratchpadQuery) ([]models.ScratchpadEntry, error) {
	result := []models.ScratchpadEntry{}
	err := s.withLock(func(f *scratchpadFile) (bool, error) {
		for _, e := range f.Entries {
			if query.Matches(e) {
				result = append(result, e)
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sortEntries(result)
	return result, nil
}

// Consume marks an entry consumed. Consuming twice keeps the first stamp.
func (s *yamlScratchpadStore) Consume(id string) (models.ScratchpadEntry, error) {
	var entry models.ScratchpadEntry
	err := s.withLock(func(f *scratchpadFile) (bool, error) {
		for i := range f.Entries {
			if f.Entries[i].ID != id {
				continue
			}
			if f.Entries[i].ConsumedAt != nil {
				entry = f.Entries[i]
				return false, nil
			}
			at := s.now().UTC()
			f.Entries[i].ConsumedAt = &at
			entry = f.Entries[i]
			return true, nil
		}
		return false, fmt.Errorf("%w: %s", models.ErrScratchpadEntryNotFound, id)
	})
	if err != nil {
		return models.ScratchpadEntry{}, err
	}
	return entry, nil
}

// sortEntries orders by creation time, then by the numeric part of the id.
func sortEntries(entries []models.ScratchpadEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entrySeq(entries[i].ID) < entrySeq(entries[j].ID)
	})
}

func entrySeq(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "SP-"))
	if err != nil {
		return 0
	}
	return n
}

// NewScratchpadStore selects the backend named by cfg.
func NewScratchpadStore(basePath string, cfg models.ScratchpadConfig) (ScratchpadStore, error) {
	switch cfg.Backend {
	case "", "yaml":
		return NewYAMLScratchpadStore(basePath), nil
	case "sqlite":
		store, err := OpenSQLiteScratchpadStore(filepath.Join(basePath, "scratchpad.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown scratchpad backend %q", cfg.Backend)
	}
}
