// Package store persists brew memories across restarts. The on-disk
// format is a small JSON document; a missing or unreadable file is never
// fatal and simply yields the factory defaults.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/george-ags/lm-micra/internal/brew"
)

// DefaultPath is the save file location relative to the working directory.
const DefaultPath = "memory.save"

// Store loads and saves the memory ring.
type Store interface {
	// Save writes the memories in ring order, current first.
	Save(mems []brew.Memory) error

	// Load returns the saved memories, or the factory defaults when no
	// usable save exists. Load never fails: a corrupt save must not stop
	// the machine from brewing.
	Load() []brew.Memory
}

type savedState struct {
	Memories []brew.Memory `json:"memories"`
}

// FileStore keeps the memory ring in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. An empty path selects
// DefaultPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the save file location.
func (s *FileStore) Path() string { return s.path }

// Save writes the memories atomically: a temp file in the same directory
// is renamed over the target, so a crash mid-write leaves the old save
// intact.
func (s *FileStore) Save(mems []brew.Memory) error {
	data, err := json.MarshalIndent(savedState{Memories: mems}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode save file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp save file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close save file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace save file: %w", err)
	}
	return nil
}

// Load reads the save file. Any problem (absent, unreadable, corrupt,
// empty) logs a warning and returns the factory defaults.
func (s *FileStore) Load() []brew.Memory {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("store: read %s: %v, using defaults", s.path, err)
		}
		return brew.DefaultMemories()
	}

	var state savedState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("store: parse %s: %v, using defaults", s.path, err)
		return brew.DefaultMemories()
	}
	if len(state.Memories) == 0 {
		log.Printf("store: %s holds no memories, using defaults", s.path)
		return brew.DefaultMemories()
	}
	return state.Memories
}
