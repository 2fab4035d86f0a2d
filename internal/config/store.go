package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// Store holds the current Settings snapshot and reloads it when the
// backing file changes.
//
// Get may be called from any goroutine. ReloadIfChanged must only be
// called from one goroutine at a time (the reload job).
type Store struct {
	path       string
	driverPath string
	current    atomic.Pointer[Settings]
	onReload   func(Settings)

	lastModTime time.Time
}

// NewStore creates a Store for the settings file at path. When
// driverPath is non-empty the driver config file is regenerated there
// after every successful reload.
func NewStore(path, driverPath string) *Store {
	s := &Store{path: path, driverPath: driverPath}
	defaults := DefaultSettings()
	s.current.Store(&defaults)
	return s
}

// OnReload registers fn to be called after each successful reload. It
// must be set before polling starts.
func (s *Store) OnReload(fn func(Settings)) {
	s.onReload = fn
}

// Get returns the current snapshot.
func (s *Store) Get() Settings {
	return *s.current.Load()
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// ReloadIfChanged reloads the settings when the file's modification
// time differs from the last successful load. It reports whether a
// reload happened. A missing file is not an error. On a decode error
// the previous snapshot stays in place and the next call retries.
func (s *Store) ReloadIfChanged() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat settings file '%s': %w", s.path, err)
	}

	modTime := info.ModTime()
	if modTime.Equal(s.lastModTime) {
		return false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to read settings file '%s': %w", s.path, err)
	}
	next, err := ParseSettings(data)
	if err != nil {
		return false, fmt.Errorf("settings file '%s': %w", s.path, err)
	}

	next.Version = s.current.Load().Version + 1
	next.ModTime = modTime
	s.current.Store(&next)
	s.lastModTime = modTime

	log.Printf("[Settings] Loaded v%d from '%s': %s", next.Version, s.path, next.Summary())

	if s.driverPath != "" {
		if err := WriteDriverConfig(s.driverPath, next); err != nil {
			log.Printf("[Settings] Failed to write driver config: %v", err)
		} else {
			log.Printf("[Settings] Driver config written to '%s' (mode=%s, filter=%dms)",
				s.driverPath, next.ModeSelect.DriverName(), next.FilterWindowMs)
		}
	}

	if s.onReload != nil {
		s.onReload(next)
	}
	return true, nil
}

// RemoveDriverConfig deletes the generated driver config file so the
// driver does not read stale values after the bridge exits.
func (s *Store) RemoveDriverConfig() error {
	if s.driverPath == "" {
		return nil
	}
	return removeIfExists(s.driverPath)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
