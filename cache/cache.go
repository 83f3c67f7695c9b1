// Package cache stores generated report payloads on disk so that unchanged
// reports are not rebuilt.  Entries are written atomically and tracked by an
// in-memory LRU index with an optional disk budget.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned by Get when no entry exists under the given name.
var ErrNotFound = errors.New("cache: entry not found")

const (
	entrySuffix = ".json"
	tempSuffix  = ".tmp"

	// indexSize bounds the LRU index, not the disk itself.
	indexSize = 4096
)

// An Entry describes one cached payload.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Manager owns a cache directory.  All methods are safe for concurrent use.
type Manager struct {
	dir    string
	budget int64 // bytes; 0 means unlimited
	log    *slog.Logger

	mu    sync.Mutex
	index *lru.Cache[string, Entry]
	used  int64
}

// Options configure a Manager.
type Options struct {
	// Budget is the total size allowed on disk, in bytes.  When an entry
	// would exceed it, least recently used entries are evicted.  Zero
	// disables the budget.
	Budget int64
	Logger *slog.Logger
}

// New opens (creating if needed) the cache directory and indexes its
// existing entries.
func New(dir string, opts Options) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating directory: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{dir: dir, budget: opts.Budget, log: log}
	index, err := lru.NewWithEvict(indexSize, m.onEvict)
	if err != nil {
		return nil, err
	}
	m.index = index
	if err := m.scan(); err != nil {
		return nil, err
	}
	return m, nil
}

// scan loads entries already on disk, oldest first so the LRU order matches
// modification times.
func (m *Manager) scan() error {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("cache: reading directory: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name, ok := strings.CutSuffix(de.Name(), entrySuffix)
		if !ok || de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    name,
			Path:    filepath.Join(m.dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.index.Add(e.Name, e)
		m.used += e.Size
	}
	return nil
}

// Put streams r into the cache under name, replacing any previous entry.
// The payload is written to a temporary file first and renamed into place,
// so a failed write never leaves a partial entry behind.
func (m *Manager) Put(name string, r io.Reader) (Entry, error) {
	if err := validName(name); err != nil {
		return Entry{}, err
	}
	tempPath := filepath.Join(m.dir, uuid.NewString()+tempSuffix)
	f, err := os.Create(tempPath)
	if err != nil {
		return Entry{}, fmt.Errorf("cache: creating temp file: %w", err)
	}
	size, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return Entry{}, fmt.Errorf("cache: writing %q: %w", name, err)
	}
	path := filepath.Join(m.dir, name+entrySuffix)
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return Entry{}, fmt.Errorf("cache: storing %q: %w", name, err)
	}
	entry := Entry{Name: name, Path: path, Size: size, ModTime: time.Now()}

	m.mu.Lock()
	if old, ok := m.index.Peek(name); ok {
		m.used -= old.Size
	}
	m.index.Add(name, entry)
	m.used += size
	m.enforceBudget(name)
	m.mu.Unlock()

	m.log.Debug("cache entry stored", "name", name, "size", size)
	return entry, nil
}

// Get returns the entry stored under name and marks it recently used.
func (m *Manager) Get(name string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Get(name)
}

// Open returns a reader over the cached payload.
func (m *Manager) Open(name string) (io.ReadCloser, error) {
	entry, ok := m.Get(name)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening %q: %w", name, err)
	}
	return f, nil
}

// GetOrCreate returns the cached entry for name, building and storing it if
// absent.  Transient build failures are retried with exponential backoff
// until ctx is done.
func (m *Manager) GetOrCreate(ctx context.Context, name string, build func() (io.Reader, error)) (Entry, error) {
	if entry, ok := m.Get(name); ok {
		return entry, nil
	}
	var entry Entry
	op := func() error {
		r, err := build()
		if err != nil {
			return err
		}
		entry, err = m.Put(name, r)
		return err
	}
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(30*time.Second),
	), ctx)
	notify := func(err error, wait time.Duration) {
		m.log.Warn("cache regeneration failed, retrying", "name", name, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Entries lists the indexed entries, least recently used first.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.index.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := m.index.Peek(k); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Used reports the total size of indexed entries in bytes.
func (m *Manager) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Remove deletes the entry stored under name, if any.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index.Peek(name); !ok {
		return ErrNotFound
	}
	m.index.Remove(name)
	return nil
}

// Clear removes every entry.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.Purge()
	return nil
}

// enforceBudget evicts least recently used entries until the disk usage fits
// the budget.  The entry named keep is never evicted so that a Put larger
// than the whole budget still succeeds.  Must be called with m.mu held.
func (m *Manager) enforceBudget(keep string) {
	if m.budget <= 0 {
		return
	}
	for m.used > m.budget && m.index.Len() > 1 {
		k, _, ok := m.index.GetOldest()
		if !ok {
			return
		}
		if k == keep {
			// cycle the protected entry to the recent end
			m.index.Get(k)
			if m.index.Len() == 1 {
				return
			}
			continue
		}
		m.index.Remove(k)
	}
}

// onEvict runs inside index mutations, with m.mu held by the caller.
func (m *Manager) onEvict(name string, entry Entry) {
	m.used -= entry.Size
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		m.log.Warn("cache eviction failed", "name", name, "error", err)
		return
	}
	m.log.Debug("cache entry evicted", "name", name, "size", entry.Size)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("cache: invalid entry name %q", name)
	}
	return nil
}
