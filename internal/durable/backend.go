// Package durable arbitrates single-writer access to the canvas database
// file. It wraps a hackpadfs filesystem so the same protocol works over the
// real OS filesystem natively and over IndexedDB in the browser build.
package durable

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
	hackos "github.com/hack-pad/hackpadfs/os"
)

// ErrContention is returned by Acquire when another session already holds
// the database file. Callers are expected to degrade to a memory session
// rather than wait.
var ErrContention = errors.New("durable: database file is held by another session")

// Backend presents one named, durable database file per storage root.
type Backend struct {
	fs hackpadfs.FS

	// prefix scopes all file names inside fs. osRoot is the corresponding
	// OS directory when fs is the real filesystem, "" otherwise.
	prefix string
	osRoot string
}

// NewOSBackend stores database files under dir on the local filesystem.
// Handles acquired from it are path-addressable, so the engine can open
// the SQLite file in place.
func NewOSBackend(dir string) *Backend {
	clean := filepath.Clean(dir)
	return &Backend{
		fs:     hackos.NewFS(),
		prefix: strings.TrimPrefix(filepath.ToSlash(clean), "/"),
		osRoot: clean,
	}
}

// NewFSBackend stores database files in an arbitrary hackpadfs filesystem
// (IndexedDB in the browser, mem.FS in tests). Handles are not
// path-addressable; the engine runs in memory and persists through image
// snapshots on the handle.
func NewFSBackend(fsys hackpadfs.FS) *Backend {
	return &Backend{fs: fsys}
}

func (b *Backend) join(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// Acquire takes exclusive ownership of the named database file. The browser
// runtime enforces a single writer per origin file; this models the same
// rule with an exclusive lock file so native sessions behave identically.
func (b *Backend) Acquire(name string) (*Handle, error) {
	if b.prefix != "" {
		if err := hackpadfs.MkdirAll(b.fs, b.prefix, 0o755); err != nil {
			return nil, fmt.Errorf("durable: creating storage root: %w", err)
		}
	}

	lock := b.join(name + ".lock")
	f, err := hackpadfs.OpenFile(b.fs, lock, hackpadfs.FlagWriteOnly|hackpadfs.FlagCreate|hackpadfs.FlagExclusive, 0o644)
	if err != nil {
		if errors.Is(err, hackpadfs.ErrExist) {
			return nil, ErrContention
		}
		return nil, fmt.Errorf("durable: acquiring lock for %q: %w", name, err)
	}
	f.Close()

	return &Handle{backend: b, name: name, lock: lock}, nil
}

// Handle is exclusive ownership of one database file until released.
type Handle struct {
	backend *Backend
	name    string
	lock    string

	once sync.Once
}

// Path returns the OS path of the database file, or "" when the backing
// filesystem is not path-addressable.
func (h *Handle) Path() string {
	if h.backend.osRoot == "" {
		return ""
	}
	return filepath.Join(h.backend.osRoot, h.name)
}

// Load reads the current database image. A missing file is not an error;
// it returns nil bytes so a first run starts empty.
func (h *Handle) Load() ([]byte, error) {
	data, err := hackpadfs.ReadFile(h.backend.fs, h.backend.join(h.name))
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("durable: reading %q: %w", h.name, err)
	}
	return data, nil
}

// Store replaces the database image.
func (h *Handle) Store(data []byte) error {
	if err := hackpadfs.WriteFullFile(h.backend.fs, h.backend.join(h.name), data, 0o644); err != nil {
		return fmt.Errorf("durable: writing %q: %w", h.name, err)
	}
	return nil
}

// Release gives up the write lock. Best effort: it runs before tab unload
// so the next session can open without contention.
func (h *Handle) Release() error {
	var err error
	h.once.Do(func() {
		err = hackpadfs.Remove(h.backend.fs, h.lock)
	})
	return err
}
