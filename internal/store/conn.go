package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomcanvas/goloom/internal/durable"
	"github.com/loomcanvas/goloom/internal/engine"
)

// State is the connection lifecycle:
// Uninitialized -> Opening -> (Open | MemoryFallback) -> Closed.
// Open may drop to MemoryFallback on an access-conflict signal at any time;
// MemoryFallback never goes back within a session. Transitions happen only
// as the outcome of an open or exec call, never on a timer.
type State int

const (
	StateUninitialized State = iota
	StateOpening
	StateOpen
	StateMemoryFallback
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateMemoryFallback:
		return "memory-fallback"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrClosed is returned for storage calls after Close.
var ErrClosed = errors.New("store: connection manager is closed")

const (
	maxAttempts = 5
	backoffStep = 100 * time.Millisecond
)

// ConnManager owns the single live engine connection for this session.
// No other component opens one. It lazily connects on first use, retries
// busy signals with bounded linear backoff, and permanently downgrades to
// a volatile in-memory database when another session holds the durable
// file's write lock.
type ConnManager struct {
	backend *durable.Backend // nil means a deliberately ephemeral session
	name    string
	log     *slog.Logger

	mu     sync.Mutex
	state  State
	client *engine.Client
	handle *durable.Handle
}

// NewConnManager builds a manager for the named database file. Construct
// exactly one per process and inject it wherever storage is needed.
func NewConnManager(backend *durable.Backend, name string, log *slog.Logger) *ConnManager {
	if log == nil {
		log = slog.Default()
	}
	return &ConnManager{backend: backend, name: name, log: log}
}

// State reports the current lifecycle state.
func (m *ConnManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsUsingMemoryFallback reports whether the session was downgraded to a
// volatile database. Sticky for the life of the session; the UI uses it to
// warn that nothing will survive a reload.
func (m *ConnManager) IsUsingMemoryFallback() bool {
	return m.State() == StateMemoryFallback
}

// Handle exposes the durable handle, nil in memory-fallback or ephemeral
// sessions. The store uses it for image snapshots when the backing
// filesystem is not path-addressable.
func (m *ConnManager) Handle() *durable.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Open eagerly establishes the connection. Optional; Exec connects lazily.
func (m *ConnManager) Open(ctx context.Context) error {
	_, err := m.conn(ctx)
	return err
}

// Exec runs one statement through the engine, retrying transient busy
// signals and downgrading on access conflicts. Anything else propagates to
// the caller as a storage error.
func (m *ConnManager) Exec(ctx context.Context, query string, args ...any) (*engine.Result, error) {
	client, err := m.conn(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := client.Exec(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if engine.IsContention(err) {
			client, err = m.downgrade(ctx)
			if err != nil {
				return nil, err
			}
			continue
		}
		if !engine.IsBusy(err) {
			return nil, err
		}
		lastErr = err
		if err := sleep(ctx, time.Duration(attempt)*backoffStep); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("store: database busy after %d attempts: %w", maxAttempts, lastErr)
}

// conn returns the live client, opening it on first use.
func (m *ConnManager) conn(ctx context.Context) (*engine.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateOpen, StateMemoryFallback:
		return m.client, nil
	case StateClosed:
		return nil, ErrClosed
	}

	m.state = StateOpening
	client, handle, fellBack, err := m.openLocked(ctx)
	if err != nil {
		m.state = StateUninitialized
		return nil, err
	}
	m.client = client
	m.handle = handle
	if fellBack {
		m.state = StateMemoryFallback
	} else {
		m.state = StateOpen
	}
	return client, nil
}

func (m *ConnManager) openLocked(ctx context.Context) (*engine.Client, *durable.Handle, bool, error) {
	if m.backend == nil {
		client, err := m.openMemoryLocked(ctx)
		return client, nil, false, err
	}

	handle, err := m.backend.Acquire(m.name)
	if errors.Is(err, durable.ErrContention) {
		m.log.Warn("canvas database is held by another session; this session will not persist",
			"db", m.name)
		client, err := m.openMemoryLocked(ctx)
		return client, nil, true, err
	}
	if err != nil {
		return nil, nil, false, err
	}

	path := handle.Path()
	if path == "" {
		// Not path-addressable: the engine runs in memory and the store
		// persists through image snapshots on the handle. Still durable.
		client, err := m.openMemoryLocked(ctx)
		if err != nil {
			handle.Release()
			return nil, nil, false, err
		}
		return client, handle, false, nil
	}

	var client *engine.Client
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, lastErr = engine.Open(path)
		if lastErr == nil {
			break
		}
		if engine.IsContention(lastErr) {
			handle.Release()
			m.log.Warn("canvas database open hit an access conflict; falling back to memory",
				"db", m.name, "err", lastErr)
			c, err := m.openMemoryLocked(ctx)
			return c, nil, true, err
		}
		if !engine.IsBusy(lastErr) {
			handle.Release()
			return nil, nil, false, lastErr
		}
		if err := sleep(ctx, time.Duration(attempt)*backoffStep); err != nil {
			handle.Release()
			return nil, nil, false, err
		}
	}
	if lastErr != nil {
		handle.Release()
		return nil, nil, false, fmt.Errorf("store: open busy after %d attempts: %w", maxAttempts, lastErr)
	}

	if err := createSchema(ctx, client); err != nil {
		client.Close()
		handle.Release()
		return nil, nil, false, err
	}
	return client, handle, false, nil
}

func (m *ConnManager) openMemoryLocked(ctx context.Context) (*engine.Client, error) {
	client, err := engine.OpenMemory()
	if err != nil {
		return nil, err
	}
	if err := createSchema(ctx, client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// downgrade performs the one-way Open -> MemoryFallback transition after a
// mid-session access conflict. Existing durable data stays on disk for the
// winning session; this session continues against a fresh volatile copy.
func (m *ConnManager) downgrade(ctx context.Context) (*engine.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateMemoryFallback {
		return m.client, nil
	}
	if m.state == StateClosed {
		return nil, ErrClosed
	}

	m.log.Warn("canvas database access conflict; session degraded to memory, changes will not persist",
		"db", m.name)

	if m.client != nil {
		m.client.Close()
	}
	if m.handle != nil {
		m.handle.Release()
		m.handle = nil
	}

	client, err := m.openMemoryLocked(ctx)
	if err != nil {
		m.state = StateUninitialized
		return nil, err
	}
	m.client = client
	m.state = StateMemoryFallback
	return client, nil
}

// Close releases the connection and the durable write lock, best effort,
// so the next session can open without contention.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return nil
	}
	var err error
	if m.client != nil {
		err = m.client.Close()
		m.client = nil
	}
	if m.handle != nil {
		if rerr := m.handle.Release(); err == nil {
			err = rerr
		}
		m.handle = nil
	}
	m.state = StateClosed
	return err
}

func createSchema(ctx context.Context, client *engine.Client) error {
	if _, err := client.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
