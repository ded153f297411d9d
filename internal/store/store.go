package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTabTitle names the container created on first run.
const DefaultTabTitle = "My Canvas"

// Store is the storage API consumed by the rest of the application. All
// access to the engine goes through the injected ConnManager; the store
// never holds a second connection.
type Store struct {
	cm  *ConnManager
	log *slog.Logger
	now func() int64
}

// New builds a store over an existing connection manager.
func New(cm *ConnManager, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		cm:  cm,
		log: log,
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

// Conn exposes the connection manager for collaborators that share the
// engine binding (the query engine). Read-only use.
func (s *Store) Conn() *ConnManager { return s.cm }

// IsUsingMemoryFallback reports whether this session was degraded to a
// volatile database.
func (s *Store) IsUsingMemoryFallback() bool { return s.cm.IsUsingMemoryFallback() }

// Open establishes the connection, restores a snapshot image when the
// durable handle is not path-addressable, and guarantees a default
// container exists.
func (s *Store) Open(ctx context.Context) error {
	if err := s.cm.Open(ctx); err != nil {
		return err
	}
	if h := s.cm.Handle(); h != nil && h.Path() == "" {
		data, err := h.Load()
		if err != nil {
			return err
		}
		if len(data) > 0 {
			if err := s.Import(ctx, data); err != nil {
				return fmt.Errorf("store: restoring snapshot: %w", err)
			}
		}
	}
	return s.ensureDefaultTab(ctx)
}

// Close flushes a snapshot image if needed and releases the connection.
func (s *Store) Close(ctx context.Context) error {
	if h := s.cm.Handle(); h != nil && h.Path() == "" && s.cm.State() == StateOpen {
		data, err := s.Export(ctx)
		if err != nil {
			s.log.Warn("snapshot export failed on close", "err", err)
		} else if err := h.Store(data); err != nil {
			s.log.Warn("snapshot write failed on close", "err", err)
		}
	}
	return s.cm.Close()
}

func (s *Store) ensureDefaultTab(ctx context.Context) error {
	n, err := s.Count(ctx, StoreTabs)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	now := s.now()
	return s.Put(ctx, StoreTabs, &Tab{
		ID:        uuid.NewString(),
		Title:     DefaultTabTitle,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Put writes a record with upsert semantics.
func (s *Store) Put(ctx context.Context, name StoreName, rec any) error {
	return s.write(ctx, name, rec, true)
}

// Add writes a record, failing if the key already exists.
func (s *Store) Add(ctx context.Context, name StoreName, rec any) error {
	return s.write(ctx, name, rec, false)
}

func (s *Store) write(ctx context.Context, name StoreName, rec any, upsert bool) error {
	sql, err := insertSQL(name, upsert)
	if err != nil {
		return err
	}
	args, err := encodeArgs(name, rec)
	if err != nil {
		return err
	}
	if _, err := s.cm.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("store: writing to %s: %w", name, err)
	}
	return nil
}

// BulkPut upserts records one by one on the single connection, so they
// apply in issue order.
func (s *Store) BulkPut(ctx context.Context, name StoreName, recs []any) error {
	for _, rec := range recs {
		if err := s.Put(ctx, name, rec); err != nil {
			return err
		}
	}
	return nil
}

// Get fetches one record by primary key, nil when missing.
func (s *Store) Get(ctx context.Context, name StoreName, key string) (any, error) {
	info, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown store %q", name)
	}
	res, err := s.cm.Exec(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", info.name, info.pk), key)
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", name, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return decodeRecord(name, res.Rows[0])
}

// GetAll returns every record in a store. Rows the codec cannot decode are
// skipped with a warning; one corrupt row must not abort a bulk read.
func (s *Store) GetAll(ctx context.Context, name StoreName) ([]any, error) {
	info, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown store %q", name)
	}
	return s.selectAll(ctx, name, fmt.Sprintf("SELECT * FROM %s", info.name))
}

// GetAllFromIndex returns records matching a value on the store's indexed
// column (nodes/edges by tab, chat messages by thread).
func (s *Store) GetAllFromIndex(ctx context.Context, name StoreName, column, value string) ([]any, error) {
	info, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown store %q", name)
	}
	if info.indexed == "" || column != info.indexed {
		return nil, fmt.Errorf("store: %s has no index on %q", name, column)
	}
	return s.selectAll(ctx, name, fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", info.name, info.indexed), value)
}

func (s *Store) selectAll(ctx context.Context, name StoreName, query string, args ...any) ([]any, error) {
	res, err := s.cm.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", name, err)
	}
	recs := make([]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec, err := decodeRecord(name, row)
		if err != nil {
			s.log.Warn("skipping undecodable row", "store", string(name), "err", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// DeleteKey removes one record. Deleting a tab cascades to its nodes and
// edges; the cascade is explicit SQL, the schema carries no foreign keys.
func (s *Store) DeleteKey(ctx context.Context, name StoreName, key string) error {
	if name == StoreTabs {
		if _, err := s.cm.Exec(ctx, "DELETE FROM nodes WHERE tab_id = ?", key); err != nil {
			return fmt.Errorf("store: cascading node delete: %w", err)
		}
		if _, err := s.cm.Exec(ctx, "DELETE FROM edges WHERE tab_id = ?", key); err != nil {
			return fmt.Errorf("store: cascading edge delete: %w", err)
		}
	}
	info, ok := tables[name]
	if !ok {
		return fmt.Errorf("store: unknown store %q", name)
	}
	if _, err := s.cm.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", info.name, info.pk), key); err != nil {
		return fmt.Errorf("store: deleting from %s: %w", name, err)
	}
	return nil
}

// BulkDelete removes a batch of keys.
func (s *Store) BulkDelete(ctx context.Context, name StoreName, keys []string) error {
	for _, key := range keys {
		if err := s.DeleteKey(ctx, name, key); err != nil {
			return err
		}
	}
	return nil
}

// ClearStore removes every record in a store.
func (s *Store) ClearStore(ctx context.Context, name StoreName) error {
	info, ok := tables[name]
	if !ok {
		return fmt.Errorf("store: unknown store %q", name)
	}
	if _, err := s.cm.Exec(ctx, fmt.Sprintf("DELETE FROM %s", info.name)); err != nil {
		return fmt.Errorf("store: clearing %s: %w", name, err)
	}
	return nil
}

// Count returns the number of records in a store.
func (s *Store) Count(ctx context.Context, name StoreName) (int, error) {
	info, ok := tables[name]
	if !ok {
		return 0, fmt.Errorf("store: unknown store %q", name)
	}
	res, err := s.cm.Exec(ctx, fmt.Sprintf("SELECT COUNT(*) AS n FROM %s", info.name))
	if err != nil {
		return 0, fmt.Errorf("store: counting %s: %w", name, err)
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return int(colInt(res.Rows[0], "n")), nil
}

// =============================================================================
// Typed convenience accessors
// =============================================================================

// GetNode fetches one node, nil when missing.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	rec, err := s.Get(ctx, StoreNodes, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*Node), nil
}

// NodesByTab returns all nodes in one container.
func (s *Store) NodesByTab(ctx context.Context, tabID string) ([]*Node, error) {
	recs, err := s.GetAllFromIndex(ctx, StoreNodes, "tab_id", tabID)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(recs))
	for _, rec := range recs {
		nodes = append(nodes, rec.(*Node))
	}
	return nodes, nil
}

// EdgesByTab returns all edges in one container.
func (s *Store) EdgesByTab(ctx context.Context, tabID string) ([]*Edge, error) {
	recs, err := s.GetAllFromIndex(ctx, StoreEdges, "tab_id", tabID)
	if err != nil {
		return nil, err
	}
	edges := make([]*Edge, 0, len(recs))
	for _, rec := range recs {
		edges = append(edges, rec.(*Edge))
	}
	return edges, nil
}

// Tabs lists all containers.
func (s *Store) Tabs(ctx context.Context) ([]*Tab, error) {
	recs, err := s.GetAll(ctx, StoreTabs)
	if err != nil {
		return nil, err
	}
	tabs := make([]*Tab, 0, len(recs))
	for _, rec := range recs {
		tabs = append(tabs, rec.(*Tab))
	}
	return tabs, nil
}

// GetMedia fetches one media blob, nil when missing.
func (s *Store) GetMedia(ctx context.Context, id string) (*MediaBlob, error) {
	rec, err := s.Get(ctx, StoreMedia, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*MediaBlob), nil
}

// GetNodeText fetches the extracted text for a node, nil when missing.
func (s *Store) GetNodeText(ctx context.Context, nodeID string) (*NodeText, error) {
	rec, err := s.Get(ctx, StoreNodeText, nodeID)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*NodeText), nil
}

// MessagesByThread returns a thread's messages in creation order.
func (s *Store) MessagesByThread(ctx context.Context, threadID string) ([]*ChatMessage, error) {
	res, err := s.cm.Exec(ctx,
		"SELECT * FROM chat_messages WHERE thread_id = ? ORDER BY created_at", threadID)
	if err != nil {
		return nil, fmt.Errorf("store: reading chat_messages: %w", err)
	}
	msgs := make([]*ChatMessage, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec, err := decodeRecord(StoreChatMessages, row)
		if err != nil {
			s.log.Warn("skipping undecodable row", "store", "chat_messages", "err", err)
			continue
		}
		msgs = append(msgs, rec.(*ChatMessage))
	}
	return msgs, nil
}

// ChatThreads lists threads, hiding closed ones unless asked.
func (s *Store) ChatThreads(ctx context.Context, includeClosed bool) ([]*ChatThread, error) {
	recs, err := s.GetAll(ctx, StoreChatThreads)
	if err != nil {
		return nil, err
	}
	threads := make([]*ChatThread, 0, len(recs))
	for _, rec := range recs {
		t := rec.(*ChatThread)
		if t.Closed && !includeClosed {
			continue
		}
		threads = append(threads, t)
	}
	return threads, nil
}

// SetMeta stores one settings value.
func (s *Store) SetMeta(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encoding meta %q: %w", key, err)
	}
	return s.Put(ctx, StoreMeta, &MetaEntry{Key: key, Value: raw})
}

// GetMeta reads one settings value into out. Returns false when unset.
func (s *Store) GetMeta(ctx context.Context, key string, out any) (bool, error) {
	rec, err := s.Get(ctx, StoreMeta, key)
	if err != nil || rec == nil {
		return false, err
	}
	entry := rec.(*MetaEntry)
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return false, fmt.Errorf("store: decoding meta %q: %w", key, err)
	}
	return true, nil
}

// DefaultThread returns the last active chat thread, creating one lazily
// on first use and remembering it in meta.
func (s *Store) DefaultThread(ctx context.Context) (*ChatThread, error) {
	var id string
	ok, err := s.GetMeta(ctx, MetaLastActiveThread, &id)
	if err != nil {
		return nil, err
	}
	if ok && id != "" {
		rec, err := s.Get(ctx, StoreChatThreads, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec.(*ChatThread), nil
		}
	}

	now := s.now()
	thread := &ChatThread{
		ID:        uuid.NewString(),
		Title:     "New chat",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Put(ctx, StoreChatThreads, thread); err != nil {
		return nil, err
	}
	if err := s.SetMeta(ctx, MetaLastActiveThread, thread.ID); err != nil {
		return nil, err
	}
	return thread, nil
}
