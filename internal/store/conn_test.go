package store

import (
	"context"
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomcanvas/goloom/internal/durable"
)

func TestConnManager_EphemeralSession(t *testing.T) {
	cm := NewConnManager(nil, "test.db", nil)
	ctx := context.Background()

	require.NoError(t, cm.Open(ctx))
	assert.Equal(t, StateOpen, cm.State())
	assert.False(t, cm.IsUsingMemoryFallback())
	assert.Nil(t, cm.Handle())

	_, err := cm.Exec(ctx, "SELECT COUNT(*) AS n FROM tabs")
	require.NoError(t, err)

	require.NoError(t, cm.Close())
	assert.Equal(t, StateClosed, cm.State())

	_, err = cm.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, cm.Close())
}

func TestConnManager_SecondSessionFallsBack(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewConnManager(durable.NewOSBackend(dir), "loom.db", nil)
	require.NoError(t, first.Open(ctx))
	defer first.Close()
	assert.Equal(t, StateOpen, first.State())

	second := NewConnManager(durable.NewOSBackend(dir), "loom.db", nil)
	require.NoError(t, second.Open(ctx))
	defer second.Close()

	assert.Equal(t, StateMemoryFallback, second.State())
	assert.True(t, second.IsUsingMemoryFallback())
	assert.Nil(t, second.Handle())

	// The degraded session still serves reads and writes, just volatile.
	_, err := second.Exec(ctx, "INSERT INTO meta (k, v) VALUES ('a', '1')")
	require.NoError(t, err)

	// The winner is unaffected and does not see the loser's writes.
	res, err := first.Exec(ctx, "SELECT COUNT(*) AS n FROM meta")
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Rows[0]["n"])
}

func TestConnManager_LockFreedAfterClose(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewConnManager(durable.NewOSBackend(dir), "loom.db", nil)
	require.NoError(t, first.Open(ctx))
	_, err := first.Exec(ctx, "INSERT INTO meta (k, v) VALUES ('a', '1')")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A fresh session takes over the file and sees the durable write.
	second := NewConnManager(durable.NewOSBackend(dir), "loom.db", nil)
	require.NoError(t, second.Open(ctx))
	defer second.Close()

	assert.Equal(t, StateOpen, second.State())
	res, err := second.Exec(ctx, "SELECT v FROM meta WHERE k = 'a'")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0]["v"])
}

func TestConnManager_SnapshotBackedSession(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	backend := durable.NewFSBackend(fs)
	ctx := context.Background()

	cm := NewConnManager(backend, "loom.db", nil)
	require.NoError(t, cm.Open(ctx))
	defer cm.Close()

	// Not path-addressable, so the engine is volatile but the handle is
	// durable: the session counts as Open, not fallback.
	assert.Equal(t, StateOpen, cm.State())
	require.NotNil(t, cm.Handle())
	assert.Equal(t, "", cm.Handle().Path())

	_, err = cm.Exec(ctx, "SELECT COUNT(*) AS n FROM tabs")
	require.NoError(t, err)
}

func TestStore_SnapshotPersistsAcrossSessions(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	ctx := context.Background()

	// Session one writes and closes, flushing an image snapshot.
	s1 := New(NewConnManager(durable.NewFSBackend(fs), "loom.db", nil), nil)
	require.NoError(t, s1.Open(ctx))
	require.NoError(t, s1.Put(ctx, StoreNodes, &Node{ID: "n1", TabID: "t1", Data: []byte(`{"title":"kept"}`)}))
	require.NoError(t, s1.Close(ctx))

	// Session two restores the image on open.
	s2 := New(NewConnManager(durable.NewFSBackend(fs), "loom.db", nil), nil)
	require.NoError(t, s2.Open(ctx))
	defer s2.Close(ctx)

	node, err := s2.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.JSONEq(t, `{"title":"kept"}`, string(node.Data))
}
