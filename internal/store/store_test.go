package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a store over an ephemeral in-memory session.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	cm := NewConnManager(nil, "test.db", nil)
	s := New(cm, nil)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestOpen_CreatesDefaultTab(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tabs, err := s.Tabs(ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, DefaultTabTitle, tabs[0].Title)
	assert.NotEmpty(t, tabs[0].ID)

	// A second Open-equivalent pass must not create another.
	require.NoError(t, s.ensureDefaultTab(ctx))
	n, err := s.Count(ctx, StoreTabs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPut_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := &Node{ID: "n1", TabID: "t1", Data: []byte(`{"title":"one"}`)}
	require.NoError(t, s.Put(ctx, StoreNodes, node))

	node.Data = []byte(`{"title":"two"}`)
	require.NoError(t, s.Put(ctx, StoreNodes, node))

	got, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"title":"two"}`, string(got.Data))

	n, err := s.Count(ctx, StoreNodes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdd_RejectsDuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &Node{ID: "n1", TabID: "t1", Data: []byte(`{}`)}
	require.NoError(t, s.Add(ctx, StoreNodes, rec))
	assert.Error(t, s.Add(ctx, StoreNodes, rec))
}

func TestGet_MissingIsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetNode(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetAllFromIndex_FiltersByTab(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: "a1", TabID: "tab-a", Data: []byte(`{}`)}))
	require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: "a2", TabID: "tab-a", Data: []byte(`{}`)}))
	require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: "b1", TabID: "tab-b", Data: []byte(`{}`)}))

	nodes, err := s.NodesByTab(ctx, "tab-a")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	// Only the declared index column is queryable.
	_, err = s.GetAllFromIndex(ctx, StoreNodes, "data", "x")
	assert.Error(t, err)
	_, err = s.GetAllFromIndex(ctx, StoreTabs, "title", "x")
	assert.Error(t, err)
}

func TestDeleteTab_CascadesToNodesAndEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := int64(1700000000000)
	require.NoError(t, s.Put(ctx, StoreTabs, &Tab{ID: "tab-a", Title: "A", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: "n1", TabID: "tab-a", Data: []byte(`{}`)}))
	require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: "n2", TabID: "other", Data: []byte(`{}`)}))
	require.NoError(t, s.Put(ctx, StoreEdges, &Edge{ID: "e1", TabID: "tab-a", Data: []byte(`{}`)}))

	require.NoError(t, s.DeleteKey(ctx, StoreTabs, "tab-a"))

	got, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Nil(t, got, "node in deleted tab should be gone")

	got, err = s.GetNode(ctx, "n2")
	require.NoError(t, err)
	assert.NotNil(t, got, "node in another tab must survive")

	edges, err := s.EdgesByTab(ctx, "tab-a")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestMedia_BinaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blob := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff, 0x7f}
	media := &MediaBlob{
		ID:        "m1",
		Blob:      blob,
		Mime:      "image/png",
		Size:      int64(len(blob)),
		CreatedAt: 1700000000000,
		FileName:  "pixel.png",
	}
	require.NoError(t, s.Put(ctx, StoreMedia, media))

	got, err := s.GetMedia(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, blob, got.Blob)
	assert.Equal(t, "image/png", got.Mime)
	assert.Equal(t, int64(len(blob)), got.Size)
	assert.Equal(t, "pixel.png", got.FileName)
}

func TestBulkDelete_And_ClearStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: id, TabID: "t", Data: []byte(`{}`)}))
	}

	require.NoError(t, s.BulkDelete(ctx, StoreNodes, []string{"n1", "n3"}))
	n, err := s.Count(ctx, StoreNodes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.ClearStore(ctx, StoreNodes))
	n, err = s.Count(ctx, StoreNodes)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMeta_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetMeta(ctx, "sidebar", map[string]any{"open": true, "width": 240}))

	var out struct {
		Open  bool `json:"open"`
		Width int  `json:"width"`
	}
	ok, err := s.GetMeta(ctx, "sidebar", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.Open)
	assert.Equal(t, 240, out.Width)

	ok, err = s.GetMeta(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChatMessages_OrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"m3", "m1", "m2"} {
		require.NoError(t, s.Put(ctx, StoreChatMessages, &ChatMessage{
			ID: id, ThreadID: "th", Role: "user", Content: id,
			CreatedAt: int64(100 - i), // written newest-first
		}))
	}

	msgs, err := s.MessagesByThread(ctx, "th")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, "m1", msgs[1].ID)
	assert.Equal(t, "m3", msgs[2].ID)
}

func TestChatThreads_HideClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, StoreChatThreads, &ChatThread{ID: "open", Title: "Open"}))
	require.NoError(t, s.Put(ctx, StoreChatThreads, &ChatThread{ID: "done", Title: "Done", Closed: true}))

	threads, err := s.ChatThreads(ctx, false)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "open", threads[0].ID)

	threads, err = s.ChatThreads(ctx, true)
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestDefaultThread_LazyAndSticky(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.DefaultThread(ctx)
	require.NoError(t, err)
	require.NotNil(t, th)

	again, err := s.DefaultThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, th.ID, again.ID, "default thread must be remembered, not recreated")

	n, err := s.Count(ctx, StoreChatThreads)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExportImport_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, StoreNodes, &Node{ID: "n1", TabID: "t1", Data: []byte(`{"title":"x"}`)}))
	require.NoError(t, s.Put(ctx, StoreMedia, &MediaBlob{ID: "m1", Blob: []byte{1, 2, 3}, Mime: "image/png", Size: 3}))
	require.NoError(t, s.SetMeta(ctx, "k", "v"))

	data, err := s.Export(ctx)
	require.NoError(t, err)

	other := newTestStore(t)
	require.NoError(t, other.Import(ctx, data))

	node, err := other.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.JSONEq(t, `{"title":"x"}`, string(node.Data))

	media, err := other.GetMedia(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, media)
	assert.Equal(t, []byte{1, 2, 3}, media.Blob)

	// Import replaces: the destination's pre-import default tab is gone,
	// superseded by the source's tabs.
	tabs, err := other.Tabs(ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, DefaultTabTitle, tabs[0].Title)
}

func TestImport_RejectsGarbage(t *testing.T) {
	s := newTestStore(t)

	err := s.Import(context.Background(), []byte("not json"))
	assert.Error(t, err)
}
