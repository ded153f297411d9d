package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomcanvas/goloom/internal/canvas"
	"github.com/loomcanvas/goloom/internal/store"
)

const testNow = int64(1_700_000_000_000)

// newTestEngine seeds a canvas across two tabs:
//
//	tab-a: a tagged note, a todo with one overdue and one open item, and
//	       an image whose extracted text mentions an invoice
//	tab-b: one untagged note
func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()

	cm := store.NewConnManager(nil, "test.db", nil)
	s := store.New(cm, nil)
	require.NoError(t, s.Open(ctx))
	t.Cleanup(func() { s.Close(ctx) })

	nodes := []*canvas.CanvasNode{
		{
			ID: "note-a", TabID: "tab-a", Type: canvas.TypeNote,
			Title: "Quarterly report", Tags: []string{"Work", "finance"},
			CreatedAt: 100, UpdatedAt: 150,
			Payload: &canvas.NotePayload{Content: "numbers are up"},
		},
		{
			ID: "todo-a", TabID: "tab-a", Type: canvas.TypeTodo,
			Title: "Chores", Tags: []string{"home"},
			CreatedAt: 200, UpdatedAt: 250, DueDate: testNow + 1000, Important: true,
			Payload: &canvas.TodoPayload{Items: []canvas.TodoItem{
				{Text: "taxes", Done: false, DueDate: testNow - 1000},
				{Text: "dishes", Done: false},
			}},
		},
		{
			ID: "image-a", TabID: "tab-a", Type: canvas.TypeImage,
			Title: "Scan", CreatedAt: 300, UpdatedAt: 300,
			Payload: &canvas.MediaPayload{MediaID: "m1", FileName: "scan.png"},
		},
		{
			ID: "note-b", TabID: "tab-b", Type: canvas.TypeNote,
			Title: "Packing list", CreatedAt: 400, UpdatedAt: 400,
			Payload: &canvas.NotePayload{Content: "socks"},
		},
	}
	for _, n := range nodes {
		rec, err := canvas.Encode(n)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, store.StoreNodes, rec))
	}
	require.NoError(t, s.Put(ctx, store.StoreNodeText, &store.NodeText{
		NodeID: "image-a", PlainText: "INVOICE #42 paid in full", UpdatedAt: 300,
	}))

	e := New(s.Conn(), nil)
	e.now = func() int64 { return testNow }
	return e, s
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.NodeID
	}
	return out
}

func TestExecute_GlobalScopeReturnsEverything(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Execute(context.Background(), &Spec{Scope: Scope{Type: "global"}})
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestExecute_TabScopeFilters(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Execute(context.Background(), &Spec{Scope: Scope{Type: "tab", TabID: "tab-a"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"note-a", "todo-a", "image-a"}, ids(results))
}

func TestExecute_NodeTypeFilter(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Execute(context.Background(), &Spec{
		Scope:     Scope{Type: "global"},
		NodeTypes: []string{"note"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"note-a", "note-b"}, ids(results))
}

func TestExecute_TagFilters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	results, err := e.Execute(ctx, &Spec{
		Scope:        Scope{Type: "global"},
		MustHaveTags: []string{"work"}, // case-insensitive against "Work"
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"note-a"}, ids(results))

	results, err = e.Execute(ctx, &Spec{
		Scope:           Scope{Type: "global"},
		NodeTypes:       []string{"note", "todo"},
		MustNotHaveTags: []string{"home"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"note-a", "note-b"}, ids(results))
}

func TestExecute_StatusFilter(t *testing.T) {
	e, _ := newTestEngine(t)

	// One item is past due but another is still actionable, so the todo
	// counts as incomplete, not overdue.
	results, err := e.Execute(context.Background(), &Spec{
		Scope:        Scope{Type: "global"},
		StatusFilter: &StatusFilter{Field: "status", Values: []string{StatusIncomplete}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"todo-a"}, ids(results))

	results, err = e.Execute(context.Background(), &Spec{
		Scope:        Scope{Type: "global"},
		StatusFilter: &StatusFilter{Field: "status", Values: []string{StatusOverdue}},
	})
	require.NoError(t, err)
	assert.Empty(t, results, "status filters match todos only, and this one is incomplete")
}

func TestExecute_DateFilters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// before is exclusive.
	results, err := e.Execute(ctx, &Spec{
		Scope:       Scope{Type: "global"},
		DateFilters: []DateFilter{{Field: "createdAt", Op: "before", Value: DateValue{At: 200}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"note-a"}, ids(results))

	// after is exclusive.
	results, err = e.Execute(ctx, &Spec{
		Scope:       Scope{Type: "global"},
		DateFilters: []DateFilter{{Field: "createdAt", Op: "after", Value: DateValue{At: 300}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"note-b"}, ids(results))

	// between includes both bounds.
	results, err = e.Execute(ctx, &Spec{
		Scope:       Scope{Type: "global"},
		DateFilters: []DateFilter{{Field: "createdAt", Op: "between", Value: DateValue{From: 200, To: 300, IsRange: true}}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"todo-a", "image-a"}, ids(results))

	// Nodes without the field never match.
	results, err = e.Execute(ctx, &Spec{
		Scope:       Scope{Type: "global"},
		DateFilters: []DateFilter{{Field: "dueDate", Op: "before", Value: DateValue{At: testNow + 2000}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"todo-a"}, ids(results))
}

func TestExecute_TextSearchCoversExtractedText(t *testing.T) {
	e, _ := newTestEngine(t)

	// "invoice" appears only in the image's extracted text, not in any
	// title or payload.
	results, err := e.Execute(context.Background(), &Spec{
		Scope:      Scope{Type: "global"},
		TextSearch: &TextSearch{Query: "invoice"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"image-a"}, ids(results))
	assert.Equal(t, "INVOICE #42 paid in full", results[0].PlainText)
}

func TestExecute_FuzzySearchRequiresAllTerms(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	results, err := e.Execute(ctx, &Spec{
		Scope:      Scope{Type: "global"},
		TextSearch: &TextSearch{Query: "the quarterly numbers", Mode: "fuzzy"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"note-a"}, ids(results))

	results, err = e.Execute(ctx, &Spec{
		Scope:      Scope{Type: "global"},
		TextSearch: &TextSearch{Query: "quarterly socks", Mode: "fuzzy"},
	})
	require.NoError(t, err)
	assert.Empty(t, results, "all significant terms must occur in one node")
}

func TestExecute_SortAndLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	results, err := e.Execute(ctx, &Spec{
		Scope: Scope{Type: "global"},
		Sort:  &Sort{Field: "createdAt", Direction: "desc"},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"note-b", "image-a"}, ids(results))

	// Only todo-a has a due date; nodes missing the sort field go last
	// in both directions.
	results, err = e.Execute(ctx, &Spec{
		Scope: Scope{Type: "global"},
		Sort:  &Sort{Field: "dueDate", Direction: "desc"},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "todo-a", results[0].NodeID)

	results, err = e.Execute(ctx, &Spec{
		Scope: Scope{Type: "global"},
		Sort:  &Sort{Field: "dueDate", Direction: "asc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "todo-a", results[0].NodeID)
}

func TestExecute_SortByTitle(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Execute(context.Background(), &Spec{
		Scope: Scope{Type: "global"},
		Sort:  &Sort{Field: "title", Direction: "asc"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"todo-a", "note-b", "note-a", "image-a"}, ids(results))
}

func TestExecute_ProjectsResultFields(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Execute(context.Background(), &Spec{
		Scope:      Scope{Type: "global"},
		NodeTypes:  []string{"note"},
		TextSearch: &TextSearch{Query: "numbers"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "note-a", r.NodeID)
	assert.Equal(t, "tab-a", r.TabID)
	assert.Equal(t, "note", r.Type, "results use the public type vocabulary")
	assert.Equal(t, "Quarterly report", r.Title)
	assert.Equal(t, int64(100), r.CreatedAt)
	assert.Equal(t, "numbers are up", r.NoteContent)
}

func TestExecute_SkipsCorruptRows(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.StoreNodes, &store.Node{
		ID: "corrupt", TabID: "tab-a", Data: []byte("{{not json"),
	}))

	results, err := e.Execute(ctx, &Spec{Scope: Scope{Type: "global"}})
	require.NoError(t, err, "one corrupt row must not fail the query")
	assert.NotContains(t, ids(results), "corrupt")
	assert.Len(t, results, 4)
}

func TestExecute_DropsUnmappedTypes(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// A record written by a newer schema carries a type tag this build
	// does not know. It must vanish from results, not leak the raw tag.
	require.NoError(t, s.Put(ctx, store.StoreNodes, &store.Node{
		ID: "future", TabID: "tab-a",
		Data: []byte(`{"id":"future","tabId":"tab-a","type":"holoNode","title":"from the future"}`),
	}))

	results, err := e.Execute(ctx, &Spec{Scope: Scope{Type: "global"}})
	require.NoError(t, err)
	assert.NotContains(t, ids(results), "future")
	assert.Len(t, results, 4)
	for _, r := range results {
		assert.NotEqual(t, "holoNode", r.Type)
	}
}

func TestExecute_MalformedSpecFailsFast(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Execute(context.Background(), &Spec{Scope: Scope{Type: "tab"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope.tabId")
}

func TestExecute_EmptyResultIsNotAnError(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Execute(context.Background(), &Spec{
		Scope:      Scope{Type: "global"},
		TextSearch: &TextSearch{Query: "zzzz-no-such-text"},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
