package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/loomcanvas/goloom/internal/canvas"
	"github.com/loomcanvas/goloom/internal/durable"
	"github.com/loomcanvas/goloom/internal/query"
	"github.com/loomcanvas/goloom/internal/store"
)

func main() {
	fmt.Println("Testing durable store...")
	testStore()

	fmt.Println("\nTesting query engine...")
	testQuery()

	fmt.Println("\n✅ All tests passed!")
}

func openStore(dir string) (*store.Store, func()) {
	ctx := context.Background()
	cm := store.NewConnManager(durable.NewOSBackend(dir), "loom.db", nil)
	s := store.New(cm, nil)
	if err := s.Open(ctx); err != nil {
		log.Fatalf("Open failed: %v", err)
	}
	return s, func() { _ = s.Close(ctx) }
}

func testStore() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "goloom-storetest-*")
	if err != nil {
		log.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s, closeStore := openStore(dir)
	defer closeStore()

	if s.IsUsingMemoryFallback() {
		log.Fatal("unexpected memory fallback on a fresh directory")
	}
	fmt.Println("  ✓ Open acquired the durable file")

	tabs, err := s.Tabs(ctx)
	if err != nil {
		log.Fatalf("Tabs failed: %v", err)
	}
	if len(tabs) != 1 || tabs[0].Title != store.DefaultTabTitle {
		log.Fatalf("expected one default tab, got %d", len(tabs))
	}
	tab := tabs[0]
	fmt.Println("  ✓ Default tab created")

	node := &canvas.CanvasNode{
		ID:        "node-1",
		TabID:     tab.ID,
		Type:      canvas.TypeNote,
		Title:     "First note",
		Tags:      []string{"demo"},
		CreatedAt: 1700000000000,
		UpdatedAt: 1700000000000,
		Payload:   &canvas.NotePayload{Content: "hello canvas"},
	}
	rec, err := canvas.Encode(node)
	if err != nil {
		log.Fatalf("Encode failed: %v", err)
	}
	if err := s.Put(ctx, store.StoreNodes, rec); err != nil {
		log.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, store.StoreNodes, rec); err != nil {
		log.Fatalf("Put (upsert) failed: %v", err)
	}
	fmt.Println("  ✓ Put is idempotent")

	stored, err := s.GetNode(ctx, "node-1")
	if err != nil {
		log.Fatalf("GetNode failed: %v", err)
	}
	if stored == nil {
		log.Fatal("GetNode returned nil")
	}
	back, err := canvas.Decode(stored, nil)
	if err != nil {
		log.Fatalf("Decode failed: %v", err)
	}
	if back.Title != node.Title || back.Payload.(*canvas.NotePayload).Content != "hello canvas" {
		log.Fatal("round-trip lost data")
	}
	fmt.Println("  ✓ Encode/Decode round-trip works")

	data, err := s.Export(ctx)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	if err := s.Import(ctx, data); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	n, err := s.Count(ctx, store.StoreNodes)
	if err != nil || n != 1 {
		log.Fatalf("expected 1 node after import, got %d (%v)", n, err)
	}
	fmt.Println("  ✓ Export/Import round-trip works")

	// A second session on the same directory must degrade, not corrupt.
	cm2 := store.NewConnManager(durable.NewOSBackend(dir), "loom.db", nil)
	s2 := store.New(cm2, nil)
	if err := s2.Open(context.Background()); err != nil {
		log.Fatalf("second Open failed: %v", err)
	}
	if !s2.IsUsingMemoryFallback() {
		log.Fatal("second session did not fall back to memory")
	}
	_ = s2.Close(context.Background())
	fmt.Println("  ✓ Contending session falls back to memory")
}

func testQuery() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "goloom-querytest-*")
	if err != nil {
		log.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s, closeStore := openStore(dir)
	defer closeStore()

	tabs, _ := s.Tabs(ctx)
	tab := tabs[0]

	seed := []*canvas.CanvasNode{
		{
			ID: "q-note", TabID: tab.ID, Type: canvas.TypeNote,
			Title: "Quarterly invoice", Tags: []string{"work"},
			CreatedAt: 100, UpdatedAt: 100,
			Payload: &canvas.NotePayload{Content: "pay the invoice"},
		},
		{
			ID: "q-todo", TabID: tab.ID, Type: canvas.TypeTodo,
			Title: "Chores", CreatedAt: 200, UpdatedAt: 200,
			Payload: &canvas.TodoPayload{Items: []canvas.TodoItem{
				{Text: "dishes", Done: false},
				{Text: "taxes", Done: false, DueDate: 1},
			}},
		},
	}
	for _, n := range seed {
		rec, err := canvas.Encode(n)
		if err != nil {
			log.Fatalf("Encode failed: %v", err)
		}
		if err := s.Put(ctx, store.StoreNodes, rec); err != nil {
			log.Fatalf("Put failed: %v", err)
		}
	}

	eng := query.New(s.Conn(), nil)

	spec := &query.Spec{
		Scope:      query.Scope{Type: "tab", TabID: tab.ID},
		TextSearch: &query.TextSearch{Query: "invoice"},
	}
	results, err := eng.Execute(ctx, spec)
	if err != nil {
		log.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 1 || results[0].NodeID != "q-note" {
		log.Fatalf("text search expected q-note, got %+v", results)
	}
	fmt.Println("  ✓ Text search works")

	raw := []byte(`{"scope":{"type":"global"},"statusFilter":{"field":"status","values":["incomplete"]}}`)
	spec = &query.Spec{}
	if err := json.Unmarshal(raw, spec); err != nil {
		log.Fatalf("Unmarshal failed: %v", err)
	}
	results, err = eng.Execute(ctx, spec)
	if err != nil {
		log.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 1 || results[0].NodeID != "q-todo" {
		log.Fatalf("status filter expected q-todo, got %+v", results)
	}
	fmt.Println("  ✓ Status filter works")

	if _, err := eng.Execute(ctx, &query.Spec{Scope: query.Scope{Type: "everywhere"}}); err == nil {
		log.Fatal("malformed scope was accepted")
	}
	fmt.Println("  ✓ Malformed specs are rejected")
}
