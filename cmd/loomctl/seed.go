// Seed command: populate a database with a small demo canvas.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomcanvas/goloom/internal/canvas"
	"github.com/loomcanvas/goloom/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with demo content",
	Long: `Seed writes a handful of nodes of every type into the default tab
so query and export commands have something to chew on.

Example:
  loomctl seed --data-dir ./demo`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	tabs, err := st.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	tab := tabs[0]

	now := time.Now().UnixMilli()
	day := int64(24 * time.Hour / time.Millisecond)

	nodes := []*canvas.CanvasNode{
		{
			ID: uuid.NewString(), TabID: tab.ID, Type: canvas.TypeNote,
			Position: canvas.Position{X: 40, Y: 40},
			Title:    "Welcome", Tags: []string{"intro"},
			CreatedAt: now, UpdatedAt: now,
			Payload: &canvas.NotePayload{Content: "Drag me around. Everything here survives a reload."},
		},
		{
			ID: uuid.NewString(), TabID: tab.ID, Type: canvas.TypeTodo,
			Position: canvas.Position{X: 320, Y: 40},
			Title:    "Launch checklist", Tags: []string{"work"},
			CreatedAt: now, UpdatedAt: now, DueDate: now + 7*day, Important: true,
			Payload: &canvas.TodoPayload{Items: []canvas.TodoItem{
				{Text: "Write release notes", Done: true},
				{Text: "Tag the build", Done: false, DueDate: now + 2*day},
				{Text: "Announce", Done: false},
			}},
		},
		{
			ID: uuid.NewString(), TabID: tab.ID, Type: canvas.TypeLink,
			Position: canvas.Position{X: 40, Y: 260},
			Title:    "Design doc", Tags: []string{"work", "reading"},
			CreatedAt: now, UpdatedAt: now,
			Payload: &canvas.LinkPayload{URL: "https://example.com/design", Description: "Canvas layout notes"},
		},
	}

	for _, n := range nodes {
		rec, err := canvas.Encode(n)
		if err != nil {
			return fmt.Errorf("encode node: %w", err)
		}
		if err := st.Put(ctx, store.StoreNodes, rec); err != nil {
			return fmt.Errorf("write node: %w", err)
		}
	}

	// Connect the note to the checklist so edges have coverage too.
	edge := &canvas.CanvasEdge{
		ID: uuid.NewString(), TabID: tab.ID,
		Source: nodes[0].ID, Target: nodes[1].ID,
	}
	rec, err := canvas.EncodeEdge(edge)
	if err != nil {
		return fmt.Errorf("encode edge: %w", err)
	}
	if err := st.Put(ctx, store.StoreEdges, rec); err != nil {
		return fmt.Errorf("write edge: %w", err)
	}

	fmt.Printf("Seeded %d nodes and 1 edge into tab %q\n", len(nodes), tab.Title)
	return nil
}
