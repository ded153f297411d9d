package canvas

import (
	"encoding/json"
	"fmt"

	"github.com/loomcanvas/goloom/internal/store"
)

// CanvasEdge is a connection between two nodes. Edges carry no render-only
// state, so the live and persisted shapes coincide.
type CanvasEdge struct {
	ID           string `json:"id"`
	TabID        string `json:"tabId"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// EncodeEdge produces the durable edge record.
func EncodeEdge(e *CanvasEdge) (*store.Edge, error) {
	if e.ID == "" || e.TabID == "" {
		return nil, fmt.Errorf("canvas: encoding edge without id or tab id")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("canvas: encoding edge %s: %w", e.ID, err)
	}
	return &store.Edge{ID: e.ID, TabID: e.TabID, Data: raw}, nil
}

// DecodeEdge reconstructs an edge from its persisted record.
func DecodeEdge(rec *store.Edge) (*CanvasEdge, error) {
	var e CanvasEdge
	if err := json.Unmarshal(rec.Data, &e); err != nil {
		return nil, fmt.Errorf("canvas: decoding edge %s: %w", rec.ID, err)
	}
	e.ID = rec.ID
	e.TabID = rec.TabID
	return &e, nil
}
