package canvas

import (
	"encoding/json"
	"fmt"

	"github.com/loomcanvas/goloom/internal/store"
)

// BlobURLResolver turns a media id into a freshly created object URL for
// rendering. Returning false means the media record is missing; decode
// degrades instead of failing so one lost blob cannot block a canvas load.
type BlobURLResolver func(mediaID string) (string, bool)

// Encode produces the minimal durable form of a node. Render-only fields
// (object URLs, raw file bytes) are stripped; media-bearing nodes persist
// only the media reference plus the inline preview, never the binary.
func Encode(n *CanvasNode) (*store.Node, error) {
	if n.ID == "" {
		return nil, fmt.Errorf("canvas: encoding node without id")
	}
	if n.TabID == "" {
		return nil, fmt.Errorf("canvas: encoding node %s without tab id", n.ID)
	}

	var data json.RawMessage
	if n.Payload != nil {
		raw, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, fmt.Errorf("canvas: encoding %s payload: %w", n.Type, err)
		}
		data = raw
	}

	p := PersistedNode{
		ID:        n.ID,
		TabID:     n.TabID,
		Type:      n.Type,
		Position:  n.Position,
		Title:     n.Title,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		DueDate:   n.DueDate,
		Important: n.Important,
		Data:      data,
	}
	raw, err := json.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("canvas: encoding node %s: %w", n.ID, err)
	}
	return &store.Node{ID: n.ID, TabID: n.TabID, Data: raw}, nil
}

// Decode reconstructs a renderable node from its persisted record,
// resolving media references to fresh blob URLs through resolve. All
// durable fields survive decode(encode(x)) exactly; the render-only
// fields are rebuilt or left empty.
func Decode(rec *store.Node, resolve BlobURLResolver) (*CanvasNode, error) {
	var p PersistedNode
	if err := json.Unmarshal(rec.Data, &p); err != nil {
		return nil, fmt.Errorf("canvas: decoding node %s: %w", rec.ID, err)
	}

	n := &CanvasNode{
		ID:        p.ID,
		TabID:     p.TabID,
		Type:      p.Type,
		Position:  p.Position,
		Title:     p.Title,
		Tags:      p.Tags,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		DueDate:   p.DueDate,
		Important: p.Important,
	}
	// The row is authoritative for identity and containment; the payload
	// copy may predate a move between tabs.
	if rec.ID != "" {
		n.ID = rec.ID
	}
	if rec.TabID != "" {
		n.TabID = rec.TabID
	}

	payload, err := decodePayload(p.Type, p.Data)
	if err != nil {
		return nil, err
	}
	n.Payload = payload

	if mp, ok := payload.(*MediaPayload); ok && resolve != nil && mp.MediaID != "" {
		if url, ok := resolve(mp.MediaID); ok {
			n.BlobURL = url
		}
		// Missing media: the node still loads, just without a blob URL.
	}
	return n, nil
}

func decodePayload(t NodeType, data json.RawMessage) (Payload, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	unmarshal := func(v Payload) (Payload, error) {
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("canvas: decoding %s payload: %w", t, err)
		}
		return v, nil
	}
	switch t {
	case TypeNote:
		return unmarshal(&NotePayload{})
	case TypeTodo:
		return unmarshal(&TodoPayload{})
	case TypeLink:
		return unmarshal(&LinkPayload{})
	default:
		if mediaBacked(t) {
			return unmarshal(&MediaPayload{})
		}
	}
	return nil, fmt.Errorf("canvas: unknown node type %q", t)
}
