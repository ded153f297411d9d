// Package canvas defines the in-memory graph-node model and the transform
// between it and the minimal persisted form. The UI owns the live shape;
// the persisted shape is an independently owned snapshot.
package canvas

import "encoding/json"

// NodeType is the internal type tag carried by persisted payloads.
type NodeType string

const (
	TypeNote  NodeType = "noteNode"
	TypeTodo  NodeType = "todoNode"
	TypeImage NodeType = "imageNode"
	TypeVideo NodeType = "videoNode"
	TypeAudio NodeType = "audioNode"
	TypeFile  NodeType = "fileNode"
	TypeLink  NodeType = "linkNode"
)

// Position is a node's canvas placement.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CanvasNode is the live in-memory node. Fields below the marker exist
// only while rendering and are never persisted.
type CanvasNode struct {
	ID        string
	TabID     string
	Type      NodeType
	Position  Position
	Title     string
	Tags      []string
	CreatedAt int64
	UpdatedAt int64
	DueDate   int64
	Important bool
	Payload   Payload

	// Render-only. BlobURL is a revocable object URL resolved per session;
	// RawFile is the original dropped file's bytes before media ingestion.
	BlobURL string
	RawFile []byte
}

// Payload is the type-specific body of a node. The node's Type tag, not
// the payload, decides how it is interpreted; media-backed types share
// MediaPayload.
type Payload interface {
	isPayload()
}

// NotePayload is freeform rich text.
type NotePayload struct {
	Content string `json:"content"`
}

func (NotePayload) isPayload() {}

// TodoItem is one entry in a todo node.
type TodoItem struct {
	Text    string `json:"text"`
	Done    bool   `json:"done"`
	DueDate int64  `json:"dueDate,omitempty"`
}

// TodoPayload is a checklist.
type TodoPayload struct {
	Items []TodoItem `json:"items"`
}

func (TodoPayload) isPayload() {}

// MediaPayload references a stored media blob by id; the binary itself is
// never embedded. Preview is a small inline thumbnail data URL.
type MediaPayload struct {
	MediaID  string `json:"mediaId"`
	FileName string `json:"fileName,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

func (MediaPayload) isPayload() {}

// LinkPayload is a bookmarked URL.
type LinkPayload struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

func (LinkPayload) isPayload() {}

// PersistedNode is the durable record stored in the nodes table's data
// column. Fields common to all node types are lifted to the envelope so
// the query engine can read them without knowing the payload shape.
type PersistedNode struct {
	ID        string          `json:"id"`
	TabID     string          `json:"tabId"`
	Type      NodeType        `json:"type"`
	Position  Position        `json:"position"`
	Title     string          `json:"title,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	CreatedAt int64           `json:"createdAt,omitempty"`
	UpdatedAt int64           `json:"updatedAt,omitempty"`
	DueDate   int64           `json:"dueDate,omitempty"`
	Important bool            `json:"important,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// mediaBacked reports whether a node type renders from a media blob.
func mediaBacked(t NodeType) bool {
	switch t {
	case TypeImage, TypeVideo, TypeAudio, TypeFile:
		return true
	}
	return false
}
