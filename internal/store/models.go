// Package store implements the persistence core for the canvas: the fixed
// schema, the record codec, connection management with contention fallback,
// and the storage API consumed by the rest of the application.
package store

import "encoding/json"

// StoreName identifies one of the fixed set of tables.
type StoreName string

const (
	StoreNodes        StoreName = "nodes"
	StoreEdges        StoreName = "edges"
	StoreMedia        StoreName = "media"
	StoreMeta         StoreName = "meta"
	StoreTabs         StoreName = "tabs"
	StoreNodeText     StoreName = "node_text"
	StoreChatThreads  StoreName = "chat_threads"
	StoreChatMessages StoreName = "chat_messages"
)

// AllStores lists every table in schema order.
var AllStores = []StoreName{
	StoreTabs,
	StoreNodes,
	StoreEdges,
	StoreMedia,
	StoreNodeText,
	StoreChatThreads,
	StoreChatMessages,
	StoreMeta,
}

// Tab is a canvas container. Deleting one cascades to its nodes and edges.
type Tab struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	IconKey   string `json:"iconKey,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Node is the persisted form of a canvas element: the full typed record
// lives in the opaque Data column, tab id is lifted out for indexing.
type Node struct {
	ID    string          `json:"id"`
	TabID string          `json:"tabId"`
	Data  json.RawMessage `json:"data"`
}

// Edge connects two nodes within a tab. Same hybrid shape as Node.
type Edge struct {
	ID    string          `json:"id"`
	TabID string          `json:"tabId"`
	Data  json.RawMessage `json:"data"`
}

// MediaBlob holds the raw bytes of a dropped or pasted file. Node payloads
// reference it by id, never embed it.
type MediaBlob struct {
	ID        string `json:"id"`
	Blob      []byte `json:"blob"`
	Mime      string `json:"mime"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"createdAt"`
	FileName  string `json:"fileName,omitempty"`
}

// NodeText is extracted plain text (OCR, PDF) for one source node.
type NodeText struct {
	NodeID    string `json:"nodeId"`
	PlainText string `json:"plainText"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ChatThread is a conversation. Closed threads are hidden, not deleted.
type ChatThread struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Closed    bool   `json:"closed,omitempty"`
}

// ChatMessage is one turn in a thread. Content mutates in place while a
// response streams.
type ChatMessage struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	SourceNodeID string `json:"sourceNodeId,omitempty"`
	SourceTitle  string `json:"sourceTitle,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

// MetaEntry is a small process-wide setting keyed by name.
type MetaEntry struct {
	Key   string          `json:"k"`
	Value json.RawMessage `json:"v"`
}

// MetaLastActiveThread is the meta key pointing at the current chat thread.
const MetaLastActiveThread = "lastActiveThreadId"
