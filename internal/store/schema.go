package store

// schema defines every table of the canvas database. Two shapes coexist:
// nodes and edges store the full record as an opaque JSON column plus the
// tab discriminator (payload shapes vary by node type, the table never
// changes); everything else is read and written as whole typed objects and
// gets one column per field. Referential integrity is managed at the
// application level, not with engine foreign keys.
const schema = `
CREATE TABLE IF NOT EXISTS tabs (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    icon_key TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    tab_id TEXT NOT NULL,
    data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_tab ON nodes(tab_id);

CREATE TABLE IF NOT EXISTS edges (
    id TEXT PRIMARY KEY,
    tab_id TEXT NOT NULL,
    data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_tab ON edges(tab_id);

CREATE TABLE IF NOT EXISTS media (
    id TEXT PRIMARY KEY,
    blob_base64 TEXT NOT NULL,
    mime TEXT NOT NULL,
    size INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    file_name TEXT
);

CREATE TABLE IF NOT EXISTS node_text (
    node_id TEXT PRIMARY KEY,
    plain_text TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_threads (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    closed INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    source_node_id TEXT,
    source_title TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_thread ON chat_messages(thread_id);

CREATE TABLE IF NOT EXISTS meta (
    k TEXT PRIMARY KEY,
    v TEXT NOT NULL
);
`

type tableInfo struct {
	name string
	pk   string
	// indexed is the one secondary-indexed column usable with
	// GetAllFromIndex, "" when the table has none.
	indexed string
}

var tables = map[StoreName]tableInfo{
	StoreTabs:         {name: "tabs", pk: "id"},
	StoreNodes:        {name: "nodes", pk: "id", indexed: "tab_id"},
	StoreEdges:        {name: "edges", pk: "id", indexed: "tab_id"},
	StoreMedia:        {name: "media", pk: "id"},
	StoreNodeText:     {name: "node_text", pk: "node_id"},
	StoreChatThreads:  {name: "chat_threads", pk: "id"},
	StoreChatMessages: {name: "chat_messages", pk: "id", indexed: "thread_id"},
	StoreMeta:         {name: "meta", pk: "k"},
}
