package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/loomcanvas/goloom/internal/engine"
)

// The codec translates typed records to and from SQL rows. Binary media
// content rides as base64 text because the row transport is text-based.

var tableCols = map[StoreName][]string{
	StoreTabs:         {"id", "title", "icon_key", "created_at", "updated_at"},
	StoreNodes:        {"id", "tab_id", "data"},
	StoreEdges:        {"id", "tab_id", "data"},
	StoreMedia:        {"id", "blob_base64", "mime", "size", "created_at", "file_name"},
	StoreNodeText:     {"node_id", "plain_text", "updated_at"},
	StoreChatThreads:  {"id", "title", "created_at", "updated_at", "closed"},
	StoreChatMessages: {"id", "thread_id", "role", "content", "source_node_id", "source_title", "created_at"},
	StoreMeta:         {"k", "v"},
}

// insertSQL builds the write statement for one table. Upserts use
// insert-or-replace semantics keyed by the primary key, so a retried write
// after a transient failure never duplicates a row.
func insertSQL(s StoreName, upsert bool) (string, error) {
	info, ok := tables[s]
	if !ok {
		return "", fmt.Errorf("store: unknown store %q", s)
	}
	cols := tableCols[s]
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", info.name, strings.Join(cols, ", "), placeholders)
	if upsert {
		fmt.Fprintf(&b, " ON CONFLICT(%s) DO UPDATE SET ", info.pk)
		first := true
		for _, col := range cols {
			if col == info.pk {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s = excluded.%s", col, col)
			first = false
		}
	}
	return b.String(), nil
}

func encodeArgs(s StoreName, rec any) ([]any, error) {
	switch s {
	case StoreTabs:
		t, err := as[Tab](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{t.ID, t.Title, t.IconKey, t.CreatedAt, t.UpdatedAt}, nil
	case StoreNodes:
		n, err := as[Node](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{n.ID, n.TabID, string(n.Data)}, nil
	case StoreEdges:
		e, err := as[Edge](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{e.ID, e.TabID, string(e.Data)}, nil
	case StoreMedia:
		m, err := as[MediaBlob](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{m.ID, base64.StdEncoding.EncodeToString(m.Blob), m.Mime, m.Size, m.CreatedAt, m.FileName}, nil
	case StoreNodeText:
		t, err := as[NodeText](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{t.NodeID, t.PlainText, t.UpdatedAt}, nil
	case StoreChatThreads:
		t, err := as[ChatThread](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{t.ID, t.Title, t.CreatedAt, t.UpdatedAt, boolToInt(t.Closed)}, nil
	case StoreChatMessages:
		m, err := as[ChatMessage](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{m.ID, m.ThreadID, m.Role, m.Content, m.SourceNodeID, m.SourceTitle, m.CreatedAt}, nil
	case StoreMeta:
		m, err := as[MetaEntry](s, rec)
		if err != nil {
			return nil, err
		}
		return []any{m.Key, string(m.Value)}, nil
	}
	return nil, fmt.Errorf("store: unknown store %q", s)
}

func decodeRecord(s StoreName, row engine.Row) (any, error) {
	switch s {
	case StoreTabs:
		return &Tab{
			ID:        colStr(row, "id"),
			Title:     colStr(row, "title"),
			IconKey:   colStr(row, "icon_key"),
			CreatedAt: colInt(row, "created_at"),
			UpdatedAt: colInt(row, "updated_at"),
		}, nil
	case StoreNodes:
		return &Node{
			ID:    colStr(row, "id"),
			TabID: colStr(row, "tab_id"),
			Data:  json.RawMessage(colStr(row, "data")),
		}, nil
	case StoreEdges:
		return &Edge{
			ID:    colStr(row, "id"),
			TabID: colStr(row, "tab_id"),
			Data:  json.RawMessage(colStr(row, "data")),
		}, nil
	case StoreMedia:
		blob, err := base64.StdEncoding.DecodeString(colStr(row, "blob_base64"))
		if err != nil {
			return nil, fmt.Errorf("store: media %s: corrupt blob encoding: %w", colStr(row, "id"), err)
		}
		return &MediaBlob{
			ID:        colStr(row, "id"),
			Blob:      blob,
			Mime:      colStr(row, "mime"),
			Size:      colInt(row, "size"),
			CreatedAt: colInt(row, "created_at"),
			FileName:  colStr(row, "file_name"),
		}, nil
	case StoreNodeText:
		return &NodeText{
			NodeID:    colStr(row, "node_id"),
			PlainText: colStr(row, "plain_text"),
			UpdatedAt: colInt(row, "updated_at"),
		}, nil
	case StoreChatThreads:
		return &ChatThread{
			ID:        colStr(row, "id"),
			Title:     colStr(row, "title"),
			CreatedAt: colInt(row, "created_at"),
			UpdatedAt: colInt(row, "updated_at"),
			Closed:    colInt(row, "closed") != 0,
		}, nil
	case StoreChatMessages:
		return &ChatMessage{
			ID:           colStr(row, "id"),
			ThreadID:     colStr(row, "thread_id"),
			Role:         colStr(row, "role"),
			Content:      colStr(row, "content"),
			SourceNodeID: colStr(row, "source_node_id"),
			SourceTitle:  colStr(row, "source_title"),
			CreatedAt:    colInt(row, "created_at"),
		}, nil
	case StoreMeta:
		return &MetaEntry{
			Key:   colStr(row, "k"),
			Value: json.RawMessage(colStr(row, "v")),
		}, nil
	}
	return nil, fmt.Errorf("store: unknown store %q", s)
}

func recordKey(s StoreName, rec any) (string, error) {
	switch s {
	case StoreTabs:
		t, err := as[Tab](s, rec)
		if err != nil {
			return "", err
		}
		return t.ID, nil
	case StoreNodes:
		n, err := as[Node](s, rec)
		if err != nil {
			return "", err
		}
		return n.ID, nil
	case StoreEdges:
		e, err := as[Edge](s, rec)
		if err != nil {
			return "", err
		}
		return e.ID, nil
	case StoreMedia:
		m, err := as[MediaBlob](s, rec)
		if err != nil {
			return "", err
		}
		return m.ID, nil
	case StoreNodeText:
		t, err := as[NodeText](s, rec)
		if err != nil {
			return "", err
		}
		return t.NodeID, nil
	case StoreChatThreads:
		t, err := as[ChatThread](s, rec)
		if err != nil {
			return "", err
		}
		return t.ID, nil
	case StoreChatMessages:
		m, err := as[ChatMessage](s, rec)
		if err != nil {
			return "", err
		}
		return m.ID, nil
	case StoreMeta:
		m, err := as[MetaEntry](s, rec)
		if err != nil {
			return "", err
		}
		return m.Key, nil
	}
	return "", fmt.Errorf("store: unknown store %q", s)
}

// as accepts either *T or T for ergonomic call sites.
func as[T any](s StoreName, rec any) (*T, error) {
	switch v := rec.(type) {
	case *T:
		return v, nil
	case T:
		return &v, nil
	}
	return nil, fmt.Errorf("store: %s: unexpected record type %T", s, rec)
}

func colStr(row engine.Row, col string) string {
	switch v := row[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func colInt(row engine.Row, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
