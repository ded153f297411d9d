package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// exportData is the whole-database snapshot shape. It doubles as the
// persistence image for durable backends without a real file path and as
// the loomctl export format.
type exportData struct {
	Version      int            `json:"version"`
	Tabs         []*Tab         `json:"tabs"`
	Nodes        []*Node        `json:"nodes"`
	Edges        []*Edge        `json:"edges"`
	Media        []*MediaBlob   `json:"media"`
	NodeText     []*NodeText    `json:"nodeText"`
	ChatThreads  []*ChatThread  `json:"chatThreads"`
	ChatMessages []*ChatMessage `json:"chatMessages"`
	Meta         []*MetaEntry   `json:"meta"`
}

const exportVersion = 1

// Export serializes every table to JSON bytes.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	data := exportData{Version: exportVersion}

	collect := func(name StoreName, sink func(rec any)) error {
		recs, err := s.GetAll(ctx, name)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			sink(rec)
		}
		return nil
	}

	steps := []struct {
		name StoreName
		sink func(rec any)
	}{
		{StoreTabs, func(r any) { data.Tabs = append(data.Tabs, r.(*Tab)) }},
		{StoreNodes, func(r any) { data.Nodes = append(data.Nodes, r.(*Node)) }},
		{StoreEdges, func(r any) { data.Edges = append(data.Edges, r.(*Edge)) }},
		{StoreMedia, func(r any) { data.Media = append(data.Media, r.(*MediaBlob)) }},
		{StoreNodeText, func(r any) { data.NodeText = append(data.NodeText, r.(*NodeText)) }},
		{StoreChatThreads, func(r any) { data.ChatThreads = append(data.ChatThreads, r.(*ChatThread)) }},
		{StoreChatMessages, func(r any) { data.ChatMessages = append(data.ChatMessages, r.(*ChatMessage)) }},
		{StoreMeta, func(r any) { data.Meta = append(data.Meta, r.(*MetaEntry)) }},
	}
	for _, step := range steps {
		if err := collect(step.name, step.sink); err != nil {
			return nil, err
		}
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: encoding export: %w", err)
	}
	return out, nil
}

// Import replaces the database contents with a previously exported
// snapshot.
func (s *Store) Import(ctx context.Context, raw []byte) error {
	var data exportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("store: decoding import: %w", err)
	}

	for _, name := range AllStores {
		if err := s.ClearStore(ctx, name); err != nil {
			return err
		}
	}

	put := func(name StoreName, recs []any) error {
		return s.BulkPut(ctx, name, recs)
	}
	if err := put(StoreTabs, anySlice(data.Tabs)); err != nil {
		return err
	}
	if err := put(StoreNodes, anySlice(data.Nodes)); err != nil {
		return err
	}
	if err := put(StoreEdges, anySlice(data.Edges)); err != nil {
		return err
	}
	if err := put(StoreMedia, anySlice(data.Media)); err != nil {
		return err
	}
	if err := put(StoreNodeText, anySlice(data.NodeText)); err != nil {
		return err
	}
	if err := put(StoreChatThreads, anySlice(data.ChatThreads)); err != nil {
		return err
	}
	if err := put(StoreChatMessages, anySlice(data.ChatMessages)); err != nil {
		return err
	}
	return put(StoreMeta, anySlice(data.Meta))
}

func anySlice[T any](in []*T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
