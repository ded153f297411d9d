//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"
	"time"

	"github.com/hack-pad/hackpadfs/indexeddb"

	"github.com/loomcanvas/goloom/internal/durable"
	"github.com/loomcanvas/goloom/internal/query"
	"github.com/loomcanvas/goloom/internal/store"
)

// Version info
const Version = "0.1.0"

// Global state. The bridge is single-threaded from the JS side, so one
// store and one query engine per worker is all there is.
var (
	st      *store.Store
	queries *query.Engine
	coal    *store.WriteCoalescer
)

func main() {
	println("[GoLoom] WASM Ready v" + Version)

	js.Global().Set("GoLoom", js.ValueOf(map[string]interface{}{
		"version":               js.FuncOf(getVersion),
		"openDb":                js.FuncOf(openDb),
		"closeDb":               js.FuncOf(closeDb),
		"isUsingMemoryFallback": js.FuncOf(isUsingMemoryFallback),
		// Record API (records travel as JSON strings)
		"add":             js.FuncOf(add),
		"put":             js.FuncOf(put),
		"putDeferred":     js.FuncOf(putDeferred),
		"flush":           js.FuncOf(flush),
		"get":             js.FuncOf(get),
		"getAll":          js.FuncOf(getAll),
		"getAllFromIndex": js.FuncOf(getAllFromIndex),
		"bulkPut":         js.FuncOf(bulkPut),
		"deleteKey":       js.FuncOf(deleteKey),
		"bulkDelete":      js.FuncOf(bulkDelete),
		"clearStore":      js.FuncOf(clearStore),
		"count":           js.FuncOf(count),
		// Query + backup API
		"execQuery": js.FuncOf(execQuery),
		"exportDb":  js.FuncOf(exportDb),
		"importDb":  js.FuncOf(importDb),
	}))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// openDb initializes the IndexedDB-backed store.
// Args: [] or [dbName string]
func openDb(this js.Value, args []js.Value) interface{} {
	if st != nil {
		return successResult("already open")
	}
	dbName := "goloom"
	if len(args) > 0 {
		dbName = args[0].String()
	}

	fs, err := indexeddb.NewFS(context.Background(), dbName, indexeddb.Options{})
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}

	cm := store.NewConnManager(durable.NewFSBackend(fs), "loom.db", nil)
	s := store.New(cm, nil)
	if err := s.Open(context.Background()); err != nil {
		return errorResult("open failed: " + err.Error())
	}
	st = s
	queries = query.New(s.Conn(), nil)
	coal = store.NewWriteCoalescer(s, store.DefaultCoalesceDelay)
	return successResult("opened")
}

// closeDb flushes pending writes and releases the database.
func closeDb(this js.Value, args []js.Value) interface{} {
	if st == nil {
		return successResult("not open")
	}
	if err := coal.Close(context.Background()); err != nil {
		return errorResult("flush failed: " + err.Error())
	}
	if err := st.Close(context.Background()); err != nil {
		return errorResult("close failed: " + err.Error())
	}
	st, queries, coal = nil, nil, nil
	return successResult("closed")
}

func isUsingMemoryFallback(this js.Value, args []js.Value) interface{} {
	if st == nil {
		return errorResult("store not open")
	}
	return st.IsUsingMemoryFallback()
}

// add inserts one record and fails if the key already exists.
// Args: [storeName string, recordJSON string]
func add(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("add requires 2 args: storeName, recordJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	name := store.StoreName(args[0].String())
	rec, err := decodeWireRecord(name, args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	if err := st.Add(context.Background(), name, rec); err != nil {
		return errorResult(err.Error())
	}
	return successResult("added")
}

// put writes one record immediately.
// Args: [storeName string, recordJSON string]
func put(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("put requires 2 args: storeName, recordJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	name := store.StoreName(args[0].String())
	rec, err := decodeWireRecord(name, args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	if err := st.Put(context.Background(), name, rec); err != nil {
		return errorResult(err.Error())
	}
	return successResult("put")
}

// putDeferred enqueues a write through the coalescer; rapid updates to the
// same record collapse into one flush.
// Args: [storeName string, recordJSON string]
func putDeferred(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("putDeferred requires 2 args: storeName, recordJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	name := store.StoreName(args[0].String())
	rec, err := decodeWireRecord(name, args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	if err := coal.Enqueue(name, rec); err != nil {
		return errorResult(err.Error())
	}
	return successResult("queued")
}

// flush forces all coalesced writes to storage now.
func flush(this js.Value, args []js.Value) interface{} {
	if st == nil {
		return errorResult("store not open")
	}
	if err := coal.Flush(context.Background()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("flushed")
}

// get fetches one record by key. Returns the record JSON, or "null".
// Args: [storeName string, key string]
func get(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("get requires 2 args: storeName, key")
	}
	if st == nil {
		return errorResult("store not open")
	}
	rec, err := st.Get(context.Background(), store.StoreName(args[0].String()), args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return marshalResult(rec)
}

// getAll returns every record in a store as a JSON array.
// Args: [storeName string]
func getAll(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("getAll requires 1 arg: storeName")
	}
	if st == nil {
		return errorResult("store not open")
	}
	recs, err := st.GetAll(context.Background(), store.StoreName(args[0].String()))
	if err != nil {
		return errorResult(err.Error())
	}
	return marshalResult(recs)
}

// getAllFromIndex returns records matching an indexed column.
// Args: [storeName string, indexName string, value string]
func getAllFromIndex(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("getAllFromIndex requires 3 args: storeName, indexName, value")
	}
	if st == nil {
		return errorResult("store not open")
	}
	recs, err := st.GetAllFromIndex(context.Background(),
		store.StoreName(args[0].String()), args[1].String(), args[2].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return marshalResult(recs)
}

// bulkPut upserts a JSON array of records.
// Args: [storeName string, recordsJSON string]
func bulkPut(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("bulkPut requires 2 args: storeName, recordsJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	name := store.StoreName(args[0].String())
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(args[1].String()), &raws); err != nil {
		return errorResult("invalid records json: " + err.Error())
	}
	recs := make([]any, 0, len(raws))
	for _, raw := range raws {
		rec, err := decodeWireRecord(name, string(raw))
		if err != nil {
			return errorResult(err.Error())
		}
		recs = append(recs, rec)
	}
	if err := st.BulkPut(context.Background(), name, recs); err != nil {
		return errorResult(err.Error())
	}
	return successResult("put")
}

// deleteKey removes one record (cascading for tabs).
// Args: [storeName string, key string]
func deleteKey(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("deleteKey requires 2 args: storeName, key")
	}
	if st == nil {
		return errorResult("store not open")
	}
	if err := st.DeleteKey(context.Background(), store.StoreName(args[0].String()), args[1].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("deleted")
}

// bulkDelete removes a JSON array of keys.
// Args: [storeName string, keysJSON string]
func bulkDelete(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("bulkDelete requires 2 args: storeName, keysJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	var keys []string
	if err := json.Unmarshal([]byte(args[1].String()), &keys); err != nil {
		return errorResult("invalid keys json: " + err.Error())
	}
	if err := st.BulkDelete(context.Background(), store.StoreName(args[0].String()), keys); err != nil {
		return errorResult(err.Error())
	}
	return successResult("deleted")
}

// clearStore removes every record in a store.
// Args: [storeName string]
func clearStore(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("clearStore requires 1 arg: storeName")
	}
	if st == nil {
		return errorResult("store not open")
	}
	if err := st.ClearStore(context.Background(), store.StoreName(args[0].String())); err != nil {
		return errorResult(err.Error())
	}
	return successResult("cleared")
}

// count returns the record count for a store.
// Args: [storeName string]
func count(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("count requires 1 arg: storeName")
	}
	if st == nil {
		return errorResult("store not open")
	}
	n, err := st.Count(context.Background(), store.StoreName(args[0].String()))
	if err != nil {
		return errorResult(err.Error())
	}
	return n
}

// execQuery runs a structured query specification.
// Args: [specJSON string]
func execQuery(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("execQuery requires 1 arg: specJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	var spec query.Spec
	if err := json.Unmarshal([]byte(args[0].String()), &spec); err != nil {
		return errorResult("invalid query json: " + err.Error())
	}
	start := time.Now()
	results, err := queries.Execute(context.Background(), &spec)
	if err != nil {
		return errorResult(err.Error())
	}
	response := map[string]interface{}{
		"results":   results,
		"timing_us": time.Since(start).Microseconds(),
	}
	jsonBytes, err := json.Marshal(response)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}

// exportDb dumps the whole database as a portable JSON document.
func exportDb(this js.Value, args []js.Value) interface{} {
	if st == nil {
		return errorResult("store not open")
	}
	data, err := st.Export(context.Background())
	if err != nil {
		return errorResult(err.Error())
	}
	return string(data)
}

// importDb replaces the database contents from an exported document.
// Args: [dataJSON string]
func importDb(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("importDb requires 1 arg: dataJSON")
	}
	if st == nil {
		return errorResult("store not open")
	}
	if err := st.Import(context.Background(), []byte(args[0].String())); err != nil {
		return errorResult(err.Error())
	}
	return successResult("imported")
}

// decodeWireRecord unmarshals a JSON record into the typed form the codec
// expects for the given store.
func decodeWireRecord(name store.StoreName, raw string) (any, error) {
	var rec any
	switch name {
	case store.StoreTabs:
		rec = &store.Tab{}
	case store.StoreNodes:
		rec = &store.Node{}
	case store.StoreEdges:
		rec = &store.Edge{}
	case store.StoreMedia:
		rec = &store.MediaBlob{}
	case store.StoreNodeText:
		rec = &store.NodeText{}
	case store.StoreChatThreads:
		rec = &store.ChatThread{}
	case store.StoreChatMessages:
		rec = &store.ChatMessage{}
	case store.StoreMeta:
		rec = &store.MetaEntry{}
	default:
		return nil, fmt.Errorf("unknown store %q", name)
	}
	if err := json.Unmarshal([]byte(raw), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Helper: Marshal a read result ("null" for a missing record)
func marshalResult(v any) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
