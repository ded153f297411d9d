// Package engine binds the embedded SQLite engine behind an asynchronous
// request/response client. The engine executes off the caller's goroutine:
// one owner goroutine holds the connection and serves requests one at a
// time, so callers never share the handle and writes issued sequentially
// apply in issue order.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is the ordered outcome of one statement.
type Result struct {
	Columns []string
	Rows    []Row
}

type request struct {
	sql  string
	args []any
	resp chan response
}

type response struct {
	result *Result
	err    error
}

// Client is the handle to one engine connection. Safe for concurrent use;
// requests are serialized by the owner goroutine.
type Client struct {
	requests chan request
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once
}

// Open connects to the database file at path.
func Open(path string) (*Client, error) {
	return open(path, false)
}

// OpenMemory connects to a fresh volatile database. Nothing written to it
// survives the client.
func OpenMemory() (*Client, error) {
	return open(":memory:", true)
}

func open(dsn string, mem bool) (*Client, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", dsn, err)
	}
	// Exactly one underlying connection, kept alive for the client's
	// lifetime. A :memory: database vanishes if the pool cycles it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrap(err)
	}
	if !mem {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, wrap(err)
		}
	}

	c := &Client{
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.serve(db)
	return c, nil
}

func (c *Client) serve(db *sql.DB) {
	defer close(c.done)
	defer db.Close()
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.requests:
			result, err := run(db, req.sql, req.args)
			req.resp <- response{result: result, err: err}
		}
	}
}

// Exec runs one SQL statement (or a parameterless script of statements)
// with positional parameters. The round trip suspends at ctx; abandoning
// the context does not cancel the statement, which still completes on the
// owner goroutine.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (*Result, error) {
	req := request{sql: query, args: args, resp: make(chan response, 1)}
	select {
	case c.requests <- req:
	case <-c.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.resp:
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the connection down and waits for the owner goroutine.
func (c *Client) Close() error {
	c.closing.Do(func() { close(c.quit) })
	<-c.done
	return nil
}

func run(db *sql.DB, query string, args []any) (*Result, error) {
	if !returnsRows(query) {
		if _, err := db.Exec(query, args...); err != nil {
			return nil, wrap(err)
		}
		return &Result{}, nil
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrap(err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrap(err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			// The row transport is text-based; hand blobs back as strings.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}
	return result, nil
}

func returnsRows(query string) bool {
	head := strings.TrimSpace(query)
	if i := strings.IndexAny(head, " \t\n\r("); i > 0 {
		head = head[:i]
	}
	switch strings.ToUpper(head) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN":
		return true
	}
	return false
}
