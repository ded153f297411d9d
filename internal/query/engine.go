package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/loomcanvas/goloom/internal/canvas"
	"github.com/loomcanvas/goloom/internal/engine"
	"github.com/loomcanvas/goloom/pkg/textmatch"
)

// Execer is the slice of the connection layer the query engine needs.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (*engine.Result, error)
}

// Engine executes validated query specifications. Containment is pushed
// down to SQL; everything that lives inside the JSON envelope is filtered
// in process after decoding.
type Engine struct {
	db  Execer
	log *slog.Logger
	now func() int64
}

// New builds a query engine over db.
func New(db Execer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		db:  db,
		log: log,
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

// Internal persisted tags keyed by the public vocabulary, and back.
var internalType = map[string]canvas.NodeType{
	TypeNote:  canvas.TypeNote,
	TypeTodo:  canvas.TypeTodo,
	TypeImage: canvas.TypeImage,
	TypeVideo: canvas.TypeVideo,
	TypeAudio: canvas.TypeAudio,
	TypeFile:  canvas.TypeFile,
	TypeLink:  canvas.TypeLink,
}

var publicType = func() map[canvas.NodeType]string {
	m := make(map[canvas.NodeType]string, len(internalType))
	for pub, in := range internalType {
		m[in] = pub
	}
	return m
}()

// candidate is one decoded node moving through the filter chain.
type candidate struct {
	node      canvas.PersistedNode
	plainText string
}

// Execute runs spec and returns matches in sort order. A malformed spec
// fails before any storage access; rows whose envelope no longer decodes
// are logged and skipped rather than failing the whole query.
func (e *Engine) Execute(ctx context.Context, spec *Spec) ([]Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	sql := `SELECT n.id, n.tab_id, n.data, COALESCE(t.plain_text, '') AS plain_text
FROM nodes n LEFT JOIN node_text t ON t.node_id = n.id`
	var args []any
	if spec.Scope.Type == "tab" {
		sql += " WHERE n.tab_id = ?"
		args = append(args, spec.Scope.TabID)
	}

	res, err := e.db.Exec(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: loading nodes: %w", err)
	}

	cands := make([]candidate, 0, len(res.Rows))
	for _, row := range res.Rows {
		id, _ := row["id"].(string)
		data, _ := row["data"].(string)
		var p canvas.PersistedNode
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			e.log.Warn("skipping undecodable node", "id", id, "error", err)
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		if tab, ok := row["tab_id"].(string); ok && tab != "" {
			p.TabID = tab
		}
		// Only tags with a public name are queryable; anything else is a
		// record from a newer schema and is dropped, not surfaced raw.
		if _, ok := publicType[p.Type]; !ok {
			e.log.Warn("skipping node with unmapped type", "id", p.ID, "type", string(p.Type))
			continue
		}
		plain, _ := row["plain_text"].(string)
		cands = append(cands, candidate{node: p, plainText: plain})
	}

	cands, err = e.filter(cands, spec)
	if err != nil {
		return nil, err
	}
	if spec.Sort != nil {
		sortCandidates(cands, spec.Sort)
	}
	if spec.Limit > 0 && len(cands) > spec.Limit {
		cands = cands[:spec.Limit]
	}

	out := make([]Result, 0, len(cands))
	for _, c := range cands {
		out = append(out, project(c))
	}
	return out, nil
}

func (e *Engine) filter(cands []candidate, spec *Spec) ([]candidate, error) {
	// Cheapest predicates first; text matching runs on whatever survives.
	if len(spec.NodeTypes) > 0 {
		want := make(map[canvas.NodeType]bool, len(spec.NodeTypes))
		for _, t := range spec.NodeTypes {
			if in, ok := internalType[t]; ok {
				want[in] = true
			}
		}
		cands = keep(cands, func(c candidate) bool { return want[c.node.Type] })
	}

	if sf := spec.StatusFilter; sf != nil && len(sf.Values) > 0 {
		now := e.now()
		want := make(map[string]bool, len(sf.Values))
		for _, v := range sf.Values {
			want[v] = true
		}
		cands = keep(cands, func(c candidate) bool {
			if c.node.Type != canvas.TypeTodo {
				return false
			}
			var p canvas.TodoPayload
			if len(c.node.Data) > 0 {
				if err := json.Unmarshal(c.node.Data, &p); err != nil {
					e.log.Warn("skipping todo with undecodable payload", "id", c.node.ID, "error", err)
					return false
				}
			}
			return want[deriveStatus(&p, now)]
		})
	}

	if len(spec.MustHaveTags) > 0 || len(spec.MustNotHaveTags) > 0 {
		cands = keep(cands, func(c candidate) bool {
			tags := make(map[string]bool, len(c.node.Tags))
			for _, t := range c.node.Tags {
				tags[strings.ToLower(t)] = true
			}
			for _, t := range spec.MustHaveTags {
				if !tags[strings.ToLower(t)] {
					return false
				}
			}
			for _, t := range spec.MustNotHaveTags {
				if tags[strings.ToLower(t)] {
					return false
				}
			}
			return true
		})
	}

	for _, f := range spec.DateFilters {
		f := f
		cands = keep(cands, func(c candidate) bool { return matchDate(c.node, f) })
	}

	if ts := spec.TextSearch; ts != nil && strings.TrimSpace(ts.Query) != "" {
		mode := textmatch.Mode(ts.Mode)
		if ts.Mode == "" {
			mode = textmatch.ModeFullText
		}
		m, err := textmatch.New(ts.Query, mode)
		if err != nil {
			return nil, fmt.Errorf("query: text search: %w", err)
		}
		cands = keep(cands, func(c candidate) bool {
			return m.Match(haystack(c))
		})
	}
	return cands, nil
}

func keep(cands []candidate, pred func(candidate) bool) []candidate {
	out := cands[:0]
	for _, c := range cands {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

func matchDate(n canvas.PersistedNode, f DateFilter) bool {
	var v int64
	switch f.Field {
	case "createdAt":
		v = n.CreatedAt
	case "updatedAt":
		v = n.UpdatedAt
	case "dueDate":
		v = n.DueDate
	}
	if v == 0 {
		return false
	}
	switch f.Op {
	case "before":
		return v < f.Value.At
	case "after":
		return v > f.Value.At
	case "between":
		return v >= f.Value.From && v <= f.Value.To
	}
	return false
}

// haystack is the searchable text of a node: title, extracted plain text,
// and the serialized payload itself so link URLs and file names match too.
func haystack(c candidate) string {
	var b strings.Builder
	b.WriteString(c.node.Title)
	b.WriteByte('\n')
	b.WriteString(c.plainText)
	if len(c.node.Data) > 0 {
		b.WriteByte('\n')
		b.Write(c.node.Data)
	}
	return b.String()
}

// sortCandidates orders by the requested field. Nodes missing the field
// sort last regardless of direction so sparse fields like dueDate do not
// flood the top of descending results.
func sortCandidates(cands []candidate, s *Sort) {
	desc := s.Direction == "desc"
	sort.SliceStable(cands, func(i, j int) bool {
		if s.Field == "title" {
			a, b := cands[i].node.Title, cands[j].node.Title
			if (a == "") != (b == "") {
				return b == ""
			}
			if desc {
				return strings.ToLower(a) > strings.ToLower(b)
			}
			return strings.ToLower(a) < strings.ToLower(b)
		}
		a := dateField(cands[i].node, s.Field)
		b := dateField(cands[j].node, s.Field)
		if (a == 0) != (b == 0) {
			return b == 0
		}
		if desc {
			return a > b
		}
		return a < b
	})
}

func dateField(n canvas.PersistedNode, field string) int64 {
	switch field {
	case "createdAt":
		return n.CreatedAt
	case "updatedAt":
		return n.UpdatedAt
	case "dueDate":
		return n.DueDate
	}
	return 0
}

func project(c candidate) Result {
	r := Result{
		NodeID:    c.node.ID,
		TabID:     c.node.TabID,
		Type:      publicType[c.node.Type],
		Title:     c.node.Title,
		CreatedAt: c.node.CreatedAt,
		DueDate:   c.node.DueDate,
		Important: c.node.Important,
		PlainText: c.plainText,
	}
	if c.node.Type == canvas.TypeNote && len(c.node.Data) > 0 {
		var p canvas.NotePayload
		if json.Unmarshal(c.node.Data, &p) == nil {
			r.NoteContent = p.Content
		}
	}
	return r
}
