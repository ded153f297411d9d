// Package query evaluates structured, declarative queries over stored
// canvas nodes. Specifications arrive from the manual query builder or
// from natural-language interpretation; this package treats both the same
// and validates before touching storage.
package query

import (
	"encoding/json"
	"fmt"
)

// Public node type vocabulary accepted in NodeTypes filters and returned
// in results.
const (
	TypeNote  = "note"
	TypeTodo  = "todo"
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeFile  = "file"
	TypeLink  = "link"
)

// Derived status values.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusOverdue    = "overdue"
)

// Scope selects which containers a query covers.
type Scope struct {
	Type  string `json:"type"` // "global" | "tab"
	TabID string `json:"tabId,omitempty"`
}

// TextSearch is a substring (full-text) or all-terms (fuzzy) clause over
// title, serialized payload and extracted text.
type TextSearch struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"` // "full-text" (default) | "fuzzy"
}

// DateValue is either a single timestamp or a {from,to} range, matching
// the wire shape produced by query builders.
type DateValue struct {
	At      int64
	From    int64
	To      int64
	IsRange bool
}

func (v *DateValue) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*v = DateValue{At: n}
		return nil
	}
	var r struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return fmt.Errorf("date value must be a number or {from,to}: %w", err)
	}
	*v = DateValue{From: r.From, To: r.To, IsRange: true}
	return nil
}

func (v DateValue) MarshalJSON() ([]byte, error) {
	if v.IsRange {
		return json.Marshal(struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		}{v.From, v.To})
	}
	return json.Marshal(v.At)
}

// DateFilter constrains one of the fixed date fields.
type DateFilter struct {
	Field string    `json:"field"` // createdAt | updatedAt | dueDate
	Op    string    `json:"op"`    // before | after | between
	Value DateValue `json:"value"`
}

// StatusFilter matches against the derived todo status.
type StatusFilter struct {
	Field  string   `json:"field"` // always "status"
	Values []string `json:"values"`
}

// Sort orders results by one field.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // asc | desc
}

// Spec is the full query specification as it arrives on the wire. Scope
// is mandatory; everything else narrows the result.
type Spec struct {
	Scope           Scope         `json:"scope"`
	NodeTypes       []string      `json:"nodeTypes,omitempty"`
	MustHaveTags    []string      `json:"mustHaveTags,omitempty"`
	MustNotHaveTags []string      `json:"mustNotHaveTags,omitempty"`
	TextSearch      *TextSearch   `json:"textSearch,omitempty"`
	DateFilters     []DateFilter  `json:"dateFilters,omitempty"`
	StatusFilter    *StatusFilter `json:"statusFilter,omitempty"`
	Limit           int           `json:"limit,omitempty"`
	Sort            *Sort         `json:"sort,omitempty"`
}

var dateFields = map[string]bool{"createdAt": true, "updatedAt": true, "dueDate": true}
var sortFields = map[string]bool{"createdAt": true, "updatedAt": true, "dueDate": true, "title": true}
var statusValues = map[string]bool{StatusComplete: true, StatusIncomplete: true, StatusOverdue: true}

// Validate rejects a malformed specification before any storage access.
// Errors name the offending field.
func (s *Spec) Validate() error {
	switch s.Scope.Type {
	case "global":
		if s.Scope.TabID != "" {
			return fmt.Errorf("query: scope.tabId must be empty for global scope")
		}
	case "tab":
		if s.Scope.TabID == "" {
			return fmt.Errorf("query: scope.tabId is required for tab scope")
		}
	case "":
		return fmt.Errorf("query: scope.type is required")
	default:
		return fmt.Errorf("query: scope.type %q is not one of global, tab", s.Scope.Type)
	}

	if ts := s.TextSearch; ts != nil {
		switch ts.Mode {
		case "", "full-text", "fuzzy":
		default:
			return fmt.Errorf("query: textSearch.mode %q is not one of full-text, fuzzy", ts.Mode)
		}
	}

	for i, f := range s.DateFilters {
		if !dateFields[f.Field] {
			return fmt.Errorf("query: dateFilters[%d].field %q is not one of createdAt, updatedAt, dueDate", i, f.Field)
		}
		switch f.Op {
		case "before", "after":
			if f.Value.IsRange {
				return fmt.Errorf("query: dateFilters[%d].value must be a number for op %q", i, f.Op)
			}
		case "between":
			if !f.Value.IsRange {
				return fmt.Errorf("query: dateFilters[%d].value must be {from,to} for op between", i)
			}
		default:
			return fmt.Errorf("query: dateFilters[%d].op %q is not one of before, after, between", i, f.Op)
		}
	}

	if sf := s.StatusFilter; sf != nil {
		if sf.Field != "status" {
			return fmt.Errorf("query: statusFilter.field must be %q", "status")
		}
		for _, v := range sf.Values {
			if !statusValues[v] {
				return fmt.Errorf("query: statusFilter value %q is not one of complete, incomplete, overdue", v)
			}
		}
	}

	if s.Limit < 0 {
		return fmt.Errorf("query: limit must not be negative")
	}

	if so := s.Sort; so != nil {
		if !sortFields[so.Field] {
			return fmt.Errorf("query: sort.field %q is not sortable", so.Field)
		}
		switch so.Direction {
		case "asc", "desc":
		default:
			return fmt.Errorf("query: sort.direction %q is not one of asc, desc", so.Direction)
		}
	}
	return nil
}

// Result is one query match, projected for UI and chat-context consumers.
type Result struct {
	NodeID      string `json:"nodeId"`
	TabID       string `json:"tabId"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
	DueDate     int64  `json:"dueDate,omitempty"`
	Important   bool   `json:"important,omitempty"`
	PlainText   string `json:"plainText,omitempty"`
	NoteContent string `json:"noteContent,omitempty"`
}
