package query

import "github.com/loomcanvas/goloom/internal/canvas"

// deriveStatus classifies a todo checklist relative to now.
//
// A node is "incomplete" while any unfinished item is still actionable
// (no due date, or due on or after now). Only when every unfinished item
// is past due does the node become "overdue". With nothing unfinished it
// is "complete". Non-todo nodes have no status and match no status filter.
func deriveStatus(p *canvas.TodoPayload, now int64) string {
	anyOpen := false
	anyActionable := false
	for _, it := range p.Items {
		if it.Done {
			continue
		}
		anyOpen = true
		if it.DueDate == 0 || it.DueDate >= now {
			anyActionable = true
		}
	}
	switch {
	case !anyOpen:
		return StatusComplete
	case anyActionable:
		return StatusIncomplete
	default:
		return StatusOverdue
	}
}
