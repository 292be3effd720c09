// ABOUTME: Optional DataProvider interface for exposing plugin data to the admin UI.
// ABOUTME: Rows are keyed by FieldSchema.Name; paging is offset based.

package core

import "context"

// DataProvider is implemented by plugins whose resources the admin UI can
// list. It is only called while the plugin is enabled.
type DataProvider interface {
	Plugin
	ListResources(ctx context.Context, resourceSlug string, opts ListOptions) ([]map[string]any, error)
}

// ListOptions selects one page of a resource. A zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// Page applies opts to rows that are already in memory. The result is never
// nil, so an out-of-range page renders as an empty table.
func Page[T any](rows []T, opts ListOptions) []T {
	if opts.Offset < 0 || opts.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows
}
