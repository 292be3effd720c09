// ABOUTME: SQL helper functions for query construction.
// ABOUTME: Escapes LIKE metacharacters for prefix filters.

package store

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeSQLLike makes pattern match literally in a LIKE clause that declares
// ESCAPE '\'.
func escapeSQLLike(pattern string) string {
	return likeEscaper.Replace(pattern)
}
