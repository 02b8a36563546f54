// ABOUTME: SQL dialect shim normalizing SQLite and PostgreSQL differences
// ABOUTME: Handles placeholder rebinding and insert-id retrieval strategy

package store

import (
	"strconv"
	"strings"
)

// dialect captures the per-database behavior the shared SQL layer needs:
// placeholder syntax and how to learn the id of an inserted row.
type dialect struct {
	// name is "sqlite" or "postgres", used in logs and error messages.
	name string

	// usesDollarPlaceholders rewrites ? placeholders to $1..$n (PostgreSQL).
	usesDollarPlaceholders bool

	// insertReturning appends RETURNING id to inserts instead of relying
	// on driver last-insert-id support, which pgx does not provide.
	insertReturning bool
}

var (
	sqliteDialect   = dialect{name: "sqlite"}
	postgresDialect = dialect{name: "postgres", usesDollarPlaceholders: true, insertReturning: true}
)

// rebind converts ? placeholders to the dialect's native form. Queries are
// written with ? throughout the store; SQLite takes them as-is.
func (d dialect) rebind(query string) string {
	if !d.usesDollarPlaceholders {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
