package postgres

import (
	"fmt"
	"strings"

	"vault-indexer/internal/storage"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition; "?" in cond is replaced by the next placeholder.
func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

// addIf appends the condition only when value is non-empty.
func (w *whereBuilder) addIf(cond, value string) {
	if value != "" {
		w.add(cond, value)
	}
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (w *whereBuilder) page(p storage.PageRequest) string {
	n := p.Normalize()
	args := len(w.args)
	w.args = append(w.args, n.Limit, n.Offset())
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", args+1, args+2)
}
