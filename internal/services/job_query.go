package services

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultOrdering lists the most recently updated jobs first.
const DefaultOrdering = "-updated_at"

var searchFields = []string{"company", "title", "note"}

var orderingFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"applied_at": true,
	"status":     true,
}

// JobQuery narrows and orders a caller's job list.
type JobQuery struct {
	// Search is split on whitespace and commas; every term must appear in at least one of
	// company, title or note. Both sides go through the database's LOWER, so SQLite only
	// folds ASCII letters.
	Search string
	// Ordering is a comma-separated list of fields, "-" prefix for descending.
	Ordering string
}

func (q JobQuery) apply(db *gorm.DB) *gorm.DB {
	for _, term := range searchTerms(q.Search) {
		pattern := "%" + escapeLike(term) + "%"
		conds := make([]string, 0, len(searchFields))
		args := make([]any, 0, len(searchFields))
		for _, field := range searchFields {
			conds = append(conds, "LOWER("+field+`) LIKE LOWER(?) ESCAPE '\'`)
			args = append(args, pattern)
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	for _, col := range orderColumns(q.Ordering) {
		db = db.Order(col)
	}
	return db
}

func searchTerms(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// orderColumns resolves the ordering parameter. Unknown fields are ignored; if nothing
// valid remains the default applies. id descending always breaks ties.
func orderColumns(raw string) []clause.OrderByColumn {
	var cols []clause.OrderByColumn
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if !orderingFields[name] || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: name}, Desc: desc})
	}
	if len(cols) == 0 && raw != DefaultOrdering {
		return orderColumns(DefaultOrdering)
	}
	return append(cols, clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
}
