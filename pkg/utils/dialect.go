package utils

import (
	"fmt"
	"strings"
)

// Dialect covers the placeholder differences between the SQL backends we support.
type Dialect struct {
	Name     string
	numbered bool
}

var (
	Postgres = Dialect{Name: "postgres", numbered: true}
	SQLite   = Dialect{Name: "sqlite"}
)

// Bind returns the placeholder for the n-th (1-based) argument.
func (d Dialect) Bind(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// BindList returns count comma-separated placeholders starting at argument from.
func (d Dialect) BindList(from, count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = d.Bind(from + i)
	}
	return strings.Join(marks, ", ")
}
