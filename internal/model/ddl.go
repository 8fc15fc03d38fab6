package model

import (
	"fmt"
	"strings"
)

// DDL returns the CREATE TABLE statement for e.
// Booleans are stored as INTEGER 0/1.
func (e *EntityType) DDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdent(e.Table))
	for _, p := range e.Properties {
		fmt.Fprintf(&b, "  %s %s", QuoteIdent(p.Column), sqlType(p.Type))
		if !p.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}

	cols := make([]string, len(e.Key))
	for i, k := range e.Key {
		p, _ := e.Property(k)
		cols[i] = QuoteIdent(p.Column)
	}
	fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n);\n", strings.Join(cols, ", "))
	return b.String()
}

// DDL returns the schema for every entity, in name order.
func (m *Model) DDL() string {
	var b strings.Builder
	for i, e := range m.Entities() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.DDL())
	}
	return b.String()
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(t string) string {
	switch t {
	case TypeString:
		return "TEXT"
	default:
		return "INTEGER"
	}
}
