// Package schema describes desired table shapes and migrates live
// SQLite tables toward them by diffing against the introspected state.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/rowmap/internal/sqlgen"
	"github.com/roach88/rowmap/internal/value"
)

// Column is one desired table column.
type Column struct {
	Name       string
	Type       value.Kind
	NotNull    bool
	PrimaryKey bool
	Collate    string // SQLite collation attached at the column level
}

// Index is one desired index over table columns.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is a desired table shape.
type Table struct {
	Name    string
	Columns []Column
	Indices []Index
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKey returns the primary key column, or nil.
func (t *Table) PrimaryKey() *Column {
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			return &t.Columns[i]
		}
	}
	return nil
}

// Validate checks structural soundness: a name, at least one column, no
// duplicate column names, at most one primary key, index columns exist.
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table has no name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	pks := 0
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column with empty name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("table %s: multiple primary key columns", t.Name)
	}
	for _, ix := range t.Indices {
		if len(ix.Columns) == 0 {
			return fmt.Errorf("table %s: index %s has no columns", t.Name, ix.Name)
		}
		for _, c := range ix.Columns {
			if !seen[c] {
				return fmt.Errorf("table %s: index %s references unknown column %q", t.Name, ix.Name, c)
			}
		}
	}
	return nil
}

// CreateSQL renders CREATE TABLE IF NOT EXISTS for the desired shape.
func (t *Table) CreateSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", sqlgen.QuoteIdent(t.Name))
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(columnDef(c))
	}
	b.WriteString(")")
	return b.String()
}

func columnDef(c Column) string {
	var b strings.Builder
	b.WriteString(sqlgen.QuoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(c.Type.Affinity())
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Collate != "" {
		b.WriteString(" COLLATE " + c.Collate)
	}
	return b.String()
}

// CreateIndexSQL renders CREATE INDEX IF NOT EXISTS for one index.
// Index names are namespaced by table to avoid cross-table clashes.
func (t *Table) CreateIndexSQL(ix Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if ix.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX IF NOT EXISTS %s ON %s (", sqlgen.QuoteIdent(t.IndexName(ix)), sqlgen.QuoteIdent(t.Name))
	for i, c := range ix.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlgen.QuoteIdent(c))
	}
	b.WriteString(")")
	return b.String()
}

// IndexName returns the stored name of an index: explicit, or derived
// from the table and column list.
func (t *Table) IndexName(ix Index) string {
	if ix.Name != "" {
		return t.Name + "_" + ix.Name
	}
	return t.Name + "_idx_" + strings.Join(ix.Columns, "_")
}

// SortedIndexNames returns the stored names of all desired indices.
func (t *Table) SortedIndexNames() []string {
	names := make([]string, len(t.Indices))
	for i, ix := range t.Indices {
		names[i] = t.IndexName(ix)
	}
	sort.Strings(names)
	return names
}
