package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/rowmap/internal/sqlgen"
	"github.com/roach88/rowmap/internal/value"
)

// Introspect reads a live table's columns and indices via the SQLite
// pragma surface. Returns nil (no error) when the table does not exist.
func Introspect(ctx context.Context, db *sql.DB, name string) (*Table, error) {
	var found string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", name, err)
	}

	t := &Table{Name: name}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlgen.QuoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("introspect %s: table_info: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", name, err)
		}
		t.Columns = append(t.Columns, Column{
			Name:       colName,
			Type:       affinityKind(colType),
			NotNull:    notNull != 0,
			PrimaryKey: pk != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", name, err)
	}

	indices, err := listIndices(ctx, db, name)
	if err != nil {
		return nil, err
	}
	t.Indices = indices
	return t, nil
}

// listIndices returns explicitly created indices only; implicit indexes
// backing UNIQUE or PRIMARY KEY constraints are SQLite's own.
func listIndices(ctx context.Context, db *sql.DB, table string) ([]Index, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", sqlgen.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("introspect %s: index_list: %w", table, err)
	}
	defer rows.Close()

	type meta struct {
		name   string
		unique bool
	}
	var metas []meta
	for rows.Next() {
		var (
			seq     int
			ixName  string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &ixName, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", table, err)
		}
		if origin != "c" {
			continue
		}
		metas = append(metas, meta{name: ixName, unique: unique != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}

	var out []Index
	for _, m := range metas {
		cols, err := indexColumns(ctx, db, m.name)
		if err != nil {
			return nil, err
		}
		out = append(out, Index{Name: m.name, Columns: cols, Unique: m.unique})
	}
	return out, nil
}

func indexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", sqlgen.QuoteIdent(index)))
	if err != nil {
		return nil, fmt.Errorf("index_info %s: %w", index, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("index_info %s: %w", index, err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

// Migrate moves the live table toward the desired shape. Idempotent:
// creates the table if missing, adds missing columns, drops columns not
// in the desired set, and reconciles this table's managed indices.
//
// Existing column types are left alone; SQLite affinities are advisory
// and rewriting a table for a type change is not worth the risk here.
func Migrate(ctx context.Context, db *sql.DB, desired *Table) error {
	if err := desired.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	current, err := Introspect(ctx, db, desired.Name)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", desired.Name, err)
	}

	if current == nil {
		if _, err := db.ExecContext(ctx, desired.CreateSQL()); err != nil {
			return fmt.Errorf("migrate %s: create table: %w", desired.Name, err)
		}
	} else {
		if err := reconcileColumns(ctx, db, current, desired); err != nil {
			return err
		}
	}

	return reconcileIndices(ctx, db, current, desired)
}

func reconcileColumns(ctx context.Context, db *sql.DB, current, desired *Table) error {
	for _, c := range desired.Columns {
		if current.Column(c.Name) != nil {
			continue
		}
		if c.PrimaryKey {
			return fmt.Errorf("migrate %s: cannot add primary key column %q to an existing table", desired.Name, c.Name)
		}
		add := c
		// ADD COLUMN with NOT NULL needs a default; existing rows get
		// the column's zero instead of failing the migration.
		if add.NotNull {
			add.NotNull = false
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			sqlgen.QuoteIdent(desired.Name), columnDef(add))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: add column %s: %w", desired.Name, c.Name, err)
		}
	}

	for _, c := range current.Columns {
		if desired.Column(c.Name) != nil {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			sqlgen.QuoteIdent(desired.Name), sqlgen.QuoteIdent(c.Name))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: drop column %s: %w", desired.Name, c.Name, err)
		}
	}
	return nil
}

// reconcileIndices manages only indices carrying this table's name
// prefix; anything else a DBA created by hand stays untouched.
func reconcileIndices(ctx context.Context, db *sql.DB, current, desired *Table) error {
	want := make(map[string]bool, len(desired.Indices))
	for _, ix := range desired.Indices {
		want[desired.IndexName(ix)] = true
	}

	if current != nil {
		for _, ix := range current.Indices {
			if want[ix.Name] || !strings.HasPrefix(ix.Name, desired.Name+"_") {
				continue
			}
			stmt := fmt.Sprintf("DROP INDEX IF EXISTS %s", sqlgen.QuoteIdent(ix.Name))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: drop index %s: %w", desired.Name, ix.Name, err)
			}
		}
	}

	for _, ix := range desired.Indices {
		if _, err := db.ExecContext(ctx, desired.CreateIndexSQL(ix)); err != nil {
			return fmt.Errorf("migrate %s: create index %s: %w", desired.Name, desired.IndexName(ix), err)
		}
	}
	return nil
}

func affinityKind(colType string) value.Kind {
	up := strings.ToUpper(colType)
	switch {
	case strings.Contains(up, "INT"):
		return value.KindInt
	case strings.Contains(up, "REAL"), strings.Contains(up, "FLOA"), strings.Contains(up, "DOUB"):
		return value.KindFloat
	case strings.Contains(up, "BLOB"):
		return value.KindBlob
	default:
		return value.KindText
	}
}
