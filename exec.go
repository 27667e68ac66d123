package rowmap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/rowmap/internal/sqlgen"
	"github.com/roach88/rowmap/internal/value"
)

// All compiles and runs the select, decoding every row into a record.
func (q *Query[T]) All(ctx context.Context) ([]*T, error) {
	stmt, params, err := q.CompileSelect()
	if err != nil {
		return nil, err
	}
	rows, err := q.c.db.store.Query(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.c.table, err)
	}
	defer rows.Close()
	return q.c.scanAll(rows)
}

// First returns the first matching record, or nil when nothing matches.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	one := 1
	st := *q
	st.st.Limit = &one
	recs, err := st.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// Count compiles and runs SELECT COUNT(*) over the staged filters.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	stmt, params, err := q.CompileCount()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.c.db.store.QueryRow(ctx, stmt, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.c.table, err)
	}
	return n, nil
}

// Delete compiles and runs the delete, returning affected rows. With a
// limit staged, the executed form targets rows through a rowid subquery
// because stock SQLite builds reject LIMIT on DELETE.
func (q *Query[T]) Delete(ctx context.Context) (int64, error) {
	stmt, params, err := q.compileExec(sqlgen.Delete)
	if err != nil {
		return 0, err
	}
	res, err := q.c.db.store.Exec(ctx, stmt, params...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", q.c.table, err)
	}
	return res.RowsAffected()
}

// Update compiles and runs the staged assignments, returning affected
// rows. A staged limit takes the same rowid-subquery form as Delete.
func (q *Query[T]) Update(ctx context.Context) (int64, error) {
	stmt, params, err := q.compileExec(sqlgen.Update)
	if err != nil {
		return 0, err
	}
	res, err := q.c.db.store.Exec(ctx, stmt, params...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", q.c.table, err)
	}
	return res.RowsAffected()
}

// All returns every record in the collection.
func (c *Collection[T]) All(ctx context.Context) ([]*T, error) {
	return c.Query().All(ctx)
}

// Count returns the number of rows in the collection.
func (c *Collection[T]) Count(ctx context.Context) (int64, error) {
	return c.Query().Count(ctx)
}

// Get fetches a record by primary key. Returns nil when absent.
func (c *Collection[T]) Get(ctx context.Context, key any) (*T, error) {
	if c.key < 0 {
		return nil, fmt.Errorf("get from %s: collection has no primary key", c.table)
	}
	pv, err := value.Encode(key)
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", c.table, err)
	}
	q := c.Query()
	q.st.Filters = append(q.st.Filters, sqlgen.Compare{
		Column: sqlgen.Col{Name: c.disc.Leaves[c.key].Path.String()},
		Op:     sqlgen.OpEq,
		Value:  pv,
	})
	return q.First(ctx)
}

// Insert writes records. A record whose primary key field is zero gets
// a generated key: UUIDv7 for text keys, SQLite's rowid for integer
// keys (written back into the record).
func (c *Collection[T]) Insert(ctx context.Context, recs ...*T) error {
	return c.write(ctx, "INSERT", recs)
}

// Save writes records, replacing any row with the same primary key.
func (c *Collection[T]) Save(ctx context.Context, recs ...*T) error {
	return c.write(ctx, "INSERT OR REPLACE", recs)
}

func (c *Collection[T]) write(ctx context.Context, verb string, recs []*T) error {
	cols := c.Columns()
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = sqlgen.QuoteIdent(col)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, sqlgen.QuoteIdent(c.table),
		strings.Join(quoted, ", "), strings.Join(marks, ", "))

	for _, rec := range recs {
		assignRowid, err := c.fillKey(rec)
		if err != nil {
			return err
		}
		prims, err := c.disc.Extract(rec)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", c.table, err)
		}
		args := make([]any, len(prims))
		for i, p := range prims {
			args[i] = value.Arg(p)
		}
		if assignRowid {
			args[c.key] = nil
		}
		res, err := c.db.store.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", c.table, err)
		}
		if assignRowid {
			id, err := res.LastInsertId()
			if err == nil {
				if err := c.disc.SetLeafValue(rec, c.key, id); err != nil {
					return fmt.Errorf("insert into %s: %w", c.table, err)
				}
			}
		}
	}
	return nil
}

// fillKey generates a key for a zero-keyed record. Reports whether the
// key should instead come back from SQLite as a rowid.
func (c *Collection[T]) fillKey(rec *T) (assignRowid bool, err error) {
	if c.key < 0 {
		return false, nil
	}
	zero, err := c.disc.LeafIsZero(rec, c.key)
	if err != nil || !zero {
		return false, err
	}
	v, ok := c.newKeyValue()
	if !ok {
		return false, nil
	}
	if v == nil {
		return true, nil
	}
	if err := c.disc.SetLeafValue(rec, c.key, v); err != nil {
		return false, fmt.Errorf("generate key for %s: %w", c.table, err)
	}
	return false, nil
}

// scanAll decodes result rows into records, matching result columns to
// discovered leaves by name. Unknown columns are ignored.
func (c *Collection[T]) scanAll(rows *sql.Rows) ([]*T, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.table, err)
	}
	leafFor := make([]int, len(names))
	for i, name := range names {
		leafFor[i] = c.disc.LeafAt(name)
	}

	var out []*T
	raws := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raws {
		ptrs[i] = &raws[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.table, err)
		}
		rec := new(T)
		for i, leaf := range leafFor {
			if leaf < 0 {
				continue
			}
			if err := c.disc.SetLeaf(rec, leaf, value.FromSQL(raws[i])); err != nil {
				return nil, fmt.Errorf("scan %s: %w", c.table, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.table, err)
	}
	return out, nil
}
