package rowmap

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/rowmap/internal/probe"
	"github.com/roach88/rowmap/internal/schema"
	"github.com/roach88/rowmap/internal/sqlgen"
	"github.com/roach88/rowmap/internal/value"
)

// Accessor extracts one field's value from a record instance. It stands
// in for a column-name string: the column it refers to is recovered by
// probing, never by naming.
type Accessor[T any] func(*T) any

// Collection binds a record type to a table. Creating one runs (or
// reuses) discovery for T and migrates the table to the discovered
// column set.
type Collection[T any] struct {
	db    *DB
	table string
	disc  *probe.Discovery
	key   int // leaf ordinal of the primary key column, -1 if none
}

// CollectionOption configures a collection before its table migrates.
type CollectionOption[T any] func(*collectConfig[T]) error

type collectConfig[T any] struct {
	pk         Accessor[T]
	indices    []indexSpec[T]
	collations []collationSpec[T]
}

type indexSpec[T any] struct {
	unique bool
	fields []Accessor[T]
}

type collationSpec[T any] struct {
	field Accessor[T]
	rule  string
}

// WithPrimaryKey names the primary key field. Overrides the implicit
// "id" column; the `db:"...,primary"` tag overrides both.
func WithPrimaryKey[T any](field Accessor[T]) CollectionOption[T] {
	return func(c *collectConfig[T]) error {
		c.pk = field
		return nil
	}
}

// WithIndex requests an index over the given fields.
func WithIndex[T any](fields ...Accessor[T]) CollectionOption[T] {
	return func(c *collectConfig[T]) error {
		if len(fields) == 0 {
			return fmt.Errorf("index needs at least one field")
		}
		c.indices = append(c.indices, indexSpec[T]{fields: fields})
		return nil
	}
}

// WithUniqueIndex requests a unique index over the given fields.
func WithUniqueIndex[T any](fields ...Accessor[T]) CollectionOption[T] {
	return func(c *collectConfig[T]) error {
		if len(fields) == 0 {
			return fmt.Errorf("unique index needs at least one field")
		}
		c.indices = append(c.indices, indexSpec[T]{unique: true, fields: fields})
		return nil
	}
}

// WithDefaultCollation sets the default comparison rule for a field.
// Filters and orderings on the field use it unless they carry an
// explicit rule.
func WithDefaultCollation[T any](field Accessor[T], rule string) CollectionOption[T] {
	return func(c *collectConfig[T]) error {
		c.collations = append(c.collations, collationSpec[T]{field: field, rule: rule})
		return nil
	}
}

// Collect binds record type T to a table, running discovery and
// migrating the table to match the discovered columns.
func Collect[T any](ctx context.Context, db *DB, table string, opts ...CollectionOption[T]) (*Collection[T], error) {
	if table == "" {
		return nil, fmt.Errorf("collect: empty table name")
	}
	var cfg collectConfig[T]
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("collect %s: %w", table, err)
		}
	}

	disc, err := db.cache.Discover(reflect.TypeOf((*T)(nil)).Elem(), db.samples)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", table, err)
	}

	c := &Collection[T]{db: db, table: table, disc: disc, key: -1}

	desired := &schema.Table{Name: table}
	for _, leaf := range disc.Leaves {
		desired.Columns = append(desired.Columns, schema.Column{
			Name: leaf.Path.String(),
			Type: leaf.Kind,
		})
	}

	if err := c.applyPrimaryKey(desired, cfg.pk); err != nil {
		return nil, fmt.Errorf("collect %s: %w", table, err)
	}
	for _, cs := range cfg.collations {
		col, err := c.Column(cs.field)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", table, err)
		}
		if !db.rules.Has(cs.rule) {
			return nil, fmt.Errorf("collect %s: unknown collation %q for %s", table, cs.rule, col)
		}
		if err := db.rules.SetDefault(table, col, cs.rule); err != nil {
			return nil, fmt.Errorf("collect %s: %w", table, err)
		}
	}
	for _, ix := range cfg.indices {
		cols := make([]string, len(ix.fields))
		for i, f := range ix.fields {
			col, err := c.Column(f)
			if err != nil {
				return nil, fmt.Errorf("collect %s: index field %d: %w", table, i, err)
			}
			cols[i] = col
		}
		desired.Indices = append(desired.Indices, schema.Index{
			Name:    "by_" + strings.Join(cols, "_"),
			Columns: cols,
			Unique:  ix.unique,
		})
	}

	if err := schema.Migrate(ctx, db.store.DB(), desired); err != nil {
		return nil, fmt.Errorf("collect %s: %w", table, err)
	}
	return c, nil
}

// applyPrimaryKey marks the key column: tag wins, then the option, then
// an implicit column named "id".
func (c *Collection[T]) applyPrimaryKey(desired *schema.Table, opt Accessor[T]) error {
	for i, leaf := range c.disc.Leaves {
		if leaf.PK {
			c.key = i
		}
	}
	if c.key < 0 && opt != nil {
		p, err := c.disc.Resolve(wrap(opt), accessorKey(opt))
		if err != nil {
			return err
		}
		c.key = c.disc.LeafAt(p.String())
	}
	if c.key < 0 {
		c.key = c.disc.LeafAt("id")
	}
	if c.key >= 0 {
		col := desired.Column(c.disc.Leaves[c.key].Path.String())
		col.PrimaryKey = true
		// INTEGER PRIMARY KEY is the rowid alias; NULL inserts assign
		// the next rowid, so NOT NULL would break key generation.
		col.NotNull = col.Type != value.KindInt
	}
	return nil
}

// Table returns the bound table name.
func (c *Collection[T]) Table() string {
	return c.table
}

// Columns returns all column names in field declaration order.
func (c *Collection[T]) Columns() []string {
	paths := c.disc.Paths()
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

// Column resolves an accessor to its column name. Resolution is cached
// per accessor, so repeated use of the same accessor probes only once.
func (c *Collection[T]) Column(field Accessor[T]) (string, error) {
	return c.disc.Column(wrap(field), accessorKey(field))
}

// fieldCol resolves an accessor to a compiler column reference carrying
// its default comparison rule. An explicit rule, when non-empty,
// overrides the default; binary stays implicit in the SQL text.
func (c *Collection[T]) fieldCol(field Accessor[T], explicit string) (sqlgen.Col, error) {
	name, err := c.Column(field)
	if err != nil {
		return sqlgen.Col{}, err
	}
	rule := explicit
	if rule == "" {
		rule = c.db.rules.Default(c.table, name)
	}
	if rule != "" && !c.db.rules.Has(rule) {
		return sqlgen.Col{}, fmt.Errorf("unknown collation %q for column %s", rule, name)
	}
	if rule == "binary" {
		rule = ""
	}
	return sqlgen.Col{Name: name, Collate: rule}, nil
}

func wrap[T any](field Accessor[T]) func(any) any {
	return func(rec any) any { return field(rec.(*T)) }
}

// accessorKey identifies an accessor by its code pointer for the
// resolution cache. Distinct closures built at the same source location
// share a pointer; they also read the same field, so sharing a cache
// slot is correct as long as the closure does not capture which field
// to read. Accessors should be plain field reads anyway.
func accessorKey[T any](field Accessor[T]) uintptr {
	return reflect.ValueOf(field).Pointer()
}

// newKeyValue produces a primary key for an inserted record whose key
// field holds its zero value: a UUIDv7 for text-shaped keys so they
// sort by creation time, nil for integer keys so SQLite assigns rowids.
func (c *Collection[T]) newKeyValue() (any, bool) {
	leaf := c.disc.Leaves[c.key]
	if leaf.Type == reflect.TypeOf(uuid.UUID{}) {
		return uuid.Must(uuid.NewV7()), true
	}
	switch leaf.Type.Kind() {
	case reflect.String:
		return uuid.Must(uuid.NewV7()).String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil, true
	default:
		return nil, false
	}
}
