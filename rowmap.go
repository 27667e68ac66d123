// Package rowmap maps typed Go records to rows of embedded SQLite
// tables, and compiles filter/sort/update expressions built from
// type-checked field accessors instead of column-name strings.
//
// The column behind an accessor is found by structural discovery: a
// handful of probe instances of the record type are synthesized so that
// every field carries a unique value sequence, the accessor is applied
// to each instance, and the resulting value fingerprint is looked up in
// a per-type path index. Discovery runs once per record type and is
// memoized for the life of the process.
package rowmap

import (
	"fmt"
	"reflect"

	"github.com/roach88/rowmap/internal/collate"
	"github.com/roach88/rowmap/internal/probe"
	"github.com/roach88/rowmap/internal/sample"
	"github.com/roach88/rowmap/internal/sqlgen"
	"github.com/roach88/rowmap/internal/store"
)

// DB is an open rowmap database: a SQLite store plus the comparison
// rules and sample registry shared by its collections.
type DB struct {
	store   *store.Store
	rules   *collate.Table
	samples *sample.Registry
	cache   probe.Cache
}

// Option configures a DB before the store opens.
type Option func(*DB) error

// WithCollation registers a named comparison rule. The rule becomes
// available to every collection and is installed on each SQLite
// connection before any statement referencing it runs.
func WithCollation(name string, cmp func(a, b string) int) Option {
	return func(db *DB) error {
		return db.rules.Register(name, cmp)
	}
}

// WithSamples registers a custom sample pair for an opaque field type.
// zero and one must encode to different stored values.
func WithSamples(zero, one any) Option {
	return func(db *DB) error {
		return db.samples.Register(zero, one)
	}
}

// Open creates or opens the SQLite database at path. Use ":memory:" for
// an in-memory database.
func Open(path string, opts ...Option) (*DB, error) {
	db := &DB{
		rules:   collate.NewTable(),
		samples: sample.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(db); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}
	st, err := store.Open(path, db.rules)
	if err != nil {
		return nil, err
	}
	db.store = st
	return db, nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	if db.store == nil {
		return nil
	}
	return db.store.Close()
}

// Discover runs (or reuses) structural discovery for a record type
// without creating a collection. Mostly useful for inspecting the
// column set a type maps to.
func Discover[T any](db *DB) ([]string, error) {
	d, err := db.cache.Discover(reflect.TypeOf((*T)(nil)).Elem(), db.samples)
	if err != nil {
		return nil, err
	}
	paths := d.Paths()
	cols := make([]string, len(paths))
	for i, p := range paths {
		cols[i] = p.String()
	}
	return cols, nil
}

// ErrNoAssignments reports an update compiled with nothing staged.
var ErrNoAssignments = sqlgen.ErrNoAssignments

// IsShapeError reports whether err marks a record type whose structure
// cannot be discovered. Fatal for the type.
func IsShapeError(err error) bool { return probe.IsShapeError(err) }

// IsNoSamplesError reports whether err marks an opaque field type with
// no registered sample pair.
func IsNoSamplesError(err error) bool { return probe.IsNoSamplesError(err) }

// IsFingerprintError reports whether err marks two indistinguishable
// fields.
func IsFingerprintError(err error) bool { return probe.IsFingerprintError(err) }

// IsAccessorError reports whether err marks an accessor that maps to no
// flat field path. Fatal for that accessor use only.
func IsAccessorError(err error) bool { return probe.IsAccessorError(err) }
