package rowmap

import (
	"fmt"

	"github.com/roach88/rowmap/internal/sqlgen"
	"github.com/roach88/rowmap/internal/value"
)

// Pred is one staged filter clause. Predicates are built against a
// specific collection when added to a query, which is when their
// accessors resolve.
type Pred[T any] struct {
	build func(*Collection[T]) (sqlgen.Predicate, error)
}

// FieldRef is a field reference with an optional explicit comparison
// rule. Without one, the field's registered default rule applies.
type FieldRef[T any] struct {
	field   Accessor[T]
	collate string
}

// F makes a field reference from an accessor.
func F[T any](field Accessor[T]) FieldRef[T] {
	return FieldRef[T]{field: field}
}

// Collate attaches an explicit comparison rule to the reference.
func (f FieldRef[T]) Collate(rule string) FieldRef[T] {
	f.collate = rule
	return f
}

func (f FieldRef[T]) cmp(op string, v any) Pred[T] {
	return Pred[T]{build: func(c *Collection[T]) (sqlgen.Predicate, error) {
		col, err := c.fieldCol(f.field, f.collate)
		if err != nil {
			return nil, err
		}
		pv, err := value.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("filter value for %s: %w", col.Name, err)
		}
		return sqlgen.Compare{Column: col, Op: op, Value: pv}, nil
	}}
}

// Eq filters field = v. A nil v compiles to SQLite's null-aware IS, so
// it matches rows where the column is missing, like comparing a nil
// pointer field in Go.
func (f FieldRef[T]) Eq(v any) Pred[T] { return f.cmp(sqlgen.OpEq, v) }

// Ne filters field <> v; nil-aware like Eq.
func (f FieldRef[T]) Ne(v any) Pred[T] { return f.cmp(sqlgen.OpNe, v) }

// Lt filters field < v.
func (f FieldRef[T]) Lt(v any) Pred[T] { return f.cmp(sqlgen.OpLt, v) }

// Lte filters field <= v.
func (f FieldRef[T]) Lte(v any) Pred[T] { return f.cmp(sqlgen.OpLte, v) }

// Gt filters field > v.
func (f FieldRef[T]) Gt(v any) Pred[T] { return f.cmp(sqlgen.OpGt, v) }

// Gte filters field >= v.
func (f FieldRef[T]) Gte(v any) Pred[T] { return f.cmp(sqlgen.OpGte, v) }

// Like filters field LIKE pattern.
func (f FieldRef[T]) Like(pattern string) Pred[T] { return f.cmp(sqlgen.OpLike, pattern) }

// In filters field membership in vs. Empty vs never matches.
func (f FieldRef[T]) In(vs ...any) Pred[T] {
	return Pred[T]{build: func(c *Collection[T]) (sqlgen.Predicate, error) {
		col, err := c.fieldCol(f.field, f.collate)
		if err != nil {
			return nil, err
		}
		pvs := make([]value.Primitive, len(vs))
		for i, v := range vs {
			pv, err := value.Encode(v)
			if err != nil {
				return nil, fmt.Errorf("filter value %d for %s: %w", i, col.Name, err)
			}
			pvs[i] = pv
		}
		return sqlgen.In{Column: col, Values: pvs}, nil
	}}
}

// Shorthands for the common comparisons without an explicit rule.

// Eq filters field = v.
func Eq[T any](field Accessor[T], v any) Pred[T] { return F(field).Eq(v) }

// Ne filters field <> v.
func Ne[T any](field Accessor[T], v any) Pred[T] { return F(field).Ne(v) }

// Lt filters field < v.
func Lt[T any](field Accessor[T], v any) Pred[T] { return F(field).Lt(v) }

// Lte filters field <= v.
func Lte[T any](field Accessor[T], v any) Pred[T] { return F(field).Lte(v) }

// Gt filters field > v.
func Gt[T any](field Accessor[T], v any) Pred[T] { return F(field).Gt(v) }

// Gte filters field >= v.
func Gte[T any](field Accessor[T], v any) Pred[T] { return F(field).Gte(v) }

// In filters field membership in vs.
func In[T any](field Accessor[T], vs ...any) Pred[T] { return F(field).In(vs...) }

// Where stages literal SQL text with typed positional parameters.
// The text joins the other filters with AND; callers own its syntax.
func Where[T any](sql string, params ...any) Pred[T] {
	return Pred[T]{build: func(c *Collection[T]) (sqlgen.Predicate, error) {
		pvs := make([]value.Primitive, len(params))
		for i, p := range params {
			pv, err := value.Encode(p)
			if err != nil {
				return nil, fmt.Errorf("raw SQL param %d: %w", i, err)
			}
			pvs[i] = pv
		}
		return sqlgen.Raw{SQL: sql, Params: pvs}, nil
	}}
}

// Query accumulates filter, order, assignment, and limit clauses for
// one collection, then compiles them to SQL. Staging never does I/O;
// the first staging error is remembered and surfaces at compile time.
type Query[T any] struct {
	c   *Collection[T]
	st  sqlgen.Statement
	err error
}

// Query starts an empty query over the collection's table.
func (c *Collection[T]) Query() *Query[T] {
	return &Query[T]{c: c, st: sqlgen.Statement{Kind: sqlgen.SelectAll, Table: c.table}}
}

// Filter adds one clause. Clauses combine with AND in the order added,
// and their parameters bind in the same order.
func (q *Query[T]) Filter(p Pred[T]) *Query[T] {
	if q.err != nil {
		return q
	}
	pred, err := p.build(q.c)
	if err != nil {
		q.err = err
		return q
	}
	q.st.Filters = append(q.st.Filters, pred)
	return q
}

// Project narrows the selection to the given fields.
func (q *Query[T]) Project(fields ...Accessor[T]) *Query[T] {
	if q.err != nil {
		return q
	}
	if len(fields) == 0 {
		q.err = fmt.Errorf("projection needs at least one field")
		return q
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		col, err := q.c.Column(f)
		if err != nil {
			q.err = err
			return q
		}
		cols[i] = col
	}
	q.st.Kind = sqlgen.SelectCols
	q.st.Columns = cols
	return q
}

// OrderBy appends an ascending sort key. Multiple calls compose
// left-to-right as primary, secondary, tertiary keys.
func (q *Query[T]) OrderBy(field Accessor[T]) *Query[T] {
	return q.order(F(field), false)
}

// OrderByDesc appends a descending sort key.
func (q *Query[T]) OrderByDesc(field Accessor[T]) *Query[T] {
	return q.order(F(field), true)
}

// OrderByRef appends a sort key from a field reference, which may carry
// an explicit comparison rule.
func (q *Query[T]) OrderByRef(ref FieldRef[T], desc bool) *Query[T] {
	return q.order(ref, desc)
}

func (q *Query[T]) order(ref FieldRef[T], desc bool) *Query[T] {
	if q.err != nil {
		return q
	}
	col, err := q.c.fieldCol(ref.field, ref.collate)
	if err != nil {
		q.err = err
		return q
	}
	q.st.Orders = append(q.st.Orders, sqlgen.Order{Column: col, Desc: desc})
	return q
}

// Set stages one update assignment.
func (q *Query[T]) Set(field Accessor[T], v any) *Query[T] {
	if q.err != nil {
		return q
	}
	col, err := q.c.Column(field)
	if err != nil {
		q.err = err
		return q
	}
	pv, err := value.Encode(v)
	if err != nil {
		q.err = fmt.Errorf("assignment value for %s: %w", col, err)
		return q
	}
	q.st.Sets = append(q.st.Sets, sqlgen.Assignment{Column: col, Value: pv})
	return q
}

// Limit caps the number of affected or returned rows.
func (q *Query[T]) Limit(n int) *Query[T] {
	if q.err != nil {
		return q
	}
	q.st.Limit = &n
	return q
}

// CompileSelect compiles the staged query as a select.
func (q *Query[T]) CompileSelect() (string, []any, error) {
	return q.compile(q.st.Kind)
}

// CompileCount compiles the staged query as SELECT COUNT(*), reusing
// the same filter chain.
func (q *Query[T]) CompileCount() (string, []any, error) {
	return q.compile(sqlgen.Count)
}

// CompileDelete compiles the staged query as a delete.
func (q *Query[T]) CompileDelete() (string, []any, error) {
	return q.compile(sqlgen.Delete)
}

// CompileUpdate compiles the staged assignments and filters as an
// update. Fails with ErrNoAssignments when nothing was staged.
func (q *Query[T]) CompileUpdate() (string, []any, error) {
	return q.compile(sqlgen.Update)
}

func (q *Query[T]) compile(kind sqlgen.Kind) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	st := q.st
	st.Kind = kind
	return sqlgen.Compile(st)
}

// compileExec compiles for execution against the store, where a limited
// delete or update takes the rowid-subquery form.
func (q *Query[T]) compileExec(kind sqlgen.Kind) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	st := q.st
	st.Kind = kind
	return sqlgen.CompileExec(st)
}
