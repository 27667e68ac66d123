// Package sqlgen compiles typed statements to parameterized SQLite SQL.
//
// Values are never interpolated into SQL text; every literal becomes a
// positional ? placeholder, and identifiers are always quoted, even when
// supplied by generated code.
package sqlgen

import "github.com/roach88/rowmap/internal/value"

// Kind selects the operation a Statement compiles to.
type Kind int

const (
	SelectAll Kind = iota
	SelectCols
	Count
	Delete
	Update
)

// Col is a quoted column reference with an optional comparison rule.
type Col struct {
	Name    string
	Collate string // folded rule name; empty = column default applies upstream
}

// Comparison operators accepted by Compare.
const (
	OpEq   = "="
	OpNe   = "<>"
	OpLt   = "<"
	OpLte  = "<="
	OpGt   = ">"
	OpGte  = ">="
	OpLike = "LIKE"
)

// Predicate is a sealed filter condition. Only types in this package
// implement it, which keeps the compiler's type switch exhaustive.
type Predicate interface {
	predicateNode()
}

// Compare is column-operator-value. A nil-valued equality compiles to
// SQLite's null-aware IS / IS NOT, so filtering on a missing value
// behaves like Go equality against a nil pointer field.
type Compare struct {
	Column Col
	Op     string
	Value  value.Primitive
}

func (Compare) predicateNode() {}

// In is column-membership over a literal set. An empty set is always
// false.
type In struct {
	Column Col
	Values []value.Primitive
}

func (In) predicateNode() {}

// Raw is literal SQL text with typed positional parameters. The text is
// emitted as-is; callers own its correctness.
type Raw struct {
	SQL    string
	Params []value.Primitive
}

func (Raw) predicateNode() {}

// Order is one sort key. Multiple orders compose left-to-right as
// primary, secondary, tertiary keys.
type Order struct {
	Column Col
	Desc   bool
}

// Assignment is one SET clause of an update.
type Assignment struct {
	Column string
	Value  value.Primitive
}

// Statement is a fully staged operation ready to compile. Filters
// combine with AND in the order added.
type Statement struct {
	Kind    Kind
	Table   string
	Columns []string // projection for SelectCols
	Filters []Predicate
	Orders  []Order
	Sets    []Assignment
	Limit   *int
}
