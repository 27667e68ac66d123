package sqlgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rowmap/internal/value"
)

// ErrNoAssignments reports an update compiled with nothing staged.
// A caller mistake: no SQL is produced.
var ErrNoAssignments = errors.New("update requires at least one staged assignment")

// Compile converts a Statement to parameterized SQL.
// Returns (sql, params, error); on error no SQL text or parameters are
// produced at all.
func Compile(st Statement) (string, []any, error) {
	switch st.Kind {
	case SelectAll, SelectCols:
		return compileSelect(st)
	case Count:
		return compileCount(st)
	case Delete:
		return compileDelete(st)
	case Update:
		return compileUpdate(st)
	default:
		return "", nil, fmt.Errorf("unsupported statement kind: %d", st.Kind)
	}
}

// CompileExec converts a Statement to SQL meant to be executed against
// a stock SQLite build. It matches Compile except that a limited delete
// or update targets rows through a rowid subquery, because stock builds
// of SQLite reject LIMIT on DELETE and UPDATE.
func CompileExec(st Statement) (string, []any, error) {
	if st.Limit == nil || (st.Kind != Delete && st.Kind != Update) {
		return Compile(st)
	}
	switch st.Kind {
	case Delete:
		return compileDeleteLimited(st)
	default:
		return compileUpdateLimited(st)
	}
}

func compileSelect(st Statement) (string, []any, error) {
	cols := "*"
	if st.Kind == SelectCols {
		if len(st.Columns) == 0 {
			return "", nil, fmt.Errorf("projection requires at least one column")
		}
		quoted := make([]string, len(st.Columns))
		for i, c := range st.Columns {
			quoted[i] = QuoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, QuoteIdent(st.Table))
	if err := appendWhere(&b, &params, st.Filters); err != nil {
		return "", nil, err
	}
	appendOrderBy(&b, st.Orders)
	appendLimit(&b, st.Limit)
	return b.String(), params, nil
}

func compileCount(st Statement) (string, []any, error) {
	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "SELECT COUNT(*) FROM %s", QuoteIdent(st.Table))
	if err := appendWhere(&b, &params, st.Filters); err != nil {
		return "", nil, err
	}
	return b.String(), params, nil
}

func compileDelete(st Statement) (string, []any, error) {
	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "DELETE FROM %s", QuoteIdent(st.Table))
	if err := appendWhere(&b, &params, st.Filters); err != nil {
		return "", nil, err
	}
	appendLimit(&b, st.Limit)
	return b.String(), params, nil
}

func compileUpdate(st Statement) (string, []any, error) {
	if len(st.Sets) == 0 {
		return "", nil, ErrNoAssignments
	}
	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "UPDATE %s SET ", QuoteIdent(st.Table))
	for i, set := range st.Sets {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = ?", QuoteIdent(set.Column))
		params = append(params, value.Arg(set.Value))
	}
	if err := appendWhere(&b, &params, st.Filters); err != nil {
		return "", nil, err
	}
	appendLimit(&b, st.Limit)
	return b.String(), params, nil
}

func compileDeleteLimited(st Statement) (string, []any, error) {
	sub, params, err := rowidSubquery(st)
	if err != nil {
		return "", nil, err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE rowid IN (%s)", QuoteIdent(st.Table), sub)
	return stmt, params, nil
}

func compileUpdateLimited(st Statement) (string, []any, error) {
	if len(st.Sets) == 0 {
		return "", nil, ErrNoAssignments
	}
	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "UPDATE %s SET ", QuoteIdent(st.Table))
	for i, set := range st.Sets {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = ?", QuoteIdent(set.Column))
		params = append(params, value.Arg(set.Value))
	}
	sub, subParams, err := rowidSubquery(st)
	if err != nil {
		return "", nil, err
	}
	fmt.Fprintf(&b, " WHERE rowid IN (%s)", sub)
	return b.String(), append(params, subParams...), nil
}

// rowidSubquery selects the rowids the statement's filters, orders, and
// limit would target.
func rowidSubquery(st Statement) (string, []any, error) {
	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "SELECT rowid FROM %s", QuoteIdent(st.Table))
	if err := appendWhere(&b, &params, st.Filters); err != nil {
		return "", nil, err
	}
	appendOrderBy(&b, st.Orders)
	appendLimit(&b, st.Limit)
	return b.String(), params, nil
}

// appendWhere emits the WHERE clause, AND-joining filters in the order
// they were added and collecting their parameters left to right.
func appendWhere(b *strings.Builder, params *[]any, filters []Predicate) error {
	if len(filters) == 0 {
		return nil
	}
	b.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.WriteString(" AND ")
		}
		if err := appendPredicate(b, params, f); err != nil {
			return err
		}
	}
	return nil
}

func appendPredicate(b *strings.Builder, params *[]any, p Predicate) error {
	switch pred := p.(type) {
	case Compare:
		op := pred.Op
		if _, isNull := pred.Value.(value.Null); isNull {
			// Plain = / <> never matches NULL; IS / IS NOT carries the
			// host language's nil-equality semantics.
			switch op {
			case OpEq:
				op = "IS"
			case OpNe:
				op = "IS NOT"
			}
		}
		fmt.Fprintf(b, "%s %s ?", colExpr(pred.Column), op)
		*params = append(*params, value.Arg(pred.Value))
		return nil
	case In:
		if len(pred.Values) == 0 {
			b.WriteString("1 = 0")
			return nil
		}
		marks := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			marks[i] = "?"
			*params = append(*params, value.Arg(v))
		}
		fmt.Fprintf(b, "%s IN (%s)", colExpr(pred.Column), strings.Join(marks, ", "))
		return nil
	case Raw:
		if pred.SQL == "" {
			return fmt.Errorf("empty raw SQL fragment")
		}
		b.WriteString(pred.SQL)
		for _, v := range pred.Params {
			*params = append(*params, value.Arg(v))
		}
		return nil
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func appendOrderBy(b *strings.Builder, orders []Order) {
	if len(orders) == 0 {
		return
	}
	b.WriteString(" ORDER BY ")
	for i, o := range orders {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(colExpr(o.Column))
		if o.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
}

func appendLimit(b *strings.Builder, limit *int) {
	if limit == nil {
		return
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(*limit))
}

// colExpr renders a column reference, attaching its comparison rule.
func colExpr(c Col) string {
	expr := QuoteIdent(c.Name)
	if c.Collate != "" {
		expr += " COLLATE " + c.Collate
	}
	return expr
}

// QuoteIdent quotes an identifier with SQLite double-quote rules.
// A dotted discovery path like "address.city" is one column name and is
// quoted whole.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
