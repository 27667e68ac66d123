package probe

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/roach88/rowmap/internal/sample"
	"github.com/roach88/rowmap/internal/value"
)

// Path is the ordered sequence of column names from the record root to a
// leaf field. Nested record fields contribute one element per level.
type Path []string

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Equal reports whether two paths name the same leaf.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Leaf describes one discovered column of a record type.
type Leaf struct {
	Path Path
	Type reflect.Type
	Kind value.Kind
	PK   bool // tagged `db:"...,primary"` at the top level

	index []int
	build func(bit int) (reflect.Value, error)
}

// Discovery is the memoized result of structural discovery for one
// record type: the synthesized probe instances, the ordered leaves, and
// the fingerprint index. Shared read-only after construction, except for
// the accessor cache which is guarded by its own lock.
type Discovery struct {
	Type   reflect.Type
	Rows   int
	Leaves []Leaf

	instances []reflect.Value
	byPrint   map[string]int

	mu       sync.RWMutex
	resolved map[uintptr]int
}

// Nesting deeper than this is treated as a recursive record type.
const maxDepth = 16

// The separator between per-row tokens inside a fingerprint. Tokens
// never contain it.
const printSep = "\x1f"

// Discover synthesizes the minimal set of probe instances for a record
// type and builds the fingerprint → path index.
//
// t must be a struct type (or pointer to one). The number of instances
// is the smallest r >= 1 with 2^r >= number of leaf fields; in row r,
// leaf k receives its sample pair's One value iff bit r of k is set.
// Every leaf's value vector across rows is therefore the binary form of
// its position, unique by construction as long as sample pairs encode
// distinguishably.
func Discover(t reflect.Type, reg *sample.Registry) (d *Discovery, err error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &ShapeError{Type: t, Reason: "record type must be a struct"}
	}

	// A field type's own code (sample providers, text marshalers) runs
	// during synthesis; a panic there is a shape defect of the record
	// type, not a crash of the caller.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = &ShapeError{Type: t, Reason: fmt.Sprintf("panic during probe synthesis: %v", r)}
		}
	}()

	w := &walker{reg: reg, root: t}
	if err := w.walk(t, nil, nil, 0); err != nil {
		return nil, err
	}
	if len(w.leaves) == 0 {
		return nil, &ShapeError{Type: t, Reason: "no discoverable fields"}
	}

	rows := 1
	for (1 << rows) < len(w.leaves) {
		rows++
	}

	d = &Discovery{
		Type:     t,
		Rows:     rows,
		Leaves:   w.leaves,
		byPrint:  make(map[string]int, len(w.leaves)),
		resolved: make(map[uintptr]int),
	}

	for r := 0; r < rows; r++ {
		inst := reflect.New(t)
		for k := range w.leaves {
			leaf := &w.leaves[k]
			fv, err := leaf.build((k >> r) & 1)
			if err != nil {
				return nil, err
			}
			inst.Elem().FieldByIndex(leaf.index).Set(fv)
		}
		d.instances = append(d.instances, inst)
	}

	// Serialize every instance to a generic tree and require identical
	// leaf path sets. A divergence means the shape is not stable under
	// repeated construction.
	flats := make([]flatTree, rows)
	for i, inst := range d.instances {
		n, err := w.tree(inst.Elem())
		if err != nil {
			return nil, err
		}
		flats[i] = flatten(n)
	}
	for i := 1; i < rows; i++ {
		if !samePaths(flats[0].paths, flats[i].paths) {
			return nil, &ShapeError{Type: t, Reason: fmt.Sprintf(
				"leaf paths differ between probe instances 0 and %d", i)}
		}
	}
	if len(flats[0].paths) != len(w.leaves) {
		return nil, &ShapeError{Type: t, Reason: fmt.Sprintf(
			"tree has %d leaves, walk found %d", len(flats[0].paths), len(w.leaves))}
	}

	// Fingerprint each leaf path: its token vector across all instances.
	for k := range w.leaves {
		toks := make([]string, rows)
		for i := range flats {
			toks[i] = flats[i].tokens[k]
		}
		fp := strings.Join(toks, printSep)
		if prev, dup := d.byPrint[fp]; dup {
			return nil, &FingerprintError{Type: t, Paths: []Path{w.leaves[prev].Path, w.leaves[k].Path}}
		}
		d.byPrint[fp] = k
	}

	return d, nil
}

// Instances returns the retained probe instances as *T values.
// Needed by accessor resolution, which re-applies accessors to the same
// instances discovery fingerprinted.
func (d *Discovery) Instances() []any {
	out := make([]any, len(d.instances))
	for i, inst := range d.instances {
		out[i] = inst.Interface()
	}
	return out
}

// Paths returns all leaf paths in declaration order.
func (d *Discovery) Paths() []Path {
	out := make([]Path, len(d.Leaves))
	for i, l := range d.Leaves {
		out[i] = l.Path
	}
	return out
}

// LeafAt returns the leaf ordinal for a column name, or -1.
func (d *Discovery) LeafAt(column string) int {
	for i, l := range d.Leaves {
		if l.Path.String() == column {
			return i
		}
	}
	return -1
}

// Extract encodes every leaf of a record into primitives, in leaf order.
// rec must be a *T or T of the discovered type.
func (d *Discovery) Extract(rec any) ([]value.Primitive, error) {
	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("extract from nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	if rv.Type() != d.Type {
		return nil, fmt.Errorf("extract: record is %s, discovery is for %s", rv.Type(), d.Type)
	}
	out := make([]value.Primitive, len(d.Leaves))
	for i := range d.Leaves {
		p, err := value.Encode(rv.FieldByIndex(d.Leaves[i].index).Interface())
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", d.Leaves[i].Path, err)
		}
		out[i] = p
	}
	return out, nil
}

// SetLeaf decodes a primitive into leaf i of a record. rec must be *T.
func (d *Discovery) SetLeaf(rec any, i int, p value.Primitive) error {
	rv := reflect.ValueOf(rec)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("set leaf: record must be a non-nil pointer")
	}
	rv = rv.Elem()
	if rv.Type() != d.Type {
		return fmt.Errorf("set leaf: record is %s, discovery is for %s", rv.Type(), d.Type)
	}
	fv := rv.FieldByIndex(d.Leaves[i].index)
	if err := value.Decode(p, fv); err != nil {
		return fmt.Errorf("set %s: %w", d.Leaves[i].Path, err)
	}
	return nil
}

// LeafIsZero reports whether leaf i of a record holds its type's zero
// value. rec must be *T or T.
func (d *Discovery) LeafIsZero(rec any, i int) (bool, error) {
	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false, fmt.Errorf("nil record")
		}
		rv = rv.Elem()
	}
	if rv.Type() != d.Type {
		return false, fmt.Errorf("record is %s, discovery is for %s", rv.Type(), d.Type)
	}
	return rv.FieldByIndex(d.Leaves[i].index).IsZero(), nil
}

// SetLeafValue assigns a native Go value to leaf i of a record,
// converting to the leaf type when assignable. rec must be *T.
func (d *Discovery) SetLeafValue(rec any, i int, v any) error {
	rv := reflect.ValueOf(rec)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("record must be a non-nil pointer")
	}
	fv := rv.Elem().FieldByIndex(d.Leaves[i].index)
	nv := reflect.ValueOf(v)
	if nv.Type() != fv.Type() {
		if !nv.Type().ConvertibleTo(fv.Type()) {
			return fmt.Errorf("cannot assign %s to leaf %s (%s)", nv.Type(), d.Leaves[i].Path, fv.Type())
		}
		nv = nv.Convert(fv.Type())
	}
	fv.Set(nv)
	return nil
}

// walker performs the structural pre-pass over a record type. All state
// is carried on the walker and the call stack; there is no package-level
// cursor.
type walker struct {
	reg    *sample.Registry
	root   reflect.Type
	leaves []Leaf
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
var timeType = reflect.TypeOf(time.Time{})

// walk visits the exported fields of t in declaration order, recursing
// into plain nested structs, and appends one Leaf per column.
func (w *walker) walk(t reflect.Type, path Path, index []int, depth int) error {
	if depth > maxDepth {
		return &ShapeError{Type: w.root, Field: path, Reason: "nesting too deep (recursive record type?)"}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, opts, skip := columnName(f)
		if skip {
			continue
		}
		fpath := append(append(Path{}, path...), name)
		findex := append(append([]int{}, index...), i)

		if w.recursable(f.Type) {
			if err := w.walk(f.Type, fpath, findex, depth+1); err != nil {
				return err
			}
			continue
		}

		leaf, err := w.leaf(f.Type, fpath, findex)
		if err != nil {
			return err
		}
		leaf.PK = depth == 0 && tagOption(opts, "primary")
		w.leaves = append(w.leaves, leaf)
	}
	return nil
}

// recursable reports whether t is a plain nested record struct, as
// opposed to a leaf type with its own sample pair or text encoding.
func (w *walker) recursable(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if t == timeType || w.reg.Has(t) {
		return false
	}
	if t.Implements(textMarshalerType) {
		return false
	}
	return true
}

// leaf classifies a field type and prepares its per-bit value builder.
func (w *walker) leaf(t reflect.Type, path Path, index []int) (Leaf, error) {
	l := Leaf{Path: path, Type: t, Kind: value.EncodeKind(t), index: index}

	// Opaque struct with a text encoding but no sample pair: cannot
	// synthesize two distinguishable values.
	if t.Kind() == reflect.Struct && !w.reg.Has(t) {
		return Leaf{}, &sample.ErrNoSamples{Type: t}
	}

	switch {
	case w.reg.Has(t):
		pair, err := w.pairFor(t, path)
		if err != nil {
			return Leaf{}, err
		}
		l.build = scalarBuilder(t, pair)
		return l, nil

	case t.Kind() == reflect.Pointer:
		elem := t.Elem()
		if w.recursable(elem) {
			return Leaf{}, &ShapeError{Type: w.root, Field: path,
				Reason: "pointer to nested record is unsupported; nest the struct by value"}
		}
		inner, err := w.leaf(elem, path, index)
		if err != nil {
			return Leaf{}, err
		}
		l.build = func(bit int) (reflect.Value, error) {
			ev, err := inner.build(bit)
			if err != nil {
				return reflect.Value{}, err
			}
			pv := reflect.New(elem)
			pv.Elem().Set(ev)
			return pv, nil
		}
		return l, nil

	case t.Kind() == reflect.Slice:
		// Singular container: one element probes both presence and
		// structure without unbounded expansion.
		epair, err := w.containerPair(t.Elem(), path)
		if err != nil {
			return Leaf{}, err
		}
		l.build = func(bit int) (reflect.Value, error) {
			sv := reflect.MakeSlice(t, 1, 1)
			sv.Index(0).Set(pick(t.Elem(), epair, bit))
			return sv, nil
		}
		return l, nil

	case t.Kind() == reflect.Map:
		// Paired container: two entries, keyed by the key type's own
		// sample pair.
		kpair, err := w.containerPair(t.Key(), path)
		if err != nil {
			return Leaf{}, err
		}
		epair, err := w.containerPair(t.Elem(), path)
		if err != nil {
			return Leaf{}, err
		}
		l.build = func(bit int) (reflect.Value, error) {
			mv := reflect.MakeMapWithSize(t, 2)
			mv.SetMapIndex(pick(t.Key(), kpair, 0), pick(t.Elem(), epair, bit))
			mv.SetMapIndex(pick(t.Key(), kpair, 1), pick(t.Elem(), epair, bit))
			return mv, nil
		}
		return l, nil
	}

	// Named scalar types (type Status string) derive their pair from
	// the underlying kind.
	if pair, ok := derivedScalarPair(t); ok {
		l.build = scalarBuilder(t, pair)
		return l, nil
	}

	return Leaf{}, &ShapeError{Type: w.root, Field: path,
		Reason: fmt.Sprintf("unsupported field type %s (%s)", t, t.Kind())}
}

// pairFor fetches t's sample pair, classifying anything other than a
// missing pair (a misbehaving Provider, an indistinguishable pair) as a
// shape defect of the record type.
func (w *walker) pairFor(t reflect.Type, path Path) (sample.Pair, error) {
	pair, err := w.reg.For(t)
	if err != nil {
		var ns *sample.ErrNoSamples
		if errors.As(err, &ns) {
			return sample.Pair{}, err
		}
		return sample.Pair{}, &ShapeError{Type: w.root, Field: path, Reason: err.Error()}
	}
	return pair, nil
}

// containerPair resolves the sample pair for a container's key or
// element type.
func (w *walker) containerPair(t reflect.Type, path Path) (sample.Pair, error) {
	if w.reg.Has(t) {
		return w.pairFor(t, path)
	}
	if pair, ok := derivedScalarPair(t); ok {
		return pair, nil
	}
	if w.recursable(t) || t.Kind() == reflect.Slice || t.Kind() == reflect.Map {
		return sample.Pair{}, &ShapeError{Type: w.root, Field: path,
			Reason: fmt.Sprintf("container of %s is unsupported", t)}
	}
	return sample.Pair{}, &sample.ErrNoSamples{Type: t}
}

func scalarBuilder(t reflect.Type, pair sample.Pair) func(int) (reflect.Value, error) {
	return func(bit int) (reflect.Value, error) {
		return pick(t, pair, bit), nil
	}
}

// pick returns the pair value for a bit, converted to t for named types.
func pick(t reflect.Type, pair sample.Pair, bit int) reflect.Value {
	v := pair.Zero
	if bit != 0 {
		v = pair.One
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != t {
		rv = rv.Convert(t)
	}
	return rv
}

// derivedScalarPair builds a pair for a named type with a scalar
// underlying kind by converting the built-in pair.
func derivedScalarPair(t reflect.Type) (sample.Pair, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return sample.Pair{Zero: false, One: true}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sample.Pair{Zero: int64(0), One: int64(1)}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return sample.Pair{Zero: uint64(0), One: uint64(1)}, true
	case reflect.Float32, reflect.Float64:
		return sample.Pair{Zero: float64(0), One: float64(1)}, true
	case reflect.String:
		return sample.Pair{Zero: "", One: "1"}, true
	default:
		return sample.Pair{}, false
	}
}
