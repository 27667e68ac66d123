package probe

import (
	"reflect"
	"strings"

	"github.com/roach88/rowmap/internal/value"
)

// treeNode is the generic nested representation of a probe instance.
// Sealed: only objectNode and scalarNode implement it. Containers are
// scalars here because they map to single encoded columns.
type treeNode interface {
	treeNode()
}

// objectNode is a keyed node with children in field declaration order.
type objectNode struct {
	keys []string
	kids []treeNode
}

func (objectNode) treeNode() {}

// scalarNode holds a leaf's kind-tagged token.
type scalarNode string

func (scalarNode) treeNode() {}

// tree serializes an instance value to its generic representation.
func (w *walker) tree(rv reflect.Value) (treeNode, error) {
	return w.treeAt(rv, 0)
}

func (w *walker) treeAt(rv reflect.Value, depth int) (treeNode, error) {
	t := rv.Type()
	if depth == 0 || w.recursable(t) {
		obj := objectNode{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, _, skip := columnName(f)
			if skip {
				continue
			}
			kid, err := w.treeAt(rv.Field(i), depth+1)
			if err != nil {
				return nil, err
			}
			obj.keys = append(obj.keys, name)
			obj.kids = append(obj.kids, kid)
		}
		return obj, nil
	}
	p, err := value.Encode(rv.Interface())
	if err != nil {
		return nil, &ShapeError{Type: w.root, Reason: err.Error()}
	}
	return scalarNode(value.Token(p)), nil
}

// columnName resolves a struct field's column name and tag options from
// its db tag, falling back to the field name. skip is true for
// unexported fields and db:"-".
func columnName(f reflect.StructField) (name, opts string, skip bool) {
	if !f.IsExported() {
		return "", "", true
	}
	name = f.Name
	if tag, ok := f.Tag.Lookup("db"); ok {
		var head string
		head, opts, _ = strings.Cut(tag, ",")
		if head == "-" {
			return "", "", true
		}
		if head != "" {
			name = head
		}
	}
	return name, opts, false
}

func tagOption(opts, want string) bool {
	for opts != "" {
		var head string
		head, opts, _ = strings.Cut(opts, ",")
		if head == want {
			return true
		}
	}
	return false
}

// flatTree is the depth-first enumeration of a tree's leaves.
type flatTree struct {
	paths  []string
	tokens []string
}

func flatten(n treeNode) flatTree {
	var ft flatTree
	flattenInto(n, "", &ft)
	return ft
}

func flattenInto(n treeNode, prefix string, ft *flatTree) {
	switch node := n.(type) {
	case scalarNode:
		ft.paths = append(ft.paths, prefix)
		ft.tokens = append(ft.tokens, string(node))
	case objectNode:
		for i, key := range node.keys {
			p := key
			if prefix != "" {
				p = prefix + "." + key
			}
			flattenInto(node.kids[i], p, ft)
		}
	}
}

func samePaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
