package cli

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/rowmap/internal/schema"
	"github.com/roach88/rowmap/internal/value"
)

// LoadManifest reads a CUE table manifest and compiles it into desired
// table shapes.
//
// The manifest shape:
//
//	table: users: {
//	    column: id:   {type: "text", primaryKey: true}
//	    column: age:  {type: "integer", notNull: true}
//	    column: name: {type: "text", collate: "nocase"}
//	    index: by_age: {columns: ["age"]}
//	}
func LoadManifest(path string) ([]schema.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("manifest not found: %s", path))
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{path}, nil)
	if len(instances) == 0 {
		return nil, NewExitError(ExitFailure, "no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, WrapExitError(ExitFailure, "loading CUE manifest", inst.Err)
	}
	root := ctx.BuildInstance(inst)
	if err := root.Err(); err != nil {
		return nil, WrapExitError(ExitFailure, "building CUE manifest", err)
	}

	tablesVal := root.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, NewExitError(ExitFailure, "manifest has no table declarations")
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "iterating tables", err)
	}

	var tables []schema.Table
	for iter.Next() {
		t, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, *t)
	}
	if len(tables) == 0 {
		return nil, NewExitError(ExitFailure, "manifest declares no tables")
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func compileTable(name string, v cue.Value) (*schema.Table, error) {
	t := &schema.Table{Name: name}

	colsVal := v.LookupPath(cue.ParsePath("column"))
	if colsVal.Exists() {
		iter, err := colsVal.Fields()
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: iterating columns", name), err)
		}
		for iter.Next() {
			col, err := compileColumn(name, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			t.Columns = append(t.Columns, *col)
		}
	}

	ixVal := v.LookupPath(cue.ParsePath("index"))
	if ixVal.Exists() {
		iter, err := ixVal.Fields()
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: iterating indices", name), err)
		}
		for iter.Next() {
			ix, err := compileIndex(name, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			t.Indices = append(t.Indices, *ix)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, WrapExitError(ExitFailure, "invalid manifest", err)
	}
	return t, nil
}

func compileColumn(table, name string, v cue.Value) (*schema.Column, error) {
	col := &schema.Column{Name: name, Type: value.KindText}

	typVal := v.LookupPath(cue.ParsePath("type"))
	if typVal.Exists() {
		typ, err := typVal.String()
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: column %s: type", table, name), err)
		}
		kind, ok := columnKind(typ)
		if !ok {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("table %s: column %s: unknown type %q (want text|integer|real|blob)", table, name, typ))
		}
		col.Type = kind
	}

	if b, err := boolField(v, "notNull"); err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: column %s: notNull", table, name), err)
	} else {
		col.NotNull = b
	}
	if b, err := boolField(v, "primaryKey"); err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: column %s: primaryKey", table, name), err)
	} else {
		col.PrimaryKey = b
	}

	collVal := v.LookupPath(cue.ParsePath("collate"))
	if collVal.Exists() {
		coll, err := collVal.String()
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: column %s: collate", table, name), err)
		}
		col.Collate = coll
	}
	return col, nil
}

func compileIndex(table, name string, v cue.Value) (*schema.Index, error) {
	ix := &schema.Index{Name: name}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, NewExitError(ExitFailure, fmt.Sprintf("table %s: index %s: columns is required", table, name))
	}
	list, err := colsVal.List()
	if err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: index %s: columns", table, name), err)
	}
	for list.Next() {
		col, err := list.Value().String()
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: index %s: columns", table, name), err)
		}
		ix.Columns = append(ix.Columns, col)
	}

	if b, err := boolField(v, "unique"); err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("table %s: index %s: unique", table, name), err)
	} else {
		ix.Unique = b
	}
	return ix, nil
}

func boolField(v cue.Value, field string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(field))
	if !bv.Exists() {
		return false, nil
	}
	return bv.Bool()
}

func columnKind(typ string) (value.Kind, bool) {
	switch typ {
	case "text":
		return value.KindText, true
	case "integer", "int":
		return value.KindInt, true
	case "real", "float":
		return value.KindFloat, true
	case "blob":
		return value.KindBlob, true
	default:
		return value.KindText, false
	}
}
