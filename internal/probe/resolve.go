package probe

import (
	"fmt"
	"strings"

	"github.com/roach88/rowmap/internal/value"
)

// Resolve maps an accessor to the leaf path it reads.
//
// fn is applied to every retained probe instance (each a *T); the
// resulting value vector forms a fingerprint that is looked up in the
// path index. key identifies the accessor (its code pointer) for the
// per-type resolution cache; pass 0 to bypass caching.
//
// Accessors that reach into collection elements, combine fields, or
// return constants do not correspond to any leaf and fail with an
// AccessorError.
func (d *Discovery) Resolve(fn func(any) any, key uintptr) (Path, error) {
	if key != 0 {
		d.mu.RLock()
		idx, ok := d.resolved[key]
		d.mu.RUnlock()
		if ok {
			return d.Leaves[idx].Path, nil
		}
	}

	idx, err := d.probe(fn)
	if err != nil {
		return nil, err
	}

	if key != 0 {
		d.mu.Lock()
		d.resolved[key] = idx
		d.mu.Unlock()
	}
	return d.Leaves[idx].Path, nil
}

// Column resolves an accessor directly to its column name.
func (d *Discovery) Column(fn func(any) any, key uintptr) (string, error) {
	p, err := d.Resolve(fn, key)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

func (d *Discovery) probe(fn func(any) any) (idx int, err error) {
	defer func() {
		if r := recover(); r != nil {
			idx = 0
			err = &AccessorError{Type: d.Type, Reason: fmt.Sprintf("accessor panicked: %v", r)}
		}
	}()

	toks := make([]string, len(d.instances))
	for i, inst := range d.instances {
		out := fn(inst.Interface())
		p, encErr := value.Encode(out)
		if encErr != nil {
			return 0, &AccessorError{Type: d.Type, Reason: fmt.Sprintf("accessor result: %v", encErr)}
		}
		toks[i] = value.Token(p)
	}

	idx, ok := d.byPrint[strings.Join(toks, printSep)]
	if !ok {
		return 0, &AccessorError{Type: d.Type,
			Reason: "value sequence matches no leaf field (does the accessor read a collection element or a derived value?)"}
	}
	return idx, nil
}
