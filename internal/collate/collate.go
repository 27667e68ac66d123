// Package collate holds the named comparison rules available to
// compiled queries, plus per-column default rules.
//
// Rule names are keyed by their ASCII-case-folded form to match SQLite's
// identifier comparison: "NoCase" and "nocase" are the same rule, and
// registering both is a conflict rather than two rules.
package collate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	xcollate "golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Func compares two strings, returning -1, 0, or 1.
type Func func(a, b string) int

// Names of the built-in rules.
const (
	Binary  = "binary"
	NoCase  = "nocase"
	Unicode = "unicode"
)

// Fold returns the canonical ASCII-case-folded form of a rule name.
// Only ASCII letters fold, mirroring SQLite identifier comparison.
func Fold(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

type rule struct {
	fn      Func
	builtin bool // provided by SQLite itself, never installed on a conn
}

// Table is the registry of comparison rules and per-column defaults.
// Defaults are scoped to a table so collections sharing a column name
// stay independent. Safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	rules    map[string]rule
	defaults map[string]string // table + "." + column -> folded rule name
}

// NewTable returns a Table with the binary, nocase, and unicode rules.
// binary and nocase are SQLite built-ins; unicode is backed by an
// x/text collator for the und locale.
func NewTable() *Table {
	t := &Table{
		rules:    make(map[string]rule),
		defaults: make(map[string]string),
	}
	t.rules[Binary] = rule{fn: strings.Compare, builtin: true}
	t.rules[NoCase] = rule{fn: func(a, b string) int {
		return strings.Compare(Fold(a), Fold(b))
	}, builtin: true}

	// The collator carries internal buffers, so calls are serialized.
	var cmu sync.Mutex
	coll := xcollate.New(language.Und)
	t.rules[Unicode] = rule{fn: func(a, b string) int {
		cmu.Lock()
		defer cmu.Unlock()
		return coll.CompareString(a, b)
	}}
	return t
}

// Register adds a named comparison rule. The name is case-folded; a
// second registration under an equivalent name is rejected.
func (t *Table) Register(name string, fn Func) error {
	folded := Fold(name)
	if !validName(folded) {
		return fmt.Errorf("register collation: invalid name %q", name)
	}
	if fn == nil {
		return fmt.Errorf("register collation %q: nil comparison func", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rules[folded]; exists {
		return fmt.Errorf("collation %q already registered", folded)
	}
	t.rules[folded] = rule{fn: fn}
	return nil
}

// Rule looks up a comparison rule by name (case-insensitively).
func (t *Table) Rule(name string) (Func, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rules[Fold(name)]
	if !ok {
		return nil, false
	}
	return r.fn, true
}

// Has reports whether a rule name is known.
func (t *Table) Has(name string) bool {
	_, ok := t.Rule(name)
	return ok
}

// SetDefault records the default comparison rule for a table's column.
// The rule must already be registered.
func (t *Table) SetDefault(table, column, name string) error {
	folded := Fold(name)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rules[folded]; !ok {
		return fmt.Errorf("default collation for %q.%q: unknown rule %q", table, column, name)
	}
	t.defaults[table+"."+column] = folded
	return nil
}

// Default returns the default rule name for a table's column. The
// fallback is binary, plain value comparison.
func (t *Table) Default(table, column string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if name, ok := t.defaults[table+"."+column]; ok {
		return name
	}
	return Binary
}

// Names returns all registered rule names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.rules))
	for name := range t.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validName restricts rule names to plain identifiers so they can be
// emitted after COLLATE without quoting.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RegisterConn installs every non-built-in rule on a fresh SQLite
// connection. Called from the driver's ConnectHook, so each connection
// sees each rule exactly once.
func (t *Table) RegisterConn(conn *sqlite3.SQLiteConn) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for name, r := range t.rules {
		if r.builtin {
			continue
		}
		if err := conn.RegisterCollation(name, r.fn); err != nil {
			return fmt.Errorf("register collation %q: %w", name, err)
		}
	}
	return nil
}
