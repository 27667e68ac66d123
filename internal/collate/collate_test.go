package collate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "nocase", Fold("NoCase"))
	assert.Equal(t, "binary", Fold("BINARY"))
	assert.Equal(t, "x_1", Fold("X_1"))
	// Non-ASCII letters do not fold.
	assert.Equal(t, "Ärm", Fold("Ärm"))
}

func TestNewTable_Builtins(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, []string{"binary", "nocase", "unicode"}, tbl.Names())

	fn, ok := tbl.Rule("binary")
	require.True(t, ok)
	assert.Equal(t, -1, fn("a", "b"))
	assert.Equal(t, 0, fn("a", "a"))
	assert.Equal(t, 1, fn("b", "a"))

	fn, ok = tbl.Rule("NOCASE")
	require.True(t, ok)
	assert.Equal(t, 0, fn("Hello", "hello"))
	assert.NotEqual(t, 0, fn("Hello", "world"))

	fn, ok = tbl.Rule("unicode")
	require.True(t, ok)
	assert.Equal(t, 0, fn("abc", "abc"))
	assert.NotEqual(t, 0, fn("abc", "abd"))
}

func TestRegister(t *testing.T) {
	tbl := NewTable()
	byLen := func(a, b string) int {
		switch {
		case len(a) < len(b):
			return -1
		case len(a) > len(b):
			return 1
		default:
			return strings.Compare(a, b)
		}
	}
	require.NoError(t, tbl.Register("by_len", byLen))
	assert.True(t, tbl.Has("BY_LEN"))

	fn, ok := tbl.Rule("by_len")
	require.True(t, ok)
	assert.Equal(t, -1, fn("zz", "aaa"))
}

func TestRegister_Rejections(t *testing.T) {
	tbl := NewTable()

	assert.Error(t, tbl.Register("", strings.Compare))
	assert.Error(t, tbl.Register("1abc", strings.Compare))
	assert.Error(t, tbl.Register("bad name", strings.Compare))
	assert.Error(t, tbl.Register("ok", nil))

	// Folded names collide with built-ins and with each other.
	assert.Error(t, tbl.Register("Binary", strings.Compare))
	require.NoError(t, tbl.Register("mine", strings.Compare))
	assert.Error(t, tbl.Register("MINE", strings.Compare))
}

func TestDefaults(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, Binary, tbl.Default("users", "anything"))

	require.NoError(t, tbl.SetDefault("users", "name", "NoCase"))
	assert.Equal(t, "nocase", tbl.Default("users", "name"))
	assert.Equal(t, Binary, tbl.Default("users", "other"))

	// Same column name on another table keeps its own default.
	assert.Equal(t, Binary, tbl.Default("logs", "name"))

	assert.Error(t, tbl.SetDefault("users", "name", "missing_rule"))
}
