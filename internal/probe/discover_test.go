package probe

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowmap/internal/sample"
	"github.com/roach88/rowmap/internal/value"
)

type user struct {
	ID     string `db:"id,primary"`
	Name   string `db:"name"`
	Age    int    `db:"age"`
	Active bool
	Score  float64 `db:"score"`
}

func discoverT(t *testing.T, v any) *Discovery {
	t.Helper()
	d, err := Discover(reflect.TypeOf(v), sample.NewRegistry())
	require.NoError(t, err)
	return d
}

func TestDiscover_RowCount(t *testing.T) {
	// Five leaves need three probe rows: 2^2 = 4 < 5 <= 2^3.
	d := discoverT(t, user{})
	assert.Equal(t, 3, d.Rows)
	assert.Len(t, d.Instances(), 3)
	assert.Len(t, d.Leaves, 5)
}

func TestDiscover_PathsInDeclarationOrder(t *testing.T) {
	d := discoverT(t, user{})
	var got []string
	for _, p := range d.Paths() {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{"id", "name", "age", "Active", "score"}, got)
}

func TestDiscover_RowPlan(t *testing.T) {
	type quad struct {
		A int `db:"a"`
		B int `db:"b"`
		C int `db:"c"`
		D int `db:"d"`
	}
	d := discoverT(t, quad{})
	require.Equal(t, 2, d.Rows)

	// In row r, leaf k holds its One value iff bit r of k is set.
	insts := d.Instances()
	r0 := insts[0].(*quad)
	r1 := insts[1].(*quad)
	assert.Equal(t, quad{A: 0, B: 1, C: 0, D: 1}, *r0)
	assert.Equal(t, quad{A: 0, B: 0, C: 1, D: 1}, *r1)
}

func TestDiscover_SingleField(t *testing.T) {
	type one struct {
		Name string `db:"name"`
	}
	d := discoverT(t, one{})
	assert.Equal(t, 1, d.Rows)
	assert.Len(t, d.Leaves, 1)
}

func TestDiscover_PointerTypeDereferences(t *testing.T) {
	d, err := Discover(reflect.TypeOf(&user{}), sample.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(user{}), d.Type)
}

func TestDiscover_Nested(t *testing.T) {
	type address struct {
		City string `db:"city"`
		Zip  string `db:"zip"`
	}
	type person struct {
		ID   string  `db:"id,primary"`
		Home address `db:"home"`
		Work address `db:"work"`
	}
	d := discoverT(t, person{})
	var got []string
	for _, p := range d.Paths() {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{"id", "home.city", "home.zip", "work.city", "work.zip"}, got)
}

func TestDiscover_TagHandling(t *testing.T) {
	type tagged struct {
		ID      string `db:"id,primary"`
		Renamed string `db:"other_name"`
		Skipped string `db:"-"`
		hidden  string
		Plain   string
	}
	_ = tagged{hidden: ""}

	d := discoverT(t, tagged{})
	require.Len(t, d.Leaves, 3)
	assert.Equal(t, "id", d.Leaves[0].Path.String())
	assert.True(t, d.Leaves[0].PK)
	assert.Equal(t, "other_name", d.Leaves[1].Path.String())
	assert.Equal(t, "Plain", d.Leaves[2].Path.String())
}

func TestDiscover_PrimaryOnlyAtTopLevel(t *testing.T) {
	type inner struct {
		Key string `db:"key,primary"`
	}
	type outer struct {
		ID    string `db:"id,primary"`
		Inner inner  `db:"inner"`
	}
	d := discoverT(t, outer{})
	require.Len(t, d.Leaves, 2)
	assert.True(t, d.Leaves[0].PK)
	assert.False(t, d.Leaves[1].PK)
}

func TestDiscover_Containers(t *testing.T) {
	type bag struct {
		ID     string         `db:"id,primary"`
		Tags   []string       `db:"tags"`
		Counts map[string]int `db:"counts"`
	}
	d := discoverT(t, bag{})
	require.Len(t, d.Leaves, 3)
	assert.Equal(t, value.KindText, d.Leaves[1].Kind)
	assert.Equal(t, value.KindText, d.Leaves[2].Kind)
}

func TestDiscover_OptionalScalars(t *testing.T) {
	type opt struct {
		ID   string     `db:"id,primary"`
		Note *string    `db:"note"`
		Seen *time.Time `db:"seen"`
	}
	d := discoverT(t, opt{})
	require.Len(t, d.Leaves, 3)
	assert.Equal(t, value.KindText, d.Leaves[1].Kind)
}

type derivedStatus string

func TestDiscover_NamedScalar(t *testing.T) {
	type rec struct {
		ID     string        `db:"id,primary"`
		Status derivedStatus `db:"status"`
	}
	d := discoverT(t, rec{})
	require.Len(t, d.Leaves, 2)
	assert.Equal(t, value.KindText, d.Leaves[1].Kind)
}

func TestDiscover_NotAStruct(t *testing.T) {
	_, err := Discover(reflect.TypeOf(42), sample.NewRegistry())
	assert.True(t, IsShapeError(err))
}

func TestDiscover_NoSamplesForOpaqueStruct(t *testing.T) {
	type rec struct {
		ID    string `db:"id,primary"`
		Vault vault  `db:"vault"`
	}

	// vault encodes to text but has no sample pair, so two
	// distinguishable probe values cannot be synthesized for it.
	_, err := Discover(reflect.TypeOf(rec{}), sample.NewRegistry())
	require.Error(t, err)
	assert.True(t, IsNoSamplesError(err))
}

func TestDiscover_PointerToNestedRecord(t *testing.T) {
	type inner struct {
		City string `db:"city"`
	}
	type rec struct {
		ID   string `db:"id,primary"`
		Home *inner `db:"home"`
	}
	_, err := Discover(reflect.TypeOf(rec{}), sample.NewRegistry())
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
	assert.Contains(t, err.Error(), "home")
}

func TestDiscover_UnsupportedFieldType(t *testing.T) {
	type rec struct {
		ID string `db:"id,primary"`
		Fn func() `db:"fn"`
	}
	_, err := Discover(reflect.TypeOf(rec{}), sample.NewRegistry())
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

type vault struct{ secret string }

func (v vault) MarshalText() ([]byte, error) { return []byte(v.secret), nil }

type bomb struct{ N int }

func (bomb) SampleValues() (any, any) {
	panic("sample construction failed")
}

func TestDiscover_PanicDuringSynthesis(t *testing.T) {
	type rec struct {
		ID string `db:"id,primary"`
		B  bomb   `db:"b"`
	}
	_, err := Discover(reflect.TypeOf(rec{}), sample.NewRegistry())
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
	assert.Contains(t, err.Error(), "panic")
}

type skewed struct{ N int }

func (skewed) SampleValues() (any, any) { return skewed{}, 1 }

func TestDiscover_ProviderWrongTypes(t *testing.T) {
	type rec struct {
		ID string `db:"id,primary"`
		S  skewed `db:"s"`
	}

	// A provider handing back values of another type is a shape defect
	// of the record, not a missing sample pair.
	_, err := Discover(reflect.TypeOf(rec{}), sample.NewRegistry())
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
	assert.False(t, IsNoSamplesError(err))
	assert.Contains(t, err.Error(), "skewed")
}

type crossA string
type crossB string

func TestDiscover_FingerprintCollision(t *testing.T) {
	// Crossed sample pairs make the two fields swap roles in every probe
	// row, so their value vectors cannot be told apart.
	reg := sample.NewRegistry()
	require.NoError(t, reg.Register(crossA("a"), crossA("b")))
	require.NoError(t, reg.Register(crossB("b"), crossB("a")))

	type rec struct {
		X crossA `db:"x"`
		Y crossB `db:"y"`
	}
	_, err := Discover(reflect.TypeOf(rec{}), reg)
	require.Error(t, err)
	assert.True(t, IsFingerprintError(err))
}

func TestExtract(t *testing.T) {
	d := discoverT(t, user{})
	rec := &user{ID: "u1", Name: "ada", Age: 36, Active: true, Score: 9.5}
	prims, err := d.Extract(rec)
	require.NoError(t, err)
	assert.Equal(t, []value.Primitive{
		value.Text("u1"), value.Text("ada"), value.Int(36), value.Int(1), value.Float(9.5),
	}, prims)
}

func TestSetLeaf(t *testing.T) {
	d := discoverT(t, user{})
	var rec user
	require.NoError(t, d.SetLeaf(&rec, d.LeafAt("name"), value.Text("ada")))
	require.NoError(t, d.SetLeaf(&rec, d.LeafAt("age"), value.Int(36)))
	require.NoError(t, d.SetLeaf(&rec, d.LeafAt("Active"), value.Int(1)))
	assert.Equal(t, user{Name: "ada", Age: 36, Active: true}, rec)
}

func TestLeafIsZero(t *testing.T) {
	d := discoverT(t, user{})
	rec := user{Name: "ada"}
	zero, err := d.LeafIsZero(&rec, d.LeafAt("id"))
	require.NoError(t, err)
	assert.True(t, zero)
	zero, err = d.LeafIsZero(&rec, d.LeafAt("name"))
	require.NoError(t, err)
	assert.False(t, zero)
}

func TestSetLeafValue(t *testing.T) {
	d := discoverT(t, user{})
	var rec user
	require.NoError(t, d.SetLeafValue(&rec, d.LeafAt("age"), int64(40)))
	assert.Equal(t, 40, rec.Age)

	err := d.SetLeafValue(&rec, d.LeafAt("name"), []int{1})
	assert.Error(t, err)
}

func TestLeafAt_Unknown(t *testing.T) {
	d := discoverT(t, user{})
	assert.Equal(t, -1, d.LeafAt("no_such_column"))
}
