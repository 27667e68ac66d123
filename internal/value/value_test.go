package value

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func derefValue(dst any) reflect.Value { return reflect.ValueOf(dst).Elem() }

func typeOf(v any) reflect.Type { return reflect.TypeOf(v) }

func TestToken_DistinctAcrossKinds(t *testing.T) {
	// Printed forms collide; tokens must not.
	cases := []struct {
		name string
		a, b Primitive
	}{
		{"int vs text", Int(0), Text("0")},
		{"int vs float", Int(1), Float(1)},
		{"text vs blob", Text("ff"), Blob{0xff}},
		{"null vs empty text", Null{}, Text("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, Token(tc.a), Token(tc.b))
		})
	}
}

func TestToken_Canonical(t *testing.T) {
	assert.Equal(t, "n", Token(Null{}))
	assert.Equal(t, "i:42", Token(Int(42)))
	assert.Equal(t, "f:1.5", Token(Float(1.5)))
	assert.Equal(t, "t:hello", Token(Text("hello")))
	assert.Equal(t, "b:00ff", Token(Blob{0x00, 0xff}))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(Null{}))
	assert.Equal(t, KindInt, KindOf(Int(1)))
	assert.Equal(t, KindFloat, KindOf(Float(1)))
	assert.Equal(t, KindText, KindOf(Text("x")))
	assert.Equal(t, KindBlob, KindOf(Blob{1}))
}

func TestAffinity(t *testing.T) {
	assert.Equal(t, "INTEGER", KindInt.Affinity())
	assert.Equal(t, "REAL", KindFloat.Affinity())
	assert.Equal(t, "BLOB", KindBlob.Affinity())
	assert.Equal(t, "TEXT", KindText.Affinity())
	assert.Equal(t, "TEXT", KindNull.Affinity())
}

func TestFromSQL(t *testing.T) {
	assert.Equal(t, Null{}, FromSQL(nil))
	assert.Equal(t, Int(7), FromSQL(int64(7)))
	assert.Equal(t, Float(2.5), FromSQL(2.5))
	assert.Equal(t, Text("s"), FromSQL("s"))
	assert.Equal(t, Blob{1, 2}, FromSQL([]byte{1, 2}))
	assert.Equal(t, Int(1), FromSQL(true))
	assert.Equal(t, Int(0), FromSQL(false))

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Text("2024-03-01T12:00:00Z"), FromSQL(ts))
}

func TestArg(t *testing.T) {
	assert.Nil(t, Arg(Null{}))
	assert.Equal(t, int64(3), Arg(Int(3)))
	assert.Equal(t, 1.5, Arg(Float(1.5)))
	assert.Equal(t, "x", Arg(Text("x")))
	assert.Equal(t, []byte{9}, Arg(Blob{9}))
}

func TestEncode_Scalars(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Primitive
	}{
		{"bool true", true, Int(1)},
		{"bool false", false, Int(0)},
		{"int", 42, Int(42)},
		{"int8", int8(-3), Int(-3)},
		{"uint16", uint16(9), Int(9)},
		{"float32", float32(0.5), Float(0.5)},
		{"float64", 1.25, Float(1.25)},
		{"string", "hi", Text("hi")},
		{"bytes", []byte{0xAB}, Blob{0xAB}},
		{"nil", nil, Null{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncode_Pointers(t *testing.T) {
	n := 5
	got, err := Encode(&n)
	require.NoError(t, err)
	assert.Equal(t, Int(5), got)

	var np *int
	got, err = Encode(np)
	require.NoError(t, err)
	assert.Equal(t, Null{}, got)
}

func TestEncode_UnsignedRange(t *testing.T) {
	got, err := Encode(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, Int(math.MaxInt64), got)

	// Past MaxInt64 the stored integer would wrap negative and sort
	// before every other row.
	_, err = Encode(uint64(math.MaxInt64) + 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signed 64-bit")
}

func TestDecode_NegativeIntoUnsigned(t *testing.T) {
	var u uint32
	err := Decode(Int(-1), derefValue(&u))
	assert.Error(t, err)
}

func TestEncode_Time(t *testing.T) {
	ts := time.Date(2023, 6, 15, 8, 30, 0, 0, time.FixedZone("X", 3600))
	got, err := Encode(ts)
	require.NoError(t, err)
	assert.Equal(t, Text("2023-06-15T07:30:00Z"), got)
}

func TestEncode_Structured(t *testing.T) {
	got, err := Encode([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, Text(`["a","b"]`), got)

	got, err = Encode(map[string]int{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, Text(`{"k":1}`), got)
}

func TestDecode_RoundTrip(t *testing.T) {
	type inner struct {
		A string `json:"a"`
	}

	var (
		b    bool
		i    int
		u    uint32
		f    float64
		s    string
		bs   []byte
		ts   time.Time
		ptr  *int
		list []string
		obj  inner
	)

	decode := func(t *testing.T, p Primitive, dst any) {
		t.Helper()
		require.NoError(t, Decode(p, derefValue(dst)))
	}

	decode(t, Int(1), &b)
	assert.True(t, b)

	decode(t, Int(-7), &i)
	assert.Equal(t, -7, i)

	decode(t, Int(12), &u)
	assert.Equal(t, uint32(12), u)

	decode(t, Float(2.5), &f)
	assert.Equal(t, 2.5, f)

	decode(t, Text("hey"), &s)
	assert.Equal(t, "hey", s)

	decode(t, Blob{3, 4}, &bs)
	assert.Equal(t, []byte{3, 4}, bs)

	decode(t, Text("2024-03-01T12:00:00Z"), &ts)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ts)

	decode(t, Int(9), &ptr)
	require.NotNil(t, ptr)
	assert.Equal(t, 9, *ptr)

	decode(t, Null{}, &ptr)
	assert.Nil(t, ptr)

	decode(t, Text(`["x","y"]`), &list)
	assert.Equal(t, []string{"x", "y"}, list)

	decode(t, Text(`{"a":"z"}`), &obj)
	assert.Equal(t, inner{A: "z"}, obj)
}

func TestDecode_KindMismatch(t *testing.T) {
	var s string
	err := Decode(Int(1), derefValue(&s))
	assert.Error(t, err)

	var n int
	err = Decode(Text("1"), derefValue(&n))
	assert.Error(t, err)
}

func TestEncodeKind(t *testing.T) {
	assert.Equal(t, KindInt, EncodeKind(typeOf(true)))
	assert.Equal(t, KindInt, EncodeKind(typeOf(int32(0))))
	assert.Equal(t, KindFloat, EncodeKind(typeOf(float64(0))))
	assert.Equal(t, KindText, EncodeKind(typeOf("")))
	assert.Equal(t, KindBlob, EncodeKind(typeOf([]byte(nil))))
	assert.Equal(t, KindText, EncodeKind(typeOf(time.Time{})))
	assert.Equal(t, KindText, EncodeKind(typeOf([]string(nil))))

	p := new(int)
	assert.Equal(t, KindInt, EncodeKind(typeOf(p)))
}
