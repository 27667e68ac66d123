package sample

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowmap/internal/value"
)

func TestNewRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	builtins := []any{
		false, int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0), "", []byte(nil),
		time.Time{}, uuid.UUID{},
	}
	for _, v := range builtins {
		typ := reflect.TypeOf(v)
		assert.True(t, r.Has(typ), "missing builtin pair for %s", typ)
	}
}

func TestFor_PairsEncodeDistinctly(t *testing.T) {
	r := NewRegistry()
	for _, v := range []any{false, int(0), "", []byte(nil), time.Time{}, uuid.UUID{}} {
		typ := reflect.TypeOf(v)
		p, err := r.For(typ)
		require.NoError(t, err, "type %s", typ)

		zp, err := value.Encode(p.Zero)
		require.NoError(t, err)
		op, err := value.Encode(p.One)
		require.NoError(t, err)
		assert.NotEqual(t, value.Token(zp), value.Token(op), "type %s", typ)
	}
}

type status int

func TestRegister_Custom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(status(0), status(1)))

	p, err := r.For(reflect.TypeOf(status(0)))
	require.NoError(t, err)
	assert.Equal(t, status(0), p.Zero)
	assert.Equal(t, status(1), p.One)
}

func TestRegister_Rejections(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil, status(1)))
	assert.Error(t, r.Register(status(0), int(1)))

	// Identical encodings make fields indistinguishable.
	assert.Error(t, r.Register(status(3), status(3)))
}

type opaque struct {
	Raw string
}

func (opaque) SampleValues() (any, any) {
	return opaque{Raw: "a"}, opaque{Raw: "b"}
}

func TestFor_Provider(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(opaque{})
	require.True(t, r.Has(typ))

	p, err := r.For(typ)
	require.NoError(t, err)
	assert.Equal(t, opaque{Raw: "a"}, p.Zero)
	assert.Equal(t, opaque{Raw: "b"}, p.One)
}

type crooked struct {
	N int
}

func (crooked) SampleValues() (any, any) { return crooked{N: 0}, 1 }

type vacant struct {
	N int
}

func (vacant) SampleValues() (any, any) { return nil, nil }

func TestFor_MisbehavingProvider(t *testing.T) {
	r := NewRegistry()
	var noSamples *ErrNoSamples

	// Wrong dynamic types are a defect of the provider, named in the
	// error, not a missing pair.
	typ := reflect.TypeOf(crooked{})
	require.True(t, r.Has(typ))
	_, err := r.For(typ)
	require.Error(t, err)
	assert.False(t, errors.As(err, &noSamples))
	assert.Contains(t, err.Error(), "crooked")
	assert.Contains(t, err.Error(), "int")

	// So are nil sample values.
	typ = reflect.TypeOf(vacant{})
	require.True(t, r.Has(typ))
	_, err = r.For(typ)
	require.Error(t, err)
	assert.False(t, errors.As(err, &noSamples))
	assert.Contains(t, err.Error(), "nil value")
}

type secret struct{}

func TestFor_Missing(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(secret{})
	require.False(t, r.Has(typ))

	_, err := r.For(typ)
	var noSamples *ErrNoSamples
	require.True(t, errors.As(err, &noSamples))
	assert.Equal(t, typ, noSamples.Type)
	assert.Contains(t, noSamples.Error(), "secret")
}
