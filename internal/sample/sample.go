// Package sample supplies pairs of distinguishable representative values
// used to synthesize probe instances during structural discovery.
//
// Every leaf field type needs a Pair whose two values encode differently,
// so a field's value sequence across probe rows uniquely identifies it.
package sample

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/rowmap/internal/value"
)

// Pair holds two values of one type whose encodings differ.
// Zero stands in for bit 0 of a probe row plan, One for bit 1.
type Pair struct {
	Zero any
	One  any
}

// Provider is implemented by opaque field types that supply their own
// sample pair instead of registering one externally.
type Provider interface {
	SampleValues() (zero, one any)
}

var providerType = reflect.TypeOf((*Provider)(nil)).Elem()

// ErrNoSamples reports a leaf field type with no registered Pair that
// does not implement Provider either.
type ErrNoSamples struct {
	Type reflect.Type
}

func (e *ErrNoSamples) Error() string {
	return fmt.Sprintf("no sample values for type %s: register a pair or implement sample.Provider", e.Type)
}

// Registry maps types to sample Pairs. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	pairs map[reflect.Type]Pair
}

// NewRegistry returns a Registry preloaded with pairs for every built-in
// scalar type, time.Time, and uuid.UUID.
func NewRegistry() *Registry {
	r := &Registry{pairs: make(map[reflect.Type]Pair)}
	builtins := []Pair{
		{false, true},
		{int(0), int(1)},
		{int8(0), int8(1)},
		{int16(0), int16(1)},
		{int32(0), int32(1)},
		{int64(0), int64(1)},
		{uint(0), uint(1)},
		{uint8(0), uint8(1)},
		{uint16(0), uint16(1)},
		{uint32(0), uint32(1)},
		{uint64(0), uint64(1)},
		{float32(0), float32(1)},
		{float64(0), float64(1)},
		{"", "1"},
		{[]byte{0}, []byte{1}},
		{time.Unix(0, 0).UTC(), time.Unix(1, 0).UTC()},
		{uuid.UUID{}, uuid.MustParse("00000000-0000-0000-0000-000000000001")},
	}
	for _, p := range builtins {
		// Built-in pairs are known-distinguishable; skip validation.
		r.pairs[reflect.TypeOf(p.Zero)] = p
	}
	return r
}

// Register adds a custom Pair for the dynamic type of zero.
// Both values must have the same type and must encode to different
// tokens, otherwise fields of this type would be indistinguishable.
func (r *Registry) Register(zero, one any) error {
	if zero == nil || one == nil {
		return fmt.Errorf("register samples: nil value")
	}
	zt, ot := reflect.TypeOf(zero), reflect.TypeOf(one)
	if zt != ot {
		return fmt.Errorf("register samples: mismatched types %s and %s", zt, ot)
	}
	if err := validatePair(Pair{zero, one}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[zt] = Pair{Zero: zero, One: one}
	return nil
}

// For returns the Pair for type t. Lookup order: registered pairs, then
// the Provider interface on t or *t. Returns ErrNoSamples when neither
// source applies.
func (r *Registry) For(t reflect.Type) (Pair, error) {
	r.mu.RLock()
	p, ok := r.pairs[t]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	pair, ok, err := providerPair(t)
	if err != nil {
		return Pair{}, err
	}
	if ok {
		if err := validatePair(pair); err != nil {
			return Pair{}, err
		}
		r.mu.Lock()
		r.pairs[t] = pair
		r.mu.Unlock()
		return pair, nil
	}

	return Pair{}, &ErrNoSamples{Type: t}
}

// Has reports whether a Pair is obtainable for t without producing one.
func (r *Registry) Has(t reflect.Type) bool {
	r.mu.RLock()
	_, ok := r.pairs[t]
	r.mu.RUnlock()
	if ok {
		return true
	}
	return t.Implements(providerType) || reflect.PointerTo(t).Implements(providerType)
}

// providerPair obtains a pair from the Provider interface on t or *t.
// A Provider that returns nils or values of another type is a defect of
// the field type, reported as an error rather than a missing pair.
func providerPair(t reflect.Type) (Pair, bool, error) {
	var pv reflect.Value
	switch {
	case t.Implements(providerType):
		pv = reflect.New(t).Elem()
	case reflect.PointerTo(t).Implements(providerType):
		pv = reflect.New(t)
	default:
		return Pair{}, false, nil
	}
	zero, one := pv.Interface().(Provider).SampleValues()
	if zero == nil || one == nil {
		return Pair{}, false, fmt.Errorf("sample provider for %s returned a nil value", t)
	}
	if reflect.TypeOf(zero) != t || reflect.TypeOf(one) != t {
		return Pair{}, false, fmt.Errorf("sample provider for %s returned %T and %T, want %s values",
			t, zero, one, t)
	}
	return Pair{Zero: zero, One: one}, true, nil
}

func validatePair(p Pair) error {
	zp, err := value.Encode(p.Zero)
	if err != nil {
		return fmt.Errorf("sample zero value: %w", err)
	}
	op, err := value.Encode(p.One)
	if err != nil {
		return fmt.Errorf("sample one value: %w", err)
	}
	if value.Token(zp) == value.Token(op) {
		return fmt.Errorf("sample values for %T encode identically (%s)", p.Zero, value.Token(zp))
	}
	return nil
}
