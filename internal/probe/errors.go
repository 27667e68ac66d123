package probe

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/rowmap/internal/sample"
)

// ShapeError reports a record type whose structure cannot be discovered:
// unsupported field kinds, unstable shapes across probe instances, or a
// panic raised mid-synthesis by a field type's own code.
//
// Shape errors are fatal for the record type and non-retryable; the type
// must be changed.
type ShapeError struct {
	Type   reflect.Type
	Field  Path
	Reason string
}

func (e *ShapeError) Error() string {
	if len(e.Field) > 0 {
		return fmt.Sprintf("invalid record shape %s: field %s: %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid record shape %s: %s", e.Type, e.Reason)
}

// FingerprintError reports two leaf fields whose value vectors across all
// probe instances are identical, making them indistinguishable. Usually
// caused by a custom sample pair colliding with a built-in one.
type FingerprintError struct {
	Type  reflect.Type
	Paths []Path
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("duplicate fingerprint in %s: fields %s and %s are indistinguishable",
		e.Type, e.Paths[0], e.Paths[1])
}

// AccessorError reports an accessor that could not be mapped to a flat
// field path, e.g. one reaching into a collection element. Fatal for that
// accessor use, not for the record type.
type AccessorError struct {
	Type   reflect.Type
	Reason string
}

func (e *AccessorError) Error() string {
	return fmt.Sprintf("accessor not found in %s: %s", e.Type, e.Reason)
}

// IsShapeError reports whether err is a ShapeError. Uses errors.As to
// handle wrapped errors.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsFingerprintError reports whether err is a FingerprintError.
func IsFingerprintError(err error) bool {
	var fe *FingerprintError
	return errors.As(err, &fe)
}

// IsAccessorError reports whether err is an AccessorError.
func IsAccessorError(err error) bool {
	var ae *AccessorError
	return errors.As(err, &ae)
}

// IsNoSamplesError reports whether err is a sample.ErrNoSamples.
func IsNoSamplesError(err error) bool {
	var ns *sample.ErrNoSamples
	return errors.As(err, &ns)
}
