package value

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

var (
	timeType            = reflect.TypeOf(time.Time{})
	byteSliceType       = reflect.TypeOf([]byte(nil))
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Encode maps a Go value to its stored Primitive.
//
// Scalars map directly (bool and all integer widths to Int, floats to
// Float, string to Text, []byte to Blob). Pointers dereference, with nil
// encoding to Null. time.Time and TextMarshaler types encode to Text.
// Anything structured falls back to the generic structured-text encoding
// (JSON) stored as Text.
func Encode(v any) (Primitive, error) {
	if v == nil {
		return Null{}, nil
	}
	if p, ok := v.(Primitive); ok {
		return p, nil
	}
	rv := reflect.ValueOf(v)
	return encodeValue(rv)
}

func encodeValue(rv reflect.Value) (Primitive, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null{}, nil
		}
		rv = rv.Elem()
	}

	if rv.Type() == timeType {
		t := rv.Interface().(time.Time)
		return Text(t.UTC().Format(time.RFC3339Nano)), nil
	}
	if rv.Type().Implements(textMarshalerType) {
		b, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshal text: %w", err)
		}
		return Text(b), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return Int(1), nil
		}
		return Int(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		// Stored integers are signed 64-bit; a value past MaxInt64 would
		// wrap negative and sort before every other row.
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("encode %s: %d exceeds the signed 64-bit storage range", rv.Type(), u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Slice:
		if rv.Type() == byteSliceType {
			if rv.IsNil() {
				return Null{}, nil
			}
			return Blob(rv.Bytes()), nil
		}
	}

	// Generic structured-text fallback for slices, maps, and structs.
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rv.Type(), err)
	}
	return Text(b), nil
}

// Decode writes a stored Primitive into dst, the inverse of Encode.
// dst must be settable.
func Decode(p Primitive, dst reflect.Value) error {
	if !dst.CanSet() {
		return fmt.Errorf("decode into unsettable %s", dst.Type())
	}

	if dst.Kind() == reflect.Pointer {
		if _, isNull := p.(Null); isNull {
			dst.SetZero()
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return Decode(p, dst.Elem())
	}

	if _, isNull := p.(Null); isNull {
		dst.SetZero()
		return nil
	}

	if dst.Type() == timeType {
		txt, ok := p.(Text)
		if !ok {
			return fmt.Errorf("decode time.Time: want text, got %T", p)
		}
		t, err := time.Parse(time.RFC3339Nano, string(txt))
		if err != nil {
			return fmt.Errorf("decode time.Time: %w", err)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}
	if dst.Addr().Type().Implements(textUnmarshalerType) {
		txt, ok := p.(Text)
		if !ok {
			return fmt.Errorf("decode %s: want text, got %T", dst.Type(), p)
		}
		return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(txt))
	}

	switch dst.Kind() {
	case reflect.Bool:
		n, ok := p.(Int)
		if !ok {
			return fmt.Errorf("decode bool: want integer, got %T", p)
		}
		dst.SetBool(n != 0)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := p.(Int)
		if !ok {
			return fmt.Errorf("decode %s: want integer, got %T", dst.Type(), p)
		}
		dst.SetInt(int64(n))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := p.(Int)
		if !ok {
			return fmt.Errorf("decode %s: want integer, got %T", dst.Type(), p)
		}
		if n < 0 {
			return fmt.Errorf("decode %s: stored integer %d is negative", dst.Type(), n)
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		switch v := p.(type) {
		case Float:
			dst.SetFloat(float64(v))
		case Int:
			dst.SetFloat(float64(v))
		default:
			return fmt.Errorf("decode %s: want float, got %T", dst.Type(), p)
		}
		return nil
	case reflect.String:
		txt, ok := p.(Text)
		if !ok {
			return fmt.Errorf("decode string: want text, got %T", p)
		}
		dst.SetString(string(txt))
		return nil
	case reflect.Slice:
		if dst.Type() == byteSliceType {
			b, ok := p.(Blob)
			if !ok {
				return fmt.Errorf("decode []byte: want blob, got %T", p)
			}
			dst.SetBytes(append([]byte(nil), b...))
			return nil
		}
	}

	txt, ok := p.(Text)
	if !ok {
		return fmt.Errorf("decode %s: want structured text, got %T", dst.Type(), p)
	}
	if err := json.Unmarshal([]byte(txt), dst.Addr().Interface()); err != nil {
		return fmt.Errorf("decode %s: %w", dst.Type(), err)
	}
	return nil
}

// EncodeKind reports the storage Kind a value of type t will encode to.
// Used by schema generation to pick column affinities without a sample
// value in hand.
func EncodeKind(t reflect.Type) Kind {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType || t.Implements(textMarshalerType) {
		return KindText
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.String:
		return KindText
	case reflect.Slice:
		if t == byteSliceType {
			return KindBlob
		}
		return KindText
	default:
		return KindText
	}
}
