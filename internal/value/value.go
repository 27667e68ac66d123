package value

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Primitive is a sealed interface over the five stored scalar shapes.
// Only Null, Int, Float, Text, and Blob implement it. The marker method
// pattern enables exhaustive type switches in the codec and compiler.
type Primitive interface {
	primitive()
}

// Null represents the absence of a value (SQL NULL).
// An explicit type keeps every Primitive non-nil in Go terms.
type Null struct{}

func (Null) primitive() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) primitive() {}

// Float represents a floating-point value. Always float64.
type Float float64

func (Float) primitive() {}

// Text represents a string value.
type Text string

func (Text) primitive() {}

// Blob represents a raw byte value.
type Blob []byte

func (Blob) primitive() {}

// Kind identifies the storage class of a Primitive, used to pick a
// SQLite column affinity during schema generation.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Affinity returns the SQLite column type keyword for a Kind.
func (k Kind) Affinity() string {
	switch k {
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindBlob:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// KindOf returns the storage Kind of a Primitive.
func KindOf(p Primitive) Kind {
	switch p.(type) {
	case Null:
		return KindNull
	case Int:
		return KindInt
	case Float:
		return KindFloat
	case Text:
		return KindText
	case Blob:
		return KindBlob
	default:
		return KindNull
	}
}

// Token renders a Primitive as a kind-tagged canonical string.
//
// Tokens are the unit of fingerprint construction: two primitives of
// different kinds never produce the same token, so an Int 0 and a Text
// "0" cannot alias even when their printed forms match.
func Token(p Primitive) string {
	switch v := p.(type) {
	case Null:
		return "n"
	case Int:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case Float:
		return "f:" + strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Text:
		return "t:" + string(v)
	case Blob:
		return "b:" + hex.EncodeToString(v)
	default:
		return fmt.Sprintf("?:%v", p)
	}
}

// FromSQL converts a raw value produced by database/sql row scanning
// into a Primitive.
func FromSQL(raw any) Primitive {
	switch v := raw.(type) {
	case nil:
		return Null{}
	case int64:
		return Int(v)
	case float64:
		return Float(v)
	case string:
		return Text(v)
	case []byte:
		return Blob(v)
	case bool:
		if v {
			return Int(1)
		}
		return Int(0)
	case time.Time:
		return Text(v.UTC().Format(time.RFC3339Nano))
	default:
		return Text(fmt.Sprintf("%v", v))
	}
}

// Arg converts a Primitive to the native Go type expected by
// database/sql parameter binding.
func Arg(p Primitive) any {
	switch v := p.(type) {
	case Null:
		return nil
	case Int:
		return int64(v)
	case Float:
		return float64(v)
	case Text:
		return string(v)
	case Blob:
		return []byte(v)
	default:
		return nil
	}
}
