package rdt

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Value is the type-erased payload a property slot or a record field
// carries. It is a tagged variant over the closed Kind set; scalar and
// collection payloads travel uniformly and get discriminated at the
// interface boundary.
type Value struct {
	kind  Kind
	null  bool
	i     int64 // Bool (0/1), Integer, Date (unix nanos)
	f     float64
	b     []byte // String, Bytes, Identifier (16 bytes)
	r     ID
	elems []Value
}

func NewBool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: Bool, i: i}
}

func NewInteger(v int64) Value {
	return Value{kind: Integer, i: v}
}

func NewFloat(v float64) Value {
	return Value{kind: Float, f: v}
}

func NewString(v string) Value {
	return Value{kind: String, b: []byte(v)}
}

func NewBytes(v []byte) Value {
	return Value{kind: Bytes, b: v}
}

func NewDate(v time.Time) Value {
	return Value{kind: Date, i: v.UnixNano()}
}

func NewIdentifier(v uuid.UUID) Value {
	return Value{kind: Identifier, b: v[:]}
}

func NewLink(v ID) Value {
	return Value{kind: Link, r: v}
}

func NewList(elems ...Value) Value {
	return Value{kind: List, elems: elems}
}

// Null is the absent value of an optional field.
func Null(kind Kind) Value {
	return Value{kind: kind, null: true}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.null }

func (v Value) Bool() bool       { return v.i != 0 }
func (v Value) Int64() int64     { return v.i }
func (v Value) Float64() float64 { return v.f }
func (v Value) Str() string      { return string(v.b) }
func (v Value) Blob() []byte     { return v.b }
func (v Value) Ref() ID          { return v.r }
func (v Value) Elems() []Value   { return v.elems }

func (v Value) Date() time.Time {
	return time.Unix(0, v.i)
}

func (v Value) UUID() uuid.UUID {
	var u uuid.UUID
	copy(u[:], v.b)
	return u
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind || v.null != other.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.kind {
	case Bool, Integer, Date:
		return v.i == other.i
	case Float:
		return v.f == other.f
	case String, Bytes, Identifier:
		return bytes.Equal(v.b, other.b)
	case Link:
		return v.r == other.r
	case List:
		if len(v.elems) != len(other.elems) {
			return false
		}
		for n := range v.elems {
			if !v.elems[n].Equal(other.elems[n]) {
				return false
			}
		}
		return true
	}
	return false
}
