package rdt

import "github.com/google/uuid"

// Zero is the deterministic zero value of a kind: numeric zero, false,
// empty string/bytes, zero time, nil uuid, null link, empty list.
func Zero(kind Kind) Value {
	switch kind {
	case Bool:
		return NewBool(false)
	case Integer:
		return NewInteger(0)
	case Float:
		return NewFloat(0)
	case String:
		return NewString("")
	case Bytes:
		return NewBytes([]byte{})
	case Date:
		return Value{kind: Date}
	case Identifier:
		return NewIdentifier(uuid.Nil)
	case Link:
		return NewLink(ID0)
	case List:
		return NewList()
	}
	return Value{kind: kind, null: true}
}

// DefaultGenerator produces the canonical initial value for a property
// that was never assigned. Injectable so tests can count invocations.
type DefaultGenerator interface {
	Default(kind Kind, optional bool) Value
}

// StdDefaults: absent for optional fields, a freshly generated uuid for
// identifiers, the kind's zero otherwise.
type StdDefaults struct{}

func (StdDefaults) Default(kind Kind, optional bool) Value {
	if optional {
		return Null(kind)
	}
	if kind == Identifier {
		return NewIdentifier(uuid.New())
	}
	return Zero(kind)
}
