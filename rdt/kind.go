// Package rdt defines the closed set of value kinds a lodge store can
// persist, the TLV codecs for each kind, and the canonical defaults.
//
// A kind is a single uppercase letter; the letter doubles as the type
// tag in the on-disk key, so a field that changes its kind gets a new
// key rather than a reinterpreted old one.
package rdt

type Kind byte

const (
	Bool       Kind = 'B'
	Integer    Kind = 'I'
	Float      Kind = 'F'
	String     Kind = 'S'
	Bytes      Kind = 'X'
	Date       Kind = 'D'
	Identifier Kind = 'U'
	Link       Kind = 'R'
	List       Kind = 'L'
	Object     Kind = 'O'
	None       Kind = 0
)

func (k Kind) Valid() bool {
	switch k {
	case Bool, Integer, Float, String, Bytes, Date, Identifier, Link, List, Object:
		return true
	}
	return false
}

// Scalar reports whether the kind is a plain value, as opposed to a
// live collection or an object record head.
func (k Kind) Scalar() bool {
	return k.Valid() && k != List && k != Object
}

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Date:
		return "date"
	case Identifier:
		return "identifier"
	case Link:
		return "link"
	case List:
		return "list"
	case Object:
		return "object"
	}
	return "none"
}
