package classes

// A class contains a number of fields. Each field has a value kind.
// Fields can be appended to a class, but never removed; a migration
// that drops a field retires its offset. Max number of fields is 4095
// (the offset space of an ID). The Offset+Kind pair is the *actual
// key* for the field in the database, so entries sharing Offset+Kind
// are renames, not new fields.

import (
	"unicode/utf8"

	"github.com/lodge-db/lodge/rdt"
)

type IndexType byte

const (
	NoIndex   IndexType = 0
	HashIndex IndexType = 'H'
)

type Field struct {
	Offset   uint64
	Name     string
	Kind     rdt.Kind
	Elem     rdt.Kind // element kind, list fields only
	Optional bool
	Index    IndexType
	Primary  bool
}

type Fields []Field

func (f Field) Valid() bool {
	for _, l := range f.Name { // has unsafe chars
		if l < ' ' {
			return false
		}
	}
	if len(f.Name) == 0 || !utf8.ValidString(f.Name) {
		return false
	}
	if !f.Kind.Valid() || f.Kind == rdt.Object {
		return false
	}
	if f.Kind == rdt.List {
		if !f.Elem.Scalar() && f.Elem != rdt.Link {
			return false
		}
		if f.Primary || f.Index != NoIndex {
			return false
		}
	}
	if f.Primary {
		switch f.Kind {
		case rdt.Integer, rdt.String, rdt.Identifier:
		default:
			return false
		}
		if f.Optional {
			return false
		}
	}
	return true
}

// Indexed reports whether the field needs an index entry; a primary
// key is indexed whether or not it was declared so.
func (f Field) Indexed() bool {
	return f.Index != NoIndex || f.Primary
}

func (fs Fields) MaxOffset() (off uint64) {
	for _, f := range fs {
		if f.Offset > off {
			off = f.Offset
		}
	}
	return
}

func (fs Fields) FindName(name string) (ndx int) {
	for i := 0; i < len(fs); i++ {
		if fs[i].Name == name {
			return i
		}
	}
	return -1
}

func (fs Fields) FindOffset(off uint64) (ndx int) {
	for i := 0; i < len(fs); i++ {
		if fs[i].Offset == off {
			return i
		}
	}
	return -1
}

func (fs Fields) PrimaryField() (ndx int) {
	for i := 0; i < len(fs); i++ {
		if fs[i].Primary {
			return i
		}
	}
	return -1
}

// WithOffsets assigns declaration-order offsets 1..N to fields that
// have none.
func (fs Fields) WithOffsets() Fields {
	next := fs.MaxOffset()
	for i := range fs {
		if fs[i].Offset == 0 {
			next++
			fs[i].Offset = next
		}
	}
	return fs
}
