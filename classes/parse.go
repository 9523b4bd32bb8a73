package classes

import (
	"github.com/pkg/errors"

	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
)

var ErrBadClassTLV = errors.New("lodge: bad class TLV")

const (
	flagOptional = 1 << iota
	flagPrimary
	flagHashIndex
)

// Tlv encodes a class as a sequence of T record pairs: the field name,
// then a descriptor of {kind, elem, flags, zipped offset}.
func (fs Fields) Tlv() (tlv []byte) {
	for _, f := range fs {
		tlv = protocol.Append(tlv, 'T', []byte(f.Name))
		meta := []byte{byte(f.Kind), byte(f.Elem), flags(f)}
		meta = append(meta, protocol.ZipUint64(f.Offset)...)
		tlv = protocol.Append(tlv, 'T', meta)
	}
	return
}

func flags(f Field) (b byte) {
	if f.Optional {
		b |= flagOptional
	}
	if f.Primary {
		b |= flagPrimary
	}
	if f.Index == HashIndex {
		b |= flagHashIndex
	}
	return
}

func ParseTlv(tlv []byte) (fs Fields, err error) {
	rest := tlv
	for len(rest) > 0 {
		var name, meta []byte
		name, rest = protocol.Take('T', rest)
		if name == nil {
			return nil, ErrBadClassTLV
		}
		meta, rest = protocol.Take('T', rest)
		if meta == nil || len(meta) < 3 {
			return nil, ErrBadClassTLV
		}
		f := Field{
			Name:     string(name),
			Kind:     rdt.Kind(meta[0]),
			Elem:     rdt.Kind(meta[1]),
			Optional: meta[2]&flagOptional != 0,
			Primary:  meta[2]&flagPrimary != 0,
			Offset:   protocol.UnzipUint64(meta[3:]),
		}
		if meta[2]&flagHashIndex != 0 {
			f.Index = HashIndex
		}
		if !f.Valid() || f.Offset == 0 || f.Offset > rdt.MaxOff {
			return nil, ErrBadClassTLV
		}
		fs = append(fs, f)
	}
	return
}
