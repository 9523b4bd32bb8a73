package rdt

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lodge-db/lodge/protocol"
)

var ErrBadValueTLV = errors.New("lodge: bad value TLV")

// Xtlv encodes a value's bare TLV body. A null value encodes to nil;
// the engine drops the field key instead of storing an empty body.
func Xtlv(v Value) (tlv []byte) {
	if v.null {
		return nil
	}
	switch v.kind {
	case Bool, Integer, Date:
		return protocol.ZipInt64(v.i)
	case Float:
		return protocol.ZipFloat64(v.f)
	case String, Bytes, Identifier:
		return v.b
	case Link:
		return protocol.ZipUint64(uint64(v.r))
	case List:
		for _, e := range v.elems {
			tlv = protocol.Append(tlv, byte(e.kind), Xtlv(e))
		}
		if tlv == nil {
			tlv = []byte{}
		}
		return tlv
	}
	return nil
}

// Xnative decodes a bare TLV body into a Value of the given kind.
func Xnative(kind Kind, tlv []byte) (Value, error) {
	if tlv == nil {
		return Null(kind), nil
	}
	switch kind {
	case Bool:
		return NewBool(protocol.UnzipInt64(tlv) != 0), nil
	case Integer:
		return NewInteger(protocol.UnzipInt64(tlv)), nil
	case Date:
		return Value{kind: Date, i: protocol.UnzipInt64(tlv)}, nil
	case Float:
		return NewFloat(protocol.UnzipFloat64(tlv)), nil
	case String:
		return NewString(string(tlv)), nil
	case Bytes:
		cp := make([]byte, len(tlv))
		copy(cp, tlv)
		return NewBytes(cp), nil
	case Identifier:
		if len(tlv) != 16 {
			return Value{}, ErrBadValueTLV
		}
		cp := make([]byte, 16)
		copy(cp, tlv)
		return Value{kind: Identifier, b: cp}, nil
	case Link:
		return NewLink(ID(protocol.UnzipUint64(tlv))), nil
	case List:
		elems := []Value{}
		rest := tlv
		for len(rest) > 0 {
			lit, body, r := protocol.TakeAny(rest)
			if !Kind(lit).Valid() || len(r) == len(rest) {
				return Value{}, ErrBadValueTLV
			}
			e, err := Xnative(Kind(lit), body)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
			rest = r
		}
		return NewList(elems...), nil
	}
	return Value{}, ErrBadValueTLV
}

// Xstring renders a value for debug and CLI output.
func Xstring(kind Kind, tlv []byte) string {
	v, err := Xnative(kind, tlv)
	if err != nil {
		return "?" + hex.EncodeToString(tlv)
	}
	return v.String()
}

func (v Value) String() string {
	if v.null {
		return "null"
	}
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.Bool())
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return strconv.Quote(string(v.b))
	case Bytes:
		return hex.EncodeToString(v.b)
	case Date:
		return v.Date().UTC().Format("2006-01-02T15:04:05.999999999Z")
	case Identifier:
		return v.UUID().String()
	case Link:
		return v.r.String()
	case List:
		ret := []byte{'['}
		for n, e := range v.elems {
			if n != 0 {
				ret = append(ret, ',')
			}
			ret = append(ret, e.String()...)
		}
		return string(append(ret, ']'))
	}
	return fmt.Sprintf("?%c", byte(v.kind))
}
