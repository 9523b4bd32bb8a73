// Protocol format is based on ToyTLV (MIT licence) written by Victor Grishchenko in 2024
// Original project: https://github.com/learn-decentralized-systems/toytlv

// Package protocol implements the compact TLV (Type-Length-Value)
// encoding lodge uses for field records on disk.
//
// A record is a type letter, a length and a body. Three header forms
// are used, picked automatically by body size:
//
//  1. Tiny (1 byte): [('0' + body_length)] for bodies of 0..9 bytes.
//     The type letter is lost; only available with lowercase types.
//  2. Short (2 bytes): [lowercase_type, body_length] for bodies up to 255.
//  3. Long (5 bytes): [uppercase_type, 4-byte little-endian length].
//
// Record types are uppercase letters A..Z. Passing a lowercase letter
// to the encoding functions opts small records into the tiny form.
package protocol

import "encoding/binary"

const CaseBit uint8 = 'a' - 'A'

// ProbeHeader reads a record header and returns the canonical type
// letter ('0' for tiny, '-' for garbage, 0 for incomplete input),
// the header length and the body length.
func ProbeHeader(data []byte) (lit byte, hdrlen, bodylen int) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	dlit := data[0]
	if dlit >= '0' && dlit <= '9' { // tiny
		lit = '0'
		bodylen = int(dlit - '0')
		hdrlen = 1
	} else if dlit >= 'a' && dlit <= 'z' { // short
		if len(data) < 2 {
			return
		}
		lit = dlit - CaseBit
		hdrlen = 2
		bodylen = int(data[1])
	} else if dlit >= 'A' && dlit <= 'Z' { // long
		if len(data) < 5 {
			return
		}
		bl := binary.LittleEndian.Uint32(data[1:5])
		if bl > 0x7fffffff {
			lit = '-'
			return
		}
		lit = dlit
		bodylen = int(bl)
		hdrlen = 5
	} else {
		lit = '-'
	}
	return
}

// AppendHeader appends a record header, picking the shortest form
// that fits. Lowercase lit enables the tiny form.
func AppendHeader(into []byte, lit byte, bodylen int) (ret []byte) {
	biglit := lit &^ CaseBit
	if biglit < 'A' || biglit > 'Z' {
		panic("TLV record type is A..Z")
	}
	if bodylen < 10 && (lit&CaseBit) != 0 {
		ret = append(into, byte('0'+bodylen))
	} else if bodylen > 0xff {
		if bodylen > 0x7fffffff {
			panic("oversized TLV record")
		}
		ret = append(into, biglit)
		ret = binary.LittleEndian.AppendUint32(ret, uint32(bodylen))
	} else {
		ret = append(into, lit|CaseBit, byte(bodylen))
	}
	return ret
}

// Take extracts the body of a record of the given type.
// Returns nil body on a type mismatch, (nil, data) on incomplete input.
func Take(lit byte, data []byte) (body, rest []byte) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data // incomplete
	}
	if flit != lit && flit != '0' {
		return nil, nil // wrong type
	}
	body = data[hdrlen : hdrlen+bodylen]
	rest = data[hdrlen+bodylen:]
	return
}

// TakeAny extracts the next record whatever its type. Returns the
// canonical type letter ('0' for tiny records) and the unread rest.
func TakeAny(data []byte) (lit byte, body, rest []byte) {
	lit, hdrlen, bodylen := ProbeHeader(data)
	if lit == 0 || lit == '-' || hdrlen+bodylen > len(data) {
		return lit, nil, data
	}
	return lit, data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:]
}

// Lit returns the canonical type letter of a record.
func Lit(rec []byte) byte {
	if len(rec) == 0 {
		return '-'
	}
	b := rec[0]
	if b >= 'a' && b <= 'z' {
		return b - CaseBit
	} else if b >= 'A' && b <= 'Z' {
		return b
	} else if b >= '0' && b <= '9' {
		return '0'
	}
	return '-'
}

func TotalLen(inputs [][]byte) (sum int) {
	for _, input := range inputs {
		sum += len(input)
	}
	return
}

// Append appends a complete record to the buffer.
func Append(into []byte, lit byte, body ...[]byte) (res []byte) {
	total := TotalLen(body)
	res = AppendHeader(into, lit, total)
	for _, b := range body {
		res = append(res, b...)
	}
	return res
}

// Record creates a complete TLV record.
func Record(lit byte, body ...[]byte) []byte {
	total := TotalLen(body)
	ret := make([]byte, 0, total+5)
	ret = AppendHeader(ret, lit, total)
	for _, b := range body {
		ret = append(ret, b...)
	}
	return ret
}

// TinyRecord creates a record preferring the tiny form.
func TinyRecord(lit byte, body []byte) (tiny []byte) {
	return Record(lit|CaseBit, body)
}

// Concat glues byte slices together with a single allocation.
func Concat(msg ...[]byte) []byte {
	total := TotalLen(msg)
	ret := make([]byte, 0, total)
	for _, b := range msg {
		ret = append(ret, b...)
	}
	return ret
}
