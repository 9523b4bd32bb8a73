package rdt

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/lodge-db/lodge/protocol"
)

/*
	ID is a 64-bit object/field locator.

0...............16..............32..............48.............64
|....source.(20.bits)...|......sequence.(32.bits)......||off(12)|

Source is the store's replica id, sequence is the per-store object
counter, offset addresses a field within an object. Offset zero is
the object itself.
*/
type ID uint64

const OffBits = 12
const OffMask = uint64(1<<OffBits) - 1
const SeqBits = 32
const SrcBits = 20

// SeqInc increments the sequence, keeping the offset zero.
const SeqInc = ID(1 << OffBits)

const ID0 = ID(0)
const BadID = ID(^uint64(0))

const MaxOff = (1 << OffBits) - 1
const MaxSrc = (1 << SrcBits) - 1

func NewID(src, seq, off uint64) ID {
	return ID(src<<(SeqBits+OffBits) | seq<<OffBits | off)
}

func (id ID) Src() uint64 {
	return uint64(id) >> (SeqBits + OffBits)
}

func (id ID) Seq() uint64 {
	return (uint64(id) >> OffBits) & ((1 << SeqBits) - 1)
}

func (id ID) Off() uint64 {
	return uint64(id) & OffMask
}

func (id ID) ZeroOff() ID {
	return ID(uint64(id) & ^OffMask)
}

func (id ID) ToOff(off uint64) ID {
	return ID(uint64(id) & ^OffMask | off)
}

func (id ID) Bytes() []byte {
	var ret [8]byte
	binary.BigEndian.PutUint64(ret[:], uint64(id))
	return ret[:]
}

func IDFromBytes(by []byte) ID {
	if len(by) != 8 {
		return BadID
	}
	return ID(binary.BigEndian.Uint64(by))
}

func (id ID) ZipBytes() []byte {
	return protocol.ZipUint64(uint64(id))
}

func IDFromZipBytes(zip []byte) ID {
	return ID(protocol.UnzipUint64(zip))
}

// String renders src-seq-off in hex, omitting a zero offset.
func (id ID) String() string {
	if id == BadID {
		return "bad-id"
	}
	if id.Off() == 0 {
		return fmt.Sprintf("%x-%x", id.Src(), id.Seq())
	}
	return fmt.Sprintf("%x-%x-%x", id.Src(), id.Seq(), id.Off())
}

func ParseID(txt string) ID {
	parts := strings.Split(txt, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return BadID
	}
	src, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil || src > MaxSrc {
		return BadID
	}
	seq, err := strconv.ParseUint(parts[1], 16, SeqBits)
	if err != nil {
		return BadID
	}
	var off uint64
	if len(parts) == 3 {
		off, err = strconv.ParseUint(parts[2], 16, 64)
		if err != nil || off > MaxOff {
			return BadID
		}
	}
	return NewID(src, seq, off)
}
