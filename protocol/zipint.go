package protocol

import (
	"math"
	"math/bits"
)

// ZipUint64 packs a uint64 into the shortest little-endian byte string.
func ZipUint64(v uint64) []byte {
	buf := [8]byte{}
	i := 0
	for v > 0 {
		buf[i] = uint8(v)
		v >>= 8
		i++
	}
	return buf[0:i]
}

func UnzipUint64(zip []byte) (v uint64) {
	for i := len(zip) - 1; i >= 0; i-- {
		v <<= 8
		v |= uint64(zip[i])
	}
	return
}

func ZigZagInt64(i int64) uint64 {
	return uint64(i*2) ^ uint64(i>>63)
}

func ZagZigUint64(u uint64) int64 {
	half := u >> 1
	mask := -(u & 1)
	return int64(half ^ mask)
}

// ZipInt64 packs an int64 zigzag-coded, so small negatives stay short.
func ZipInt64(v int64) []byte {
	return ZipUint64(ZigZagInt64(v))
}

func UnzipInt64(zip []byte) int64 {
	return ZagZigUint64(UnzipUint64(zip))
}

// ZipFloat64 bit-reverses the IEEE 754 representation before packing;
// round floats compress to a byte or two this way.
func ZipFloat64(f float64) []byte {
	fb := math.Float64bits(f)
	b := bits.Reverse64(fb)
	return ZipUint64(b)
}

func UnzipFloat64(zip []byte) float64 {
	b := UnzipUint64(zip)
	return math.Float64frombits(bits.Reverse64(b))
}
