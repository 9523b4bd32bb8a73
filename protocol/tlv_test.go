package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordForms(t *testing.T) {
	// tiny: lowercase type, short body
	tiny := TinyRecord('F', []byte{1, 2, 3})
	assert.Equal(t, []byte{'3', 1, 2, 3}, tiny)
	assert.Equal(t, byte('0'), Lit(tiny))

	// short: uppercase type keeps the letter
	short := Record('S', []byte("hello"))
	assert.Equal(t, byte('s'), short[0])
	assert.Equal(t, byte(5), short[1])
	assert.Equal(t, byte('S'), Lit(short))

	// long: body over 255 bytes
	big := make([]byte, 300)
	long := Record('X', big)
	assert.Equal(t, byte('X'), long[0])
	assert.Equal(t, 5+300, len(long))
}

func TestTake(t *testing.T) {
	buf := Concat(Record('I', []byte{42}), Record('S', []byte("ab")))

	body, rest := Take('I', buf)
	assert.Equal(t, []byte{42}, body)

	body2, rest2 := Take('S', rest)
	assert.Equal(t, []byte("ab"), body2)
	assert.Empty(t, rest2)

	// type mismatch
	body3, rest3 := Take('N', buf)
	assert.Nil(t, body3)
	assert.Nil(t, rest3)

	// incomplete input
	body4, rest4 := Take('I', buf[:1])
	assert.Nil(t, body4)
	assert.Equal(t, buf[:1], rest4)
}

func TestTakeAny(t *testing.T) {
	buf := Concat(Record('R', []byte{7}), TinyRecord('I', []byte{9}))

	lit, body, rest := TakeAny(buf)
	assert.Equal(t, byte('R'), lit)
	assert.Equal(t, []byte{7}, body)

	lit2, body2, rest2 := TakeAny(rest)
	assert.Equal(t, byte('0'), lit2)
	assert.Equal(t, []byte{9}, body2)
	assert.Empty(t, rest2)

	lit3, _, _ := TakeAny(nil)
	assert.Equal(t, byte(0), lit3)
}

func TestZipInts(t *testing.T) {
	for _, v := range []uint64{0, 1, 0xff, 0x100, 0xffff, 1 << 40, ^uint64(0)} {
		assert.Equal(t, v, UnzipUint64(ZipUint64(v)))
	}
	for _, v := range []int64{0, 1, -1, 127, -128, 1 << 33, -(1 << 50)} {
		assert.Equal(t, v, UnzipInt64(ZipInt64(v)))
	}
	assert.Empty(t, ZipUint64(0))
	assert.Equal(t, 1, len(ZipInt64(-1)))
}

func TestZipFloat(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.1415926, 1e300, -2.5} {
		assert.Equal(t, f, UnzipFloat64(ZipFloat64(f)))
	}
	// round floats pack short
	assert.Less(t, len(ZipFloat64(1.0)), 3)
}
