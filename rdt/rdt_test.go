package rdt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIDPacking(t *testing.T) {
	id := NewID(0x1a, 0x2b3c, 0x4d)
	assert.EqualValues(t, 0x1a, id.Src())
	assert.EqualValues(t, 0x2b3c, id.Seq())
	assert.EqualValues(t, 0x4d, id.Off())

	assert.Equal(t, NewID(0x1a, 0x2b3c, 0), id.ZeroOff())
	assert.Equal(t, NewID(0x1a, 0x2b3c, 7), id.ToOff(7))
	assert.Equal(t, NewID(0x1a, 0x2b3d, 0), id.ZeroOff()+SeqInc)

	assert.Equal(t, id, IDFromBytes(id.Bytes()))
	assert.Equal(t, id, IDFromZipBytes(id.ZipBytes()))
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "1a-2b3c-4d", NewID(0x1a, 0x2b3c, 0x4d).String())
	assert.Equal(t, "1a-2b3c", NewID(0x1a, 0x2b3c, 0).String())
	assert.Equal(t, NewID(0x1a, 0x2b3c, 0x4d), ParseID("1a-2b3c-4d"))
	assert.Equal(t, NewID(0x1a, 0x2b3c, 0), ParseID("1a-2b3c"))
	assert.Equal(t, BadID, ParseID("zz"))
	assert.Equal(t, BadID, ParseID("1-2-3-4"))
}

func TestValueRoundtrip(t *testing.T) {
	u := uuid.New()
	when := time.Date(2024, 6, 1, 12, 0, 0, 500, time.UTC)
	vals := []Value{
		NewBool(true),
		NewBool(false),
		NewInteger(-42),
		NewFloat(2.5),
		NewString("Пётр"),
		NewBytes([]byte{0, 1, 2}),
		NewDate(when),
		NewIdentifier(u),
		NewLink(NewID(1, 2, 3)),
		NewList(NewInteger(1), NewString("a"), NewList(NewBool(true))),
	}
	for _, v := range vals {
		got, err := Xnative(v.Kind(), Xtlv(v))
		assert.NoError(t, err, v.String())
		assert.True(t, v.Equal(got), "%s != %s", v, got)
	}
}

func TestNullEncodesToNil(t *testing.T) {
	assert.Nil(t, Xtlv(Null(String)))
	v, err := Xnative(String, nil)
	assert.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestZero(t *testing.T) {
	assert.Equal(t, int64(0), Zero(Integer).Int64())
	assert.Equal(t, "", Zero(String).Str())
	assert.False(t, Zero(Bool).Bool())
	assert.Equal(t, uuid.Nil, Zero(Identifier).UUID())
	assert.Empty(t, Zero(List).Elems())
}

func TestStdDefaults(t *testing.T) {
	d := StdDefaults{}
	assert.True(t, d.Default(Integer, true).IsNull())
	assert.Equal(t, int64(0), d.Default(Integer, false).Int64())

	// identifiers are freshly generated, not nil
	a := d.Default(Identifier, false)
	b := d.Default(Identifier, false)
	assert.NotEqual(t, uuid.Nil, a.UUID())
	assert.NotEqual(t, a.UUID(), b.UUID())
}

func TestBadTLV(t *testing.T) {
	_, err := Xnative(Identifier, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBadValueTLV)
	_, err = Xnative(List, []byte{0xfe, 0xff})
	assert.ErrorIs(t, err, ErrBadValueTLV)
}
