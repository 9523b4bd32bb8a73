package classes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lodge-db/lodge/rdt"
)

func TestFieldValid(t *testing.T) {
	assert.True(t, Field{Name: "name", Kind: rdt.String}.Valid())
	assert.True(t, Field{Name: "tags", Kind: rdt.List, Elem: rdt.String}.Valid())
	assert.True(t, Field{Name: "id", Kind: rdt.Identifier, Primary: true}.Valid())

	assert.False(t, Field{Name: "", Kind: rdt.String}.Valid())
	assert.False(t, Field{Name: "x\n", Kind: rdt.String}.Valid())
	assert.False(t, Field{Name: "x", Kind: rdt.Kind('q')}.Valid())
	// lists need an element kind and can never be primary
	assert.False(t, Field{Name: "x", Kind: rdt.List}.Valid())
	assert.False(t, Field{Name: "x", Kind: rdt.List, Elem: rdt.String, Primary: true}.Valid())
	assert.False(t, Field{Name: "x", Kind: rdt.Float, Primary: true}.Valid())
	assert.False(t, Field{Name: "x", Kind: rdt.String, Primary: true, Optional: true}.Valid())
}

func TestTlvRoundtrip(t *testing.T) {
	fs := Fields{
		{Name: "id", Kind: rdt.Identifier, Primary: true},
		{Name: "name", Kind: rdt.String, Index: HashIndex},
		{Name: "age", Kind: rdt.Integer, Optional: true},
		{Name: "tags", Kind: rdt.List, Elem: rdt.String},
	}.WithOffsets()

	assert.EqualValues(t, 1, fs[0].Offset)
	assert.EqualValues(t, 4, fs[3].Offset)

	got, err := ParseTlv(fs.Tlv())
	assert.NoError(t, err)
	assert.Equal(t, fs, got)
}

func TestParseTlvRejectsGarbage(t *testing.T) {
	_, err := ParseTlv([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrBadClassTLV)
}

func TestFindHelpers(t *testing.T) {
	fs := Fields{
		{Name: "a", Kind: rdt.String, Offset: 1},
		{Name: "b", Kind: rdt.Integer, Offset: 2, Primary: true},
	}
	assert.Equal(t, 1, fs.FindName("b"))
	assert.Equal(t, -1, fs.FindName("c"))
	assert.Equal(t, 0, fs.FindOffset(1))
	assert.Equal(t, 1, fs.PrimaryField())
	assert.True(t, fs[1].Indexed())
	assert.False(t, fs[0].Indexed())
}
