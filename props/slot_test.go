package props_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lodge-db/lodge"
	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/props"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
)

// countingDefaults counts how many times each kind's default was asked
// for, to pin down lazy one-shot materialization.
type countingDefaults struct {
	calls int
}

func (c *countingDefaults) Default(kind rdt.Kind, optional bool) rdt.Value {
	c.calls++
	return rdt.Zero(kind)
}

func openStore(t *testing.T) *lodge.Store {
	t.Helper()
	st, err := lodge.Open(t.TempDir(), lodge.Options{Src: 0x1e})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDefaultMaterializedOnce(t *testing.T) {
	gen := &countingDefaults{}
	s := props.NewSlot("score", rdt.Integer, props.WithDefaults(gen))
	assert.Equal(t, 0, gen.calls)

	v, err := s.Get()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())
	assert.Equal(t, 1, gen.calls)

	_, err = s.Get()
	assert.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestExplicitValueSkipsGenerator(t *testing.T) {
	gen := &countingDefaults{}
	s := props.NewSlot("score", rdt.Integer,
		props.WithValue(rdt.NewInteger(42)), props.WithDefaults(gen))

	v, err := s.Get()
	assert.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())
	assert.Equal(t, 0, gen.calls)
}

func TestUnmanagedSetResetsFlags(t *testing.T) {
	s := props.NewSlot("name", rdt.String, props.Primary(), props.Indexed())
	f := s.Describe()
	assert.True(t, f.Primary)
	assert.Equal(t, classes.HashIndex, f.Index)

	assert.NoError(t, s.Set(context.Background(), rdt.NewString("bob")))
	f = s.Describe()
	assert.False(t, f.Primary)
	assert.Equal(t, classes.NoIndex, f.Index)
}

func TestListIdentityStable(t *testing.T) {
	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String))
	l1, err := s.List()
	assert.NoError(t, err)
	l2, err := s.List()
	assert.NoError(t, err)
	assert.Same(t, l1, l2)

	assert.NoError(t, s.Set(context.Background(),
		rdt.NewList(rdt.NewString("a"), rdt.NewString("b"))))
	l3, err := s.List()
	assert.NoError(t, err)
	assert.Same(t, l1, l3)
	n, err := l3.Len()
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListSelfAssignmentKeepsContents(t *testing.T) {
	ctx := context.Background()
	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String),
		props.WithValue(rdt.NewList(rdt.NewString("x"), rdt.NewString("y"))))
	l, err := s.List()
	assert.NoError(t, err)

	vals, err := l.Values()
	assert.NoError(t, err)
	assert.NoError(t, l.ReplaceAll(ctx, vals))

	got, err := l.Values()
	assert.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestNullClearsList(t *testing.T) {
	ctx := context.Background()
	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String),
		props.WithValue(rdt.NewList(rdt.NewString("x"))))
	l, _ := s.List()

	assert.NoError(t, s.Set(ctx, rdt.Null(rdt.List)))
	n, err := l.Len()
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestObservationBracketsMutations(t *testing.T) {
	ctx := context.Background()
	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String))
	var log []string
	s.BeginObserving(rdt.NewID(1, 1, 0), func(name string) {
		log = append(log, "will:"+name)
	}, func(name string) {
		log = append(log, "did:"+name)
	})

	l, err := s.List()
	assert.NoError(t, err)
	assert.NoError(t, l.Append(ctx, rdt.NewString("a")))
	assert.Equal(t, []string{"will:tags", "did:tags"}, log)

	log = nil
	assert.NoError(t, s.Set(ctx, rdt.Null(rdt.List)))
	assert.Equal(t, []string{"will:tags", "did:tags"}, log)
}

func TestObservedScalarSetNotifies(t *testing.T) {
	s := props.NewSlot("score", rdt.Integer)
	var will, did int
	s.BeginObserving(rdt.NewID(1, 1, 0),
		func(string) { will++ }, func(string) { did++ })

	assert.NoError(t, s.Set(context.Background(), rdt.NewInteger(9)))
	assert.Equal(t, 1, will)
	assert.Equal(t, 1, did)

	v, err := s.Get()
	assert.NoError(t, err)
	assert.Equal(t, int64(9), v.Int64())
}

func TestAttachExactlyOnce(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	cid, err := st.NewClass(ctx, "Note",
		classes.Field{Name: "text", Kind: rdt.String})
	assert.NoError(t, err)

	s := props.NewSlot("text", rdt.String, props.WithValue(rdt.NewString("hi")))
	oid := st.AllocateID()
	v, _ := s.ExplicitValue()
	_, err = st.CreateObjectAt(ctx, oid, cid, protocol.Records{rdt.Xtlv(v)})
	assert.NoError(t, err)

	s.Attach(st, oid.ToOff(1))
	assert.True(t, s.Managed())
	assert.Panics(t, func() { s.Attach(st, oid.ToOff(1)) })

	got, err := s.Get()
	assert.NoError(t, err)
	assert.Equal(t, "hi", got.Str())
}

func TestAttachedListWritesThrough(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	cid, err := st.NewClass(ctx, "Note",
		classes.Field{Name: "tags", Kind: rdt.List, Elem: rdt.String})
	assert.NoError(t, err)

	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String),
		props.WithValue(rdt.NewList(rdt.NewString("a"))))
	l, _ := s.List()

	oid := st.AllocateID()
	initial, ok := s.Attach(st, oid.ToOff(1))
	assert.True(t, ok)
	assert.Len(t, initial, 1)
	_, err = st.CreateObjectAt(ctx, oid, cid,
		protocol.Records{rdt.Xtlv(rdt.NewList(initial...))})
	assert.NoError(t, err)

	// same List instance, now a live view over the record
	l2, err := s.List()
	assert.NoError(t, err)
	assert.Same(t, l, l2)

	assert.NoError(t, l.Append(ctx, rdt.NewString("b")))
	kind, tlv, err := st.GetField(oid.ToOff(1))
	assert.NoError(t, err)
	assert.Equal(t, rdt.List, kind)
	stored, err := rdt.Xnative(kind, tlv)
	assert.NoError(t, err)
	assert.Len(t, stored.Elems(), 2)
}

func TestObservedListSurvivesAttach(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	cid, err := st.NewClass(ctx, "Note",
		classes.Field{Name: "tags", Kind: rdt.List, Elem: rdt.String})
	assert.NoError(t, err)

	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String))
	l, err := s.List()
	assert.NoError(t, err)
	assert.NoError(t, l.Append(ctx, rdt.NewString("a"), rdt.NewString("b")))

	var log []string
	s.BeginObserving(rdt.NewID(1, 1, 0), func(name string) {
		log = append(log, "will:"+name)
	}, func(name string) {
		log = append(log, "did:"+name)
	})

	oid := st.AllocateID()
	initial, ok := s.Attach(st, oid.ToOff(1))
	assert.True(t, ok)
	assert.Len(t, initial, 2)
	_, err = st.CreateObjectAt(ctx, oid, cid,
		protocol.Records{rdt.Xtlv(rdt.NewList(initial...))})
	assert.NoError(t, err)

	// same List instance, contents now served by the record
	l2, err := s.List()
	assert.NoError(t, err)
	assert.Same(t, l, l2)
	vals, err := l2.Values()
	assert.NoError(t, err)
	assert.Len(t, vals, 2)
	assert.Equal(t, "a", vals[0].Str())

	log = nil
	assert.NoError(t, l2.Append(ctx, rdt.NewString("c")))
	assert.Equal(t, []string{"will:tags", "did:tags"}, log)
}

func TestSeededListElemAnyOptionOrder(t *testing.T) {
	ctx := context.Background()
	s := props.NewSlot("tags", rdt.List,
		props.WithValue(rdt.NewList(rdt.NewString("x"))), props.WithElem(rdt.String))

	l, err := s.List()
	assert.NoError(t, err)
	assert.Equal(t, rdt.String, l.Elem())
	assert.NoError(t, l.Append(ctx, rdt.NewString("y")))

	vals, err := l.Values()
	assert.NoError(t, err)
	assert.Len(t, vals, 2)
	assert.Equal(t, "x", vals[0].Str())
}

func TestFailedMutationAnnouncesNothing(t *testing.T) {
	ctx := context.Background()
	s := props.NewSlot("tags", rdt.List, props.WithElem(rdt.String))
	var log []string
	s.BeginObserving(rdt.NewID(1, 1, 0),
		func(name string) { log = append(log, "will:"+name) },
		func(name string) { log = append(log, "did:"+name) })

	l, err := s.List()
	assert.NoError(t, err)
	assert.ErrorIs(t, l.Append(ctx, rdt.NewInteger(1)), lodge_errors.ErrTypeMismatch)
	assert.Empty(t, log)
}

func TestManagedMissingFieldReads(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	cid, err := st.NewClass(ctx, "Pair",
		classes.Field{Name: "a", Kind: rdt.Integer},
		classes.Field{Name: "b", Kind: rdt.String, Optional: true})
	assert.NoError(t, err)
	oid, err := st.CreateObject(ctx, cid, protocol.Records{nil, nil})
	assert.NoError(t, err)

	fields, err := st.ClassFields(cid)
	assert.NoError(t, err)

	req := props.NewManaged("a", fields[0], st, oid.ToOff(1))
	v, err := req.Get()
	assert.NoError(t, err)
	assert.False(t, v.IsNull())
	assert.Equal(t, int64(0), v.Int64())

	opt := props.NewManaged("b", fields[1], st, oid.ToOff(2))
	v, err = opt.Get()
	assert.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestManagedPrimaryMutationPanics(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	cid, err := st.NewClass(ctx, "Keyed",
		classes.Field{Name: "key", Kind: rdt.String, Primary: true})
	assert.NoError(t, err)
	oid, err := st.CreateObject(ctx, cid, protocol.Records{
		rdt.Xtlv(rdt.NewString("k1")),
	})
	assert.NoError(t, err)

	fields, err := st.ClassFields(cid)
	assert.NoError(t, err)
	s := props.NewManaged("key", fields[0], st, oid.ToOff(1))
	assert.Panics(t, func() {
		_ = s.Set(ctx, rdt.NewString("k2"))
	})
}

func TestDiscoveryPanicsAfterAttach(t *testing.T) {
	st := openStore(t)
	s := props.NewSlot("x", rdt.Integer)
	s.Attach(st, rdt.NewID(1, 1, 1))
	assert.Panics(t, func() { s.Describe() })
}
