package orm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-db/lodge"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/orm"
	"github.com/lodge-db/lodge/props"
	"github.com/lodge-db/lodge/rdt"
)

func openStore(t *testing.T) *lodge.Store {
	t.Helper()
	st, err := lodge.Open(t.TempDir(), lodge.Options{Src: 5})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newPerson(name string, age int64) *orm.Object {
	return orm.New("Person",
		props.NewSlot("name", rdt.String, props.WithValue(rdt.NewString(name))),
		props.NewSlot("age", rdt.Integer, props.WithValue(rdt.NewInteger(age))),
		props.NewSlot("tags", rdt.List, props.WithElem(rdt.String)),
	)
}

func TestAttachAndLoad(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	p := newPerson("ann", 30)
	require.NoError(t, p.Attach(ctx, st))
	assert.True(t, p.Managed())

	// the attached instance reads through the store
	name, err := orm.Get[string](p, "name")
	require.NoError(t, err)
	assert.Equal(t, "ann", name)

	// and so does a fresh load of the same record
	q, err := orm.Load(st, "Person", p.ID())
	require.NoError(t, err)
	age, err := orm.Get[int64](q, "age")
	require.NoError(t, err)
	assert.Equal(t, int64(30), age)
}

func TestAttachTwicePanics(t *testing.T) {
	st := openStore(t)
	p := newPerson("ann", 30)
	require.NoError(t, p.Attach(context.Background(), st))
	assert.Panics(t, func() { _ = p.Attach(context.Background(), st) })
}

func TestAttachCarriesCollections(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	p := newPerson("ann", 30)
	tags, err := p.List("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Append(ctx, rdt.NewString("a"), rdt.NewString("b")))

	require.NoError(t, p.Attach(ctx, st))

	// same instance, now managed
	tags2, err := p.List("tags")
	require.NoError(t, err)
	assert.Same(t, tags, tags2)
	n, err := tags2.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second handle to the record sees the same contents
	q, err := orm.Load(st, "Person", p.ID())
	require.NoError(t, err)
	qtags, err := q.List("tags")
	require.NoError(t, err)
	vals, err := qtags.Values()
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, "a", vals[0].Str())
}

func TestManagedWritesVisibleAcrossHandles(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	p := newPerson("ann", 30)
	require.NoError(t, p.Attach(ctx, st))
	require.NoError(t, orm.Set(ctx, p, "age", int64(31)))

	q, err := orm.Load(st, "Person", p.ID())
	require.NoError(t, err)
	age, err := orm.Get[int64](q, "age")
	require.NoError(t, err)
	assert.Equal(t, int64(31), age)
}

func TestUnmanagedObservation(t *testing.T) {
	p := newPerson("ann", 30)
	var events []string
	p.Observe(func(f string) { events = append(events, "will:"+f) },
		func(f string) { events = append(events, "did:"+f) })

	require.NoError(t, orm.Set(context.Background(), p, "age", int64(31)))
	assert.Equal(t, []string{"will:age", "did:age"}, events)

	events = nil
	tags, err := p.List("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Append(context.Background(), rdt.NewString("x")))
	assert.Equal(t, []string{"will:tags", "did:tags"}, events)
}

func TestDeleteTurnsHandlesStale(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	p := newPerson("ann", 30)
	require.NoError(t, p.Attach(ctx, st))
	q, err := orm.Load(st, "Person", p.ID())
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx))
	_, err = q.Get("name")
	assert.ErrorIs(t, err, lodge_errors.ErrStaleReference)
	err = orm.Set(ctx, q, "age", int64(1))
	assert.ErrorIs(t, err, lodge_errors.ErrStaleReference)
}

func TestUnknownFieldAndClass(t *testing.T) {
	st := openStore(t)
	p := newPerson("ann", 30)
	_, err := p.Get("height")
	assert.ErrorIs(t, err, lodge_errors.ErrFieldUnknown)

	_, err = orm.Load(st, "Nobody", rdt.NewID(1, 1, 0))
	assert.ErrorIs(t, err, lodge_errors.ErrClassUnknown)
}

func TestDiscoveryRejectsTwoPrimaries(t *testing.T) {
	o := orm.New("Broken",
		props.NewSlot("a", rdt.String, props.Primary()),
		props.NewSlot("b", rdt.String, props.Primary()),
	)
	assert.Panics(t, func() { o.Describe() })
}

func TestDefaultsMaterializedOnAttach(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	o := orm.New("Token",
		props.NewSlot("id", rdt.Identifier),
	)
	require.NoError(t, o.Attach(ctx, st))

	id, err := orm.Get[rdt.Value](o, "id")
	require.NoError(t, err)
	assert.False(t, id.IsNull())
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", id.UUID().String())
}
