package indexes_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-db/lodge"
	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
)

func openIndexed(t *testing.T) (*lodge.Store, rdt.ID) {
	t.Helper()
	st, err := lodge.Open(t.TempDir(), lodge.Options{
		Src:     3,
		Metrics: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cid, err := st.NewClass(context.Background(), "User",
		classes.Field{Name: "login", Kind: rdt.String, Primary: true},
		classes.Field{Name: "city", Kind: rdt.String, Index: classes.HashIndex},
		classes.Field{Name: "age", Kind: rdt.Integer})
	require.NoError(t, err)
	return st, cid
}

func mkUser(t *testing.T, st *lodge.Store, cid rdt.ID, login, city string, age int64) rdt.ID {
	t.Helper()
	oid, err := st.CreateObject(context.Background(), cid, protocol.Records{
		rdt.Xtlv(rdt.NewString(login)),
		rdt.Xtlv(rdt.NewString(city)),
		rdt.Xtlv(rdt.NewInteger(age)),
	})
	require.NoError(t, err)
	return oid
}

func TestPrimaryUniqueness(t *testing.T) {
	st, cid := openIndexed(t)
	mkUser(t, st, cid, "ann", "riga", 30)

	_, err := st.CreateObject(context.Background(), cid, protocol.Records{
		rdt.Xtlv(rdt.NewString("ann")),
	})
	assert.ErrorIs(t, err, lodge_errors.ErrPrimaryViolation)
}

func TestFindByPrimary(t *testing.T) {
	st, cid := openIndexed(t)
	ann := mkUser(t, st, cid, "ann", "riga", 30)
	mkUser(t, st, cid, "bob", "oslo", 40)

	oids, err := st.FindByValue(cid, "login", rdt.NewString("ann"))
	require.NoError(t, err)
	assert.Equal(t, []rdt.ID{ann}, oids)

	oids, err = st.FindByValue(cid, "login", rdt.NewString("zoe"))
	require.NoError(t, err)
	assert.Empty(t, oids)
}

func TestFindByHashIndex(t *testing.T) {
	st, cid := openIndexed(t)
	ann := mkUser(t, st, cid, "ann", "riga", 30)
	bob := mkUser(t, st, cid, "bob", "riga", 40)
	mkUser(t, st, cid, "cid", "oslo", 50)

	oids, err := st.FindByValue(cid, "riga-city", rdt.NewString("riga"))
	assert.ErrorIs(t, err, lodge_errors.ErrFieldUnknown)
	_ = oids

	oids, err = st.FindByValue(cid, "city", rdt.NewString("riga"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []rdt.ID{ann, bob}, oids)
}

func TestIndexFollowsUpdates(t *testing.T) {
	st, cid := openIndexed(t)
	ctx := context.Background()
	ann := mkUser(t, st, cid, "ann", "riga", 30)

	form, err := st.ClassFields(cid)
	require.NoError(t, err)
	city := form[form.FindName("city")]
	err = st.SetField(ctx, ann.ToOff(city.Offset), rdt.String,
		rdt.Xtlv(rdt.NewString("oslo")))
	require.NoError(t, err)

	oids, err := st.FindByValue(cid, "city", rdt.NewString("riga"))
	require.NoError(t, err)
	assert.Empty(t, oids)
	oids, err = st.FindByValue(cid, "city", rdt.NewString("oslo"))
	require.NoError(t, err)
	assert.Equal(t, []rdt.ID{ann}, oids)
}

func TestPrimaryFreedOnDelete(t *testing.T) {
	st, cid := openIndexed(t)
	ctx := context.Background()
	ann := mkUser(t, st, cid, "ann", "riga", 30)
	require.NoError(t, st.DeleteObject(ctx, ann))

	oids, err := st.FindByValue(cid, "city", rdt.NewString("riga"))
	require.NoError(t, err)
	assert.Empty(t, oids)

	// the login is free for reuse
	mkUser(t, st, cid, "ann", "oslo", 31)
}

func TestUnindexedFieldRefusesLookup(t *testing.T) {
	st, cid := openIndexed(t)
	_, err := st.FindByValue(cid, "age", rdt.NewInteger(30))
	assert.ErrorIs(t, err, lodge_errors.ErrHashIndexKind)
}
