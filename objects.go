package lodge

import (
	"context"
	"iter"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
)

var ErrClassExists = errors.New("lodge: class name already in use")
var ErrTooManyFields = errors.New("lodge: field values exceed the class form")

// NewClass registers a class description under a unique name and
// returns its id. Field offsets are assigned in declaration order.
func (st *Store) NewClass(ctx context.Context, name string, fields ...classes.Field) (rdt.ID, error) {
	if err := st.enter(); err != nil {
		return rdt.BadID, err
	}
	defer st.leave()

	form := classes.Fields(fields).WithOffsets()
	seenPrimary := false
	for _, f := range form {
		if !f.Valid() {
			return rdt.BadID, lodge_errors.ErrBadClass
		}
		if f.Primary {
			if seenPrimary {
				return rdt.BadID, lodge_errors.ErrBadClass
			}
			seenPrimary = true
		}
	}
	if _, err := host.ReadClassByName(st.db, name); err == nil {
		return rdt.BadID, ErrClassExists
	}

	cid := st.AllocateID()
	batch := st.db.NewBatch()
	_ = batch.Set(host.ClassKey(cid), form.Tlv(), nil)
	_ = batch.Set(host.NameKey(name), cid.Bytes(), nil)
	if err := st.db.Apply(batch, &writeOptions); err != nil {
		return rdt.BadID, err
	}
	st.types.Add(cid, form)
	st.log.DebugCtx(ctx, "new class", "name", name, "cid", cid.String())
	return cid, nil
}

// ClassFields returns the class form, cached.
func (st *Store) ClassFields(cid rdt.ID) (classes.Fields, error) {
	if fields, ok := st.types.Get(cid); ok {
		return fields, nil
	}
	if st.db == nil {
		return nil, lodge_errors.ErrClosed
	}
	fields, err := host.ReadClass(st.db, cid)
	if err != nil {
		return nil, err
	}
	st.types.Add(cid, fields)
	return fields, nil
}

func (st *Store) ClassByName(name string) (rdt.ID, error) {
	if st.db == nil {
		return rdt.BadID, lodge_errors.ErrClosed
	}
	return host.ReadClassByName(st.db, name)
}

// InvalidateClassCache drops cached forms; the migration engine calls
// this after rewriting class descriptions.
func (st *Store) InvalidateClassCache() {
	st.types.Purge()
}

// CreateObject inserts a record of the class with an ordered list of
// bare field TLVs matching the class's declared field order. A nil
// entry leaves the field unset.
func (st *Store) CreateObject(ctx context.Context, cid rdt.ID, tlvs protocol.Records) (rdt.ID, error) {
	return st.CreateObjectAt(ctx, st.AllocateID(), cid, tlvs)
}

// CreateObjectAt is CreateObject for a pre-allocated id; the object
// layer needs the id before the record exists to key its slots.
func (st *Store) CreateObjectAt(ctx context.Context, oid, cid rdt.ID, tlvs protocol.Records) (rdt.ID, error) {
	if err := st.enter(); err != nil {
		return rdt.BadID, err
	}
	defer st.leave()

	form, err := st.ClassFields(cid)
	if err != nil {
		return rdt.BadID, err
	}
	if len(tlvs) > len(form) {
		return rdt.BadID, ErrTooManyFields
	}

	batch := st.db.NewBatch()
	_ = batch.Set(host.OKey(oid, rdt.Object), cid.Bytes(), nil)
	for i, tlv := range tlvs {
		if tlv == nil {
			continue
		}
		f := form[i]
		_ = batch.Set(host.OKey(oid.ToOff(f.Offset), f.Kind), tlv, nil)
		if f.Indexed() {
			if err = st.idx.Update(batch, st.db, cid, f, oid, nil, tlv); err != nil {
				_ = batch.Close()
				return rdt.BadID, err
			}
		}
	}
	if err = st.db.Apply(batch, &writeOptions); err != nil {
		return rdt.BadID, err
	}
	st.log.DebugCtx(ctx, "new object", "oid", oid.String(), "cid", cid.String())
	return oid, nil
}

// DeleteObject removes the object head, every field record and the
// object's index entries in one batch.
func (st *Store) DeleteObject(ctx context.Context, oid rdt.ID) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	cid, err := host.ReadObjectClass(st.db, oid)
	if err != nil {
		return err
	}
	batch := st.db.NewBatch()
	if form, err := st.ClassFields(cid); err == nil {
		if err = st.idx.DropObject(batch, st.db, cid, form, oid); err != nil {
			_ = batch.Close()
			return err
		}
	}
	fro, til := host.ObjectKeyRange(oid)
	_ = batch.DeleteRange(fro, til, nil)
	err = st.db.Apply(batch, &writeOptions)
	if err == nil {
		st.log.DebugCtx(ctx, "object deleted", "oid", oid.String())
	}
	return err
}

func (st *Store) ObjectClass(oid rdt.ID) (rdt.ID, error) {
	if st.db == nil {
		return rdt.BadID, lodge_errors.ErrClosed
	}
	return host.ReadObjectClass(st.db, oid)
}

// GetField reads a field record by its key. A missing field of a live
// object reads as rdt.None; a missing object is a stale reference.
func (st *Store) GetField(fid rdt.ID) (rdt.Kind, []byte, error) {
	if err := st.enter(); err != nil {
		return rdt.None, nil, err
	}
	defer st.leave()
	return host.ReadField(st.db, fid)
}

// SetField writes a field record through its key; a nil tlv clears
// the field. Triggers fire after a successful apply.
func (st *Store) SetField(ctx context.Context, fid rdt.ID, kind rdt.Kind, tlv []byte) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	cid, err := host.ReadObjectClass(st.db, fid.ZeroOff())
	if err != nil {
		return lodge_errors.ErrStaleReference
	}
	beforeKind, before, err := host.ReadField(st.db, fid)
	if err != nil {
		return err
	}

	batch := st.db.NewBatch()
	if beforeKind != rdt.None && beforeKind != kind {
		// the kind letter is part of the key; drop the old record
		_ = batch.Delete(host.OKey(fid, beforeKind), nil)
	}
	if tlv == nil {
		_ = batch.Delete(host.OKey(fid, kind), nil)
	} else {
		_ = batch.Set(host.OKey(fid, kind), tlv, nil)
	}
	if form, err := st.ClassFields(cid); err == nil {
		if ndx := form.FindOffset(fid.Off()); ndx >= 0 && form[ndx].Indexed() {
			err = st.idx.Update(batch, st.db, cid, form[ndx], fid.ZeroOff(), before, tlv)
			if err != nil {
				_ = batch.Close()
				return err
			}
		}
	}
	if err = st.db.Apply(batch, &writeOptions); err != nil {
		return err
	}
	st.log.DebugCtx(ctx, "field set", "fid", fid.String(), "kind", kind.String())
	st.fireTriggers(fid, kind, before, tlv)
	return nil
}

// EnumerateObjects yields every object id of a class from the live db.
func (st *Store) EnumerateObjects(cid rdt.ID) iter.Seq2[rdt.ID, error] {
	return host.ScanObjects(st.db, cid)
}

// Classes lists every registered class by name.
func (st *Store) Classes() (map[string]rdt.ID, error) {
	if st.db == nil {
		return nil, lodge_errors.ErrClosed
	}
	it, err := st.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{'N'},
		UpperBound: []byte{'O'},
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	ret := make(map[string]rdt.ID)
	for it.First(); it.Valid(); it.Next() {
		ret[string(it.Key()[1:])] = rdt.IDFromBytes(it.Value())
	}
	return ret, nil
}

// FindByValue resolves objects of a class whose indexed field holds
// the given value. Primary fields yield at most one id; hash-indexed
// fields may yield several. The field must carry an index.
func (st *Store) FindByValue(cid rdt.ID, field string, v rdt.Value) ([]rdt.ID, error) {
	form, err := st.ClassFields(cid)
	if err != nil {
		return nil, err
	}
	ndx := form.FindName(field)
	if ndx < 0 {
		return nil, lodge_errors.ErrFieldUnknown
	}
	f := form[ndx]
	if !f.Indexed() {
		return nil, lodge_errors.ErrHashIndexKind
	}
	if v.Kind() != f.Kind || v.IsNull() {
		return nil, lodge_errors.ErrTypeMismatch
	}
	tlv := rdt.Xtlv(v)
	if f.Primary {
		oid, err := st.idx.LookupPrimary(st.db, cid, f, tlv)
		if err == lodge_errors.ErrObjectUnknown {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []rdt.ID{oid}, nil
	}
	var oids []rdt.ID
	for oid, err := range st.idx.Lookup(st.db, cid, f, tlv) {
		if err != nil {
			return nil, err
		}
		// hash entries are candidates; confirm against the record
		kind, stored, err := host.ReadField(st.db, oid.ToOff(f.Offset))
		if err != nil || kind != f.Kind {
			continue
		}
		if string(stored) == string(tlv) {
			oids = append(oids, oid)
		}
	}
	return oids, nil
}

// ObjectString renders an object as {name:value,...} for debugging.
func (st *Store) ObjectString(oid rdt.ID) (string, error) {
	cid, err := st.ObjectClass(oid)
	if err != nil {
		return "", err
	}
	form, err := st.ClassFields(cid)
	if err != nil {
		return "", err
	}
	ret := []byte{'{'}
	for n, f := range form {
		if n != 0 {
			ret = append(ret, ',')
		}
		ret = append(ret, f.Name...)
		ret = append(ret, ':')
		kind, tlv, e := host.ReadField(st.db, oid.ToOff(f.Offset))
		if e != nil {
			return "", e
		}
		if kind == rdt.None {
			kind = f.Kind
			tlv = nil
		}
		ret = append(ret, rdt.Xstring(kind, tlv)...)
	}
	ret = append(ret, '}')
	return string(ret), nil
}
