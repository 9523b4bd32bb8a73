package host

import (
	"iter"

	"github.com/cockroachdb/pebble"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/rdt"
)

// ReadField reads one field record through any pebble reader (the
// live db, a snapshot, or an indexed batch). A missing field on an
// existing object is not an error: kind comes back as rdt.None.
func ReadField(reader pebble.Reader, fid rdt.ID) (kind rdt.Kind, tlv []byte, err error) {
	it, err := reader.NewIter(&pebble.IterOptions{
		LowerBound: []byte{'O'},
		UpperBound: []byte{'P'},
	})
	if err != nil {
		return rdt.None, nil, err
	}
	defer it.Close()

	if it.SeekGE(OKey(fid, 0)) {
		fact, k := OKeyIdKind(it.Key())
		if fact == fid {
			cp := make([]byte, len(it.Value()))
			copy(cp, it.Value())
			return k, cp, nil
		}
	}
	// distinguish "unset field" from "object gone"
	if _, err = ReadObjectClass(reader, fid.ZeroOff()); err != nil {
		return rdt.None, nil, lodge_errors.ErrStaleReference
	}
	return rdt.None, nil, nil
}

// ReadObjectClass reads the class id from an object's head record.
func ReadObjectClass(reader pebble.Reader, oid rdt.ID) (rdt.ID, error) {
	val, clo, err := reader.Get(OKey(oid.ZeroOff(), rdt.Object))
	if err != nil {
		return rdt.BadID, lodge_errors.ErrObjectUnknown
	}
	cid := rdt.IDFromBytes(val)
	_ = clo.Close()
	return cid, nil
}

// ReadClass reads and parses a stored class description.
func ReadClass(reader pebble.Reader, cid rdt.ID) (classes.Fields, error) {
	val, clo, err := reader.Get(ClassKey(cid))
	if err != nil {
		return nil, lodge_errors.ErrClassUnknown
	}
	fields, perr := classes.ParseTlv(val)
	_ = clo.Close()
	if perr != nil {
		return nil, lodge_errors.ErrBadClass
	}
	return fields, nil
}

// ReadClassByName resolves a class name through the 'N' name index.
func ReadClassByName(reader pebble.Reader, name string) (rdt.ID, error) {
	val, clo, err := reader.Get(NameKey(name))
	if err != nil {
		return rdt.BadID, lodge_errors.ErrClassUnknown
	}
	cid := rdt.IDFromBytes(val)
	_ = clo.Close()
	return cid, nil
}

// ScanObjects yields the id of every object of the given class, in
// key order. The order is stable for one reader but callers must not
// depend on its shape.
func ScanObjects(reader pebble.Reader, cid rdt.ID) iter.Seq2[rdt.ID, error] {
	return func(yield func(rdt.ID, error) bool) {
		it, err := reader.NewIter(&pebble.IterOptions{
			LowerBound: []byte{'O'},
			UpperBound: []byte{'P'},
		})
		if err != nil {
			yield(rdt.BadID, err)
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			id, kind := OKeyIdKind(it.Key())
			if kind != rdt.Object || id.Off() != 0 {
				continue
			}
			if rdt.IDFromBytes(it.Value()) != cid {
				continue
			}
			if !yield(id, nil) {
				return
			}
		}
	}
}
