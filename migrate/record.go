package migrate

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/rdt"
)

// Record is one object as seen through a migration view. Records over
// the pre-migration snapshot are read only; records over the staging
// batch accept writes.
type Record struct {
	m       *Migration
	oid     rdt.ID
	fields  classes.Fields
	reader  pebble.Reader
	mutable bool
}

func (m *Migration) check() error {
	if m.state != stateRunning {
		return lodge_errors.ErrMigrationAborted
	}
	return nil
}

// Enumerate visits every object of a class, handing the step both
// views: old is the record before the migration (nil for objects
// created during it, and for classes new in this version), cur is the
// live record in the staging batch. For a retired class cur is nil and
// only the snapshot side is populated.
func (m *Migration) Enumerate(class string, f func(old, cur *Record) error) error {
	if err := m.check(); err != nil {
		return err
	}
	nf, inNew := m.news[class]
	of, inOld := m.olds[class]
	switch {
	case inNew:
		for oid, err := range host.ScanObjects(m.batch, nf.cid) {
			if err != nil {
				return err
			}
			cur := &Record{m: m, oid: oid, fields: nf.fields, reader: m.batch, mutable: true}
			var old *Record
			if inOld {
				if cid, err := host.ReadObjectClass(m.snap, oid); err == nil && cid == of.cid {
					old = &Record{m: m, oid: oid, fields: of.fields, reader: m.snap}
				}
			}
			if err = f(old, cur); err != nil {
				return err
			}
		}
		return nil
	case inOld:
		for oid, err := range host.ScanObjects(m.snap, of.cid) {
			if err != nil {
				return err
			}
			old := &Record{m: m, oid: oid, fields: of.fields, reader: m.snap}
			if err = f(old, nil); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrap(lodge_errors.ErrClassUnknown, class)
	}
}

// Create makes a new object of a declared class inside the staging
// batch and fills the named fields. The record is visible to later
// Enumerate calls of the same step.
func (m *Migration) Create(class string, values map[string]rdt.Value) (*Record, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	nf, ok := m.news[class]
	if !ok {
		return nil, errors.Wrap(lodge_errors.ErrClassUnknown, class)
	}
	oid := m.h.AllocateID()
	err := m.batch.Set(host.OKey(oid, rdt.Object), nf.cid.Bytes(), nil)
	if err != nil {
		return nil, err
	}
	r := &Record{m: m, oid: oid, fields: nf.fields, reader: m.batch, mutable: true}
	for name, v := range values {
		if err = r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Delete removes an object and all its field records from the staging
// batch.
func (m *Migration) Delete(oid rdt.ID) error {
	if err := m.check(); err != nil {
		return err
	}
	fro, til := host.ObjectKeyRange(oid)
	return m.batch.DeleteRange(fro, til, nil)
}

func (r *Record) ID() rdt.ID { return r.oid }

// Get reads a field through the record's view. An absent value reads
// as null for optional fields and as the kind's zero otherwise.
func (r *Record) Get(name string) (rdt.Value, error) {
	ndx := r.fields.FindName(name)
	if ndx < 0 {
		return rdt.Value{}, errors.Wrap(lodge_errors.ErrFieldUnknown, name)
	}
	f := r.fields[ndx]
	kind, tlv, err := host.ReadField(r.reader, r.oid.ToOff(f.Offset))
	if err != nil {
		return rdt.Value{}, err
	}
	if kind == rdt.None {
		if f.Optional {
			return rdt.Null(f.Kind), nil
		}
		return rdt.Zero(f.Kind), nil
	}
	if kind != f.Kind {
		return rdt.Value{}, lodge_errors.ErrTypeMismatch
	}
	return rdt.Xnative(kind, tlv)
}

// Set writes a field into the staging batch. Records over the
// pre-migration snapshot refuse writes.
func (r *Record) Set(name string, v rdt.Value) error {
	if !r.mutable {
		return lodge_errors.ErrMigrationReadOnly
	}
	if err := r.m.check(); err != nil {
		return err
	}
	ndx := r.fields.FindName(name)
	if ndx < 0 {
		return errors.Wrap(lodge_errors.ErrFieldUnknown, name)
	}
	f := r.fields[ndx]
	key := host.OKey(r.oid.ToOff(f.Offset), f.Kind)
	if v.IsNull() {
		if !f.Optional {
			return lodge_errors.ErrTypeMismatch
		}
		return r.m.batch.Delete(key, nil)
	}
	if v.Kind() != f.Kind {
		return lodge_errors.ErrTypeMismatch
	}
	return r.m.batch.Set(key, rdt.Xtlv(v), nil)
}
