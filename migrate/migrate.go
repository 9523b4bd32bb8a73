// Package migrate moves a store from one schema version to the next.
// A migration is all or nothing: the declared class forms, everything
// the step function writes, the retirement sweep and the version bump
// land in one indexed batch that is applied on success and dropped on
// failure. The step reads old data through a snapshot taken before any
// change, and new data through the batch, so later parts of the step
// observe what earlier parts wrote.
package migrate

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
	"github.com/lodge-db/lodge/utils"
)

// ClassDef declares the shape a class must have after the migration.
// Field offsets are assigned by the engine; fields that keep their
// name and kind keep their stored offset, everything else is retired
// and re-added under a fresh one.
type ClassDef struct {
	Name   string
	Fields []classes.Field
}

// Step rewrites data from the old schema into the new one. It runs
// after the class forms have been staged, so Create and Enumerate
// already see the declared shapes. Returning an error aborts the whole
// migration.
type Step func(ctx context.Context, m *Migration) error

type Migrator struct {
	// Version the store is migrated to. Equal stored and target
	// versions make Run a no-op; a stored version above the target is
	// refused.
	Version uint64

	// Classes is the complete schema at Version. Stored classes not
	// listed here are retired: their objects and form are removed.
	Classes []ClassDef

	Step Step
	Log  utils.Logger

	running atomic.Bool
}

// Run performs the migration against the given store. Exactly one Run
// may be in flight per Migrator.
func (mg *Migrator) Run(ctx context.Context, h host.Host) error {
	log := mg.Log
	if log == nil {
		log = h.Logger()
	}
	cur, err := h.SchemaVersion()
	if err != nil {
		return err
	}
	if cur == mg.Version {
		log.DebugCtx(ctx, "schema up to date", "version", cur)
		return nil
	}
	if cur > mg.Version {
		return errors.Wrapf(lodge_errors.ErrVersionDowngrade,
			"stored %d, target %d", cur, mg.Version)
	}
	if !mg.running.CompareAndSwap(false, true) {
		return lodge_errors.ErrMigrationReentry
	}
	defer mg.running.Store(false)

	m := &Migration{
		h:     h,
		oldV:  cur,
		newV:  mg.Version,
		snap:  h.Snapshot(),
		batch: h.Database().NewIndexedBatch(),
		state: stateRunning,
	}
	defer m.discard()

	if err = m.loadOldForms(); err != nil {
		return err
	}
	retired, err := m.stageForms(mg.Classes)
	if err != nil {
		return err
	}
	log.InfoCtx(ctx, "migration started",
		"from", cur, "to", mg.Version, "classes", len(mg.Classes))

	if mg.Step != nil {
		if err = mg.Step(ctx, m); err != nil {
			log.WarnCtx(ctx, "migration step failed", "err", err)
			return errors.Wrap(lodge_errors.ErrMigrationAborted, err.Error())
		}
	}

	if err = m.sweep(retired); err != nil {
		return err
	}
	_ = m.batch.Set(host.KeySchemaVersion, protocol.ZipUint64(mg.Version), nil)
	if err = h.Database().Apply(m.batch, h.WriteOptions()); err != nil {
		return err
	}
	m.state = stateCommitted
	_ = m.batch.Close()
	_ = m.snap.Close()
	if inv, ok := h.(interface{ InvalidateClassCache() }); ok {
		inv.InvalidateClassCache()
	}
	log.InfoCtx(ctx, "migration committed", "version", mg.Version)
	return nil
}

type state uint8

const (
	stateRunning state = iota + 1
	stateCommitted
	stateAborted
)

type form struct {
	cid    rdt.ID
	fields classes.Fields
}

// Migration is the context handed to the step function.
type Migration struct {
	h     host.Host
	snap  pebble.Reader
	batch *pebble.Batch
	oldV  uint64
	newV  uint64
	olds  map[string]form
	news  map[string]form
	state state
}

// OldVersion is the schema version the store held before Run. Step
// code guards each upgrade fragment with a cumulative check against
// it, so a single step body serves every starting version.
func (m *Migration) OldVersion() uint64 { return m.oldV }

func (m *Migration) NewVersion() uint64 { return m.newV }

func (m *Migration) discard() {
	if m.state == stateCommitted {
		return
	}
	m.state = stateAborted
	_ = m.batch.Close()
	_ = m.snap.Close()
}

func (m *Migration) loadOldForms() error {
	m.olds = make(map[string]form)
	it, err := m.snap.NewIter(&pebble.IterOptions{
		LowerBound: []byte{'N'},
		UpperBound: []byte{'O'},
	})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		name := string(it.Key()[1:])
		cid := rdt.IDFromBytes(it.Value())
		fields, err := host.ReadClass(m.snap, cid)
		if err != nil {
			return err
		}
		m.olds[name] = form{cid: cid, fields: fields}
	}
	return nil
}

// stageForms writes the declared class forms into the batch and
// returns the retired old forms: classes absent from the declaration,
// plus per-class pseudo forms holding fields whose offset was dropped.
func (m *Migration) stageForms(defs []ClassDef) (retired []form, err error) {
	m.news = make(map[string]form, len(defs))
	for _, def := range defs {
		for _, f := range def.Fields {
			if !f.Valid() {
				return nil, errors.Wrapf(lodge_errors.ErrBadClass,
					"%s.%s", def.Name, f.Name)
			}
		}
		old, known := m.olds[def.Name]
		var fields classes.Fields
		if known {
			var dropped classes.Fields
			fields, dropped = mergeForms(old.fields, def.Fields)
			if len(dropped) > 0 {
				retired = append(retired, form{cid: old.cid, fields: dropped})
			}
			m.news[def.Name] = form{cid: old.cid, fields: fields}
		} else {
			fields = classes.Fields(def.Fields).WithOffsets()
			cid := m.h.AllocateID()
			m.news[def.Name] = form{cid: cid, fields: fields}
			_ = m.batch.Set(host.NameKey(def.Name), cid.Bytes(), nil)
		}
		nf := m.news[def.Name]
		_ = m.batch.Set(host.ClassKey(nf.cid), nf.fields.Tlv(), nil)
	}
	// whole classes not declared anymore
	for name, old := range m.olds {
		if _, kept := m.news[name]; !kept {
			retired = append(retired, old)
			_ = m.batch.Delete(host.NameKey(name), nil)
			_ = m.batch.Delete(host.ClassKey(old.cid), nil)
		}
	}
	return retired, nil
}

// mergeForms keeps the stored offset of every field that survives by
// name and kind, assigns fresh offsets to the rest, and reports the
// old fields left behind.
func mergeForms(old classes.Fields, decl []classes.Field) (merged, dropped classes.Fields) {
	next := old.MaxOffset()
	used := make(map[uint64]bool, len(decl))
	merged = make(classes.Fields, 0, len(decl))
	for _, f := range decl {
		ndx := old.FindName(f.Name)
		if ndx >= 0 && old[ndx].Kind == f.Kind && old[ndx].Elem == f.Elem {
			f.Offset = old[ndx].Offset
		} else {
			next++
			f.Offset = next
		}
		used[f.Offset] = true
		merged = append(merged, f)
	}
	for _, f := range old {
		if !used[f.Offset] {
			dropped = append(dropped, f)
		}
	}
	return merged, dropped
}

// sweep removes retired data: all objects of retired classes, and the
// stored values of retired fields on surviving objects.
func (m *Migration) sweep(retired []form) error {
	survivors := make(map[rdt.ID]bool, len(m.news))
	for _, nf := range m.news {
		survivors[nf.cid] = true
	}
	for _, rf := range retired {
		var oids []rdt.ID
		for oid, err := range host.ScanObjects(m.batch, rf.cid) {
			if err != nil {
				return err
			}
			oids = append(oids, oid)
		}
		for _, oid := range oids {
			if !survivors[rf.cid] {
				fro, til := host.ObjectKeyRange(oid)
				if err := m.batch.DeleteRange(fro, til, nil); err != nil {
					return err
				}
				continue
			}
			for _, f := range rf.fields {
				key := host.OKey(oid.ToOff(f.Offset), f.Kind)
				if err := m.batch.Delete(key, nil); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
