// Package orm ties named property slots into whole objects: schema
// discovery from unmanaged instances, attachment into a store, loading
// stored records back, and typed access on top of the value layer.
package orm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/props"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
)

// Object is an ordered set of slots under a class name. A fresh
// object is unmanaged; Attach moves it, and every slot, into a store
// exactly once.
type Object struct {
	class  string
	h      host.Host
	cid    rdt.ID
	oid    rdt.ID
	slots  []*props.Slot
	byName map[string]int
}

func New(class string, slots ...*props.Slot) *Object {
	o := &Object{
		class:  class,
		slots:  slots,
		byName: make(map[string]int, len(slots)),
	}
	for i, s := range slots {
		o.byName[s.Name()] = i
	}
	return o
}

func (o *Object) Class() string { return o.class }
func (o *Object) ID() rdt.ID    { return o.oid }
func (o *Object) Managed() bool { return o.oid != rdt.ID0 }

func (o *Object) Slot(name string) *props.Slot {
	ndx, ok := o.byName[name]
	if !ok {
		return nil
	}
	return o.slots[ndx]
}

// Describe derives the class form from the slots. Discovery is only
// legal on fresh unmanaged objects; the slots enforce that.
func (o *Object) Describe() []classes.Field {
	fields := make([]classes.Field, 0, len(o.slots))
	primaries := 0
	for _, s := range o.slots {
		f := s.Describe()
		if f.Primary {
			primaries++
		}
		fields = append(fields, f)
	}
	if primaries > 1 {
		panic("lodge: a class can hold at most one primary field")
	}
	return fields
}

// EnsureClass resolves the object's class in the store, registering it
// from discovery when the name is not taken yet.
func (o *Object) EnsureClass(ctx context.Context, h host.Host) (rdt.ID, error) {
	cid, err := h.ClassByName(o.class)
	if err == nil {
		return cid, nil
	}
	return h.NewClass(ctx, o.class, o.Describe()...)
}

// Attach writes the object into the store and turns every slot
// managed. Explicit and default values present on the slots become the
// initial record; collection slots keep their identity and become live
// views. Attaching a managed object panics.
func (o *Object) Attach(ctx context.Context, h host.Host) error {
	if o.Managed() {
		panic("lodge: object attached twice")
	}
	cid, err := o.EnsureClass(ctx, h)
	if err != nil {
		return err
	}
	form, err := h.ClassFields(cid)
	if err != nil {
		return err
	}

	oid := h.AllocateID()
	tlvs := make(protocol.Records, len(form))
	for _, s := range o.slots {
		ndx := classes.Fields(form).FindName(s.Name())
		if ndx < 0 {
			return errors.Wrap(lodge_errors.ErrFieldUnknown, s.Name())
		}
		key := oid.ToOff(form[ndx].Offset)
		if s.Kind() == rdt.List {
			initial, ok := s.Attach(h, key)
			if ok && len(initial) > 0 {
				tlvs[ndx] = rdt.Xtlv(rdt.NewList(initial...))
			}
			continue
		}
		v, ok := s.ExplicitValue()
		s.Attach(h, key)
		if ok && !v.IsNull() {
			tlvs[ndx] = rdt.Xtlv(v)
		}
	}
	if _, err = h.CreateObjectAt(ctx, oid, cid, tlvs); err != nil {
		return err
	}
	o.h, o.cid, o.oid = h, cid, oid
	return nil
}

// Load opens a stored object as a fully managed instance.
func Load(h host.Host, class string, oid rdt.ID) (*Object, error) {
	cid, err := h.ClassByName(class)
	if err != nil {
		return nil, err
	}
	actual, err := h.ObjectClass(oid)
	if err != nil {
		return nil, err
	}
	if actual != cid {
		return nil, lodge_errors.ErrTypeMismatch
	}
	form, err := h.ClassFields(cid)
	if err != nil {
		return nil, err
	}
	slots := make([]*props.Slot, 0, len(form))
	for _, f := range form {
		slots = append(slots, props.NewManaged(f.Name, f, h, oid.ToOff(f.Offset)))
	}
	o := New(class, slots...)
	o.h, o.cid, o.oid = h, cid, oid
	return o, nil
}

// Observe registers change callbacks on an unmanaged object. Every
// slot starts reporting will/did around its mutations, including
// collection content changes. A no-op once managed; managed changes
// are watched through the store's field triggers.
func (o *Object) Observe(will, did func(field string)) {
	if o.Managed() {
		return
	}
	for _, s := range o.slots {
		s.BeginObserving(rdt.ID0, will, did)
	}
}

func (o *Object) slot(name string) (*props.Slot, error) {
	s := o.Slot(name)
	if s == nil {
		return nil, errors.Wrap(lodge_errors.ErrFieldUnknown, name)
	}
	return s, nil
}

func (o *Object) Get(name string) (rdt.Value, error) {
	s, err := o.slot(name)
	if err != nil {
		return rdt.Value{}, err
	}
	return s.Get()
}

func (o *Object) Set(ctx context.Context, name string, v rdt.Value) error {
	s, err := o.slot(name)
	if err != nil {
		return err
	}
	return s.Set(ctx, v)
}

func (o *Object) List(name string) (*props.List, error) {
	s, err := o.slot(name)
	if err != nil {
		return nil, err
	}
	return s.List()
}

// Delete removes the managed record; the object's slots turn stale.
func (o *Object) Delete(ctx context.Context) error {
	if !o.Managed() {
		return lodge_errors.ErrObjectUnknown
	}
	return o.h.DeleteObject(ctx, o.oid)
}
