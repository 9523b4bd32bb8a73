// Package props implements the storage slot behind a declared object
// property. A slot starts unmanaged, holding (or lazily producing) a
// value in memory, and transitions exactly once to managed when the
// owning object is written to the store. After that every read and
// write goes through the engine; collection-typed slots keep a single
// live List so repeated reads see the same instance.
package props

import (
	"context"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/rdt"
)

type mode uint8

const (
	unmanagedValue mode = iota
	unmanagedNoDefault
	unmanagedObserved
	managed
	managedCached
)

func (m mode) String() string {
	switch m {
	case unmanagedValue:
		return "unmanaged"
	case unmanagedNoDefault:
		return "unmanaged-pending"
	case unmanagedObserved:
		return "observed"
	case managed:
		return "managed"
	case managedCached:
		return "managed-cached"
	}
	return "?"
}

// Slot is the storage cell for one property of one object instance.
// Not safe for concurrent use; confine each object to one goroutine.
type Slot struct {
	name     string
	kind     rdt.Kind
	elem     rdt.Kind
	optional bool
	indexed  bool
	primary  bool

	mode  mode
	value rdt.Value
	list  *List

	h   host.Host
	key rdt.ID
	gen rdt.DefaultGenerator

	will, did func(name string)
}

type Option func(*Slot)

// WithValue seeds the slot with an explicit initial value, skipping
// default generation.
func WithValue(v rdt.Value) Option {
	return func(s *Slot) {
		s.mode = unmanagedValue
		s.value = v
	}
}

func WithElem(elem rdt.Kind) Option {
	return func(s *Slot) { s.elem = elem }
}

func Optional() Option {
	return func(s *Slot) { s.optional = true }
}

func Indexed() Option {
	return func(s *Slot) { s.indexed = true }
}

func Primary() Option {
	return func(s *Slot) { s.primary = true }
}

// WithDefaults overrides the generator used to materialize the value
// of a slot constructed without one.
func WithDefaults(g rdt.DefaultGenerator) Option {
	return func(s *Slot) { s.gen = g }
}

// NewSlot creates an unmanaged slot. Without WithValue the value is
// pending: it is produced by the default generator on first read, at
// most once for the slot's lifetime.
func NewSlot(name string, kind rdt.Kind, opts ...Option) *Slot {
	s := &Slot{
		name: name,
		kind: kind,
		mode: unmanagedNoDefault,
		gen:  rdt.StdDefaults{},
	}
	for _, o := range opts {
		o(s)
	}
	// the element kind may arrive in any option order, so a seeded
	// list is only built once all options are in
	if s.kind == rdt.List && s.mode == unmanagedValue {
		s.list = NewList(s.elem, s.value.Elems()...)
		s.value = rdt.Value{}
	}
	return s
}

// NewManaged creates a slot already bound to a stored field, used when
// loading an existing object from the store.
func NewManaged(name string, f classes.Field, h host.Host, key rdt.ID) *Slot {
	return &Slot{
		name:     name,
		kind:     f.Kind,
		elem:     f.Elem,
		optional: f.Optional,
		indexed:  f.Index != classes.NoIndex,
		primary:  f.Primary,
		mode:     managed,
		h:        h,
		key:      key,
	}
}

func (s *Slot) Name() string   { return s.name }
func (s *Slot) Kind() rdt.Kind { return s.kind }
func (s *Slot) Managed() bool  { return s.mode == managed || s.mode == managedCached }
func (s *Slot) Key() rdt.ID    { return s.key }

// Describe reports the schema shape of the slot for class discovery.
// Only freshly constructed slots are discoverable; calling this on an
// observed or managed slot is a programming error.
func (s *Slot) Describe() classes.Field {
	switch s.mode {
	case unmanagedValue, unmanagedNoDefault:
	default:
		panic("lodge: schema discovery on a " + s.mode.String() + " slot")
	}
	f := classes.Field{
		Name:     s.name,
		Kind:     s.kind,
		Elem:     s.elem,
		Optional: s.optional,
		Primary:  s.primary,
	}
	if s.indexed {
		f.Index = classes.HashIndex
	}
	return f
}

// materialize produces the pending default value. Runs at most once.
func (s *Slot) materialize() {
	if s.kind == rdt.List {
		s.list = NewList(s.elem)
	} else {
		s.value = s.gen.Default(s.kind, s.optional)
	}
	s.mode = unmanagedValue
}

// Get reads the current scalar value. For managed slots an absent
// field reads as null when the property is optional and as the kind's
// zero otherwise. Collection slots are read with List.
func (s *Slot) Get() (rdt.Value, error) {
	if s.kind == rdt.List {
		return rdt.Value{}, lodge_errors.ErrTypeMismatch
	}
	switch s.mode {
	case unmanagedNoDefault:
		s.materialize()
		fallthrough
	case unmanagedValue, unmanagedObserved:
		return s.value, nil
	default:
		kind, tlv, err := s.h.GetField(s.key)
		if err != nil {
			return rdt.Value{}, err
		}
		if kind == rdt.None {
			if s.optional {
				return rdt.Null(s.kind), nil
			}
			return rdt.Zero(s.kind), nil
		}
		if kind != s.kind {
			return rdt.Value{}, lodge_errors.ErrTypeMismatch
		}
		return rdt.Xnative(kind, tlv)
	}
}

// List returns the live collection for a list-typed slot. The same
// *List is returned on every call for as long as the slot lives.
func (s *Slot) List() (*List, error) {
	if s.kind != rdt.List {
		return nil, lodge_errors.ErrTypeMismatch
	}
	switch s.mode {
	case unmanagedNoDefault:
		s.materialize()
		return s.list, nil
	case unmanagedValue, unmanagedObserved, managedCached:
		return s.list, nil
	default:
		s.list = newManagedList(s.elem, s.h, s.key)
		s.mode = managedCached
		return s.list, nil
	}
}

// Set assigns a new value. Collection slots replace contents in place,
// keeping the cached List; assigning null clears the collection.
func (s *Slot) Set(ctx context.Context, v rdt.Value) error {
	if s.kind == rdt.List {
		l, err := s.List()
		if err != nil {
			return err
		}
		if v.IsNull() {
			return l.Clear(ctx)
		}
		if v.Kind() != rdt.List {
			return lodge_errors.ErrTypeMismatch
		}
		return l.ReplaceAll(ctx, v.Elems())
	}
	if v.IsNull() {
		if !s.optional {
			return lodge_errors.ErrTypeMismatch
		}
	} else if v.Kind() != s.kind {
		return lodge_errors.ErrTypeMismatch
	}
	switch s.mode {
	case unmanagedObserved:
		s.notifyWill()
		s.value = v
		s.notifyDid()
		return nil
	case managed, managedCached:
		if s.primary {
			panic("lodge: primary key mutation on an attached object")
		}
		return s.h.SetField(ctx, s.key, s.kind, rdt.Xtlv(v))
	default:
		s.value = v
		s.mode = unmanagedValue
		// plain unmanaged assignment also resets the schema flags,
		// matching the behavior discovery relies on
		s.indexed = false
		s.primary = false
		return nil
	}
}

// ExplicitValue reports the in-memory scalar value, if the slot holds
// one, for callers assembling the initial record of a new object.
func (s *Slot) ExplicitValue() (rdt.Value, bool) {
	if s.kind == rdt.List {
		return rdt.Value{}, false
	}
	switch s.mode {
	case unmanagedValue, unmanagedObserved:
		return s.value, true
	case unmanagedNoDefault:
		s.materialize()
		return s.value, true
	}
	return rdt.Value{}, false
}

// Attach binds the slot to a stored field. This happens exactly once
// per slot; attaching an already managed slot panics. When the slot
// holds an unmanaged collection, observed or not, its contents are
// returned so the caller can include them in the initial record, and
// the cached List becomes a live view over the field.
func (s *Slot) Attach(h host.Host, key rdt.ID) (initial []rdt.Value, ok bool) {
	switch s.mode {
	case managed, managedCached:
		panic("lodge: slot attached twice")
	case unmanagedValue, unmanagedObserved:
		if s.kind == rdt.List {
			initial, ok = s.list.items, true
			s.h, s.key = h, key
			s.list.bind(h, key)
			s.mode = managedCached
			return initial, ok
		}
	}
	s.h, s.key = h, key
	s.value = rdt.Value{}
	s.list = nil
	s.mode = managed
	return nil, false
}

// BeginObserving registers change notification callbacks on an
// unmanaged slot. Pending defaults are materialized first so that
// observers never race default generation. Calling this on a managed
// or already observed slot is a no-op.
func (s *Slot) BeginObserving(key rdt.ID, will, did func(name string)) {
	switch s.mode {
	case unmanagedNoDefault:
		s.materialize()
	case unmanagedValue:
	default:
		return
	}
	s.key = key
	s.will, s.did = will, did
	if s.kind == rdt.List {
		s.list.observe(s.notifyWill, s.notifyDid)
	}
	s.mode = unmanagedObserved
}

func (s *Slot) notifyWill() {
	if s.will != nil {
		s.will(s.name)
	}
}

func (s *Slot) notifyDid() {
	if s.did != nil {
		s.did(s.name)
	}
}
