package props

import (
	"context"

	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/rdt"
)

// List is a live, mutable collection value with reference identity.
// A slot hands out the same *List for its whole lifetime; assignment
// replaces contents, never the cell. Unmanaged lists hold their items
// in memory; once bound to the engine a list becomes a view over the
// stored field record, re-read on every access.
type List struct {
	elem    rdt.Kind
	items   []rdt.Value
	h       host.Host
	key     rdt.ID
	managed bool

	will, did func()
}

func NewList(elem rdt.Kind, items ...rdt.Value) *List {
	return &List{elem: elem, items: items}
}

func newManagedList(elem rdt.Kind, h host.Host, key rdt.ID) *List {
	return &List{elem: elem, h: h, key: key, managed: true}
}

// bind turns an unmanaged list into a live view over the engine. The
// in-memory items are dropped; the caller pushes them into the record.
func (l *List) bind(h host.Host, key rdt.ID) {
	l.h = h
	l.key = key
	l.managed = true
	l.items = nil
}

// observe wires mutation notifications to the owning object.
func (l *List) observe(will, did func()) {
	l.will = will
	l.did = did
}

func (l *List) Managed() bool  { return l.managed }
func (l *List) Elem() rdt.Kind { return l.elem }

func (l *List) load() ([]rdt.Value, error) {
	if !l.managed {
		return l.items, nil
	}
	kind, tlv, err := l.h.GetField(l.key)
	if err != nil {
		return nil, err
	}
	if kind == rdt.None {
		return nil, nil
	}
	if kind != rdt.List {
		return nil, lodge_errors.ErrTypeMismatch
	}
	v, err := rdt.Xnative(rdt.List, tlv)
	if err != nil {
		return nil, err
	}
	return v.Elems(), nil
}

func (l *List) store(ctx context.Context, items []rdt.Value) error {
	if !l.managed {
		l.items = items
		return nil
	}
	return l.h.SetField(ctx, l.key, rdt.List, rdt.Xtlv(rdt.NewList(items...)))
}

func (l *List) checkElem(vs ...rdt.Value) error {
	for _, v := range vs {
		if v.Kind() != l.elem || v.IsNull() {
			return lodge_errors.ErrTypeMismatch
		}
	}
	return nil
}

func (l *List) mutate(ctx context.Context, f func(items []rdt.Value) []rdt.Value) error {
	items, err := l.load()
	if err != nil {
		return err
	}
	if l.will != nil {
		l.will()
	}
	if err = l.store(ctx, f(items)); err != nil {
		return err
	}
	if l.did != nil {
		l.did()
	}
	return nil
}

func (l *List) Len() (int, error) {
	items, err := l.load()
	return len(items), err
}

func (l *List) At(i int) (rdt.Value, error) {
	items, err := l.load()
	if err != nil {
		return rdt.Value{}, err
	}
	if i < 0 || i >= len(items) {
		return rdt.Value{}, lodge_errors.ErrFieldUnknown
	}
	return items[i], nil
}

// Values returns a snapshot copy of the contents.
func (l *List) Values() ([]rdt.Value, error) {
	items, err := l.load()
	if err != nil {
		return nil, err
	}
	cp := make([]rdt.Value, len(items))
	copy(cp, items)
	return cp, nil
}

func (l *List) Append(ctx context.Context, vs ...rdt.Value) error {
	if err := l.checkElem(vs...); err != nil {
		return err
	}
	return l.mutate(ctx, func(items []rdt.Value) []rdt.Value {
		return append(items, vs...)
	})
}

func (l *List) Insert(ctx context.Context, i int, v rdt.Value) error {
	if err := l.checkElem(v); err != nil {
		return err
	}
	var bad bool
	err := l.mutate(ctx, func(items []rdt.Value) []rdt.Value {
		if i < 0 || i > len(items) {
			bad = true
			return items
		}
		items = append(items, rdt.Value{})
		copy(items[i+1:], items[i:])
		items[i] = v
		return items
	})
	if err == nil && bad {
		return lodge_errors.ErrFieldUnknown
	}
	return err
}

func (l *List) RemoveAt(ctx context.Context, i int) error {
	var bad bool
	err := l.mutate(ctx, func(items []rdt.Value) []rdt.Value {
		if i < 0 || i >= len(items) {
			bad = true
			return items
		}
		return append(items[:i], items[i+1:]...)
	})
	if err == nil && bad {
		return lodge_errors.ErrFieldUnknown
	}
	return err
}

func (l *List) Clear(ctx context.Context) error {
	return l.mutate(ctx, func([]rdt.Value) []rdt.Value {
		return nil
	})
}

// ReplaceAll swaps the contents for the given values in place: clear,
// then bulk insert. The input is copied first, so replacing a list
// with its own current values is a no-op.
func (l *List) ReplaceAll(ctx context.Context, vs []rdt.Value) error {
	if err := l.checkElem(vs...); err != nil {
		return err
	}
	cp := make([]rdt.Value, len(vs))
	copy(cp, vs)
	return l.mutate(ctx, func([]rdt.Value) []rdt.Value {
		return cp
	})
}
