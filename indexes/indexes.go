// Package indexes maintains hash indexes over field values. Entries
// live in the same pebble keyspace as the records, under the 'H'
// prefix, and are written in the same batch as the field change they
// mirror. A primary field's index doubles as its uniqueness check.
package indexes

import (
	"iter"

	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/rdt"
	"github.com/lodge-db/lodge/utils"
)

// Key layout. The value hash keeps entries fixed-size regardless of
// the indexed value; lookups verify candidates against the record.
//
//	primary  'H' + cid(8) + off(2) + hash(8)          -> oid(8)
//	hash     'H' + cid(8) + off(2) + hash(8) + oid(8) -> nil
const (
	prefixLen  = 1 + 8 + 2
	primaryLen = prefixLen + 8
	entryLen   = primaryLen + 8
)

func hashKey(cid rdt.ID, off uint64, hash uint64) []byte {
	key := make([]byte, 0, entryLen)
	key = append(key, 'H')
	key = append(key, cid.Bytes()...)
	key = append(key, byte(off>>8), byte(off))
	key = append(key, protocolBE64(hash)...)
	return key
}

func entryKey(cid rdt.ID, off uint64, hash uint64, oid rdt.ID) []byte {
	return append(hashKey(cid, off, hash), oid.Bytes()...)
}

func protocolBE64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func Hash(tlv []byte) uint64 {
	return xxhash.Sum64(tlv)
}

type Manager struct {
	log     utils.Logger
	updates *prometheus.CounterVec
	lookups prometheus.Counter
}

func New(log utils.Logger, reg prometheus.Registerer) *Manager {
	ix := &Manager{
		log: log,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lodge_index_updates_total",
			Help: "Index entries written or removed, by operation",
		}, []string{"op"}),
		lookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lodge_index_lookups_total",
			Help: "Index lookups served",
		}),
	}
	if reg != nil {
		reg.MustRegister(ix.updates, ix.lookups)
	}
	return ix
}

// Update mirrors one field change into the index, inside the caller's
// batch. For a primary field the new value must not be held by another
// object. A nil after removes the entry.
func (ix *Manager) Update(batch *pebble.Batch, reader pebble.Reader,
	cid rdt.ID, f classes.Field, oid rdt.ID, before, after []byte) error {
	if f.Kind == rdt.List {
		return lodge_errors.ErrHashIndexKind
	}
	if f.Primary {
		return ix.updatePrimary(batch, reader, cid, f, oid, before, after)
	}
	if before != nil {
		_ = batch.Delete(entryKey(cid, f.Offset, Hash(before), oid), nil)
		ix.updates.WithLabelValues("delete").Inc()
	}
	if after != nil {
		_ = batch.Set(entryKey(cid, f.Offset, Hash(after), oid), nil, nil)
		ix.updates.WithLabelValues("set").Inc()
	}
	return nil
}

func (ix *Manager) updatePrimary(batch *pebble.Batch, reader pebble.Reader,
	cid rdt.ID, f classes.Field, oid rdt.ID, before, after []byte) error {
	if after != nil {
		key := hashKey(cid, f.Offset, Hash(after))
		val, clo, err := reader.Get(key)
		if err == nil {
			holder := rdt.IDFromBytes(val)
			_ = clo.Close()
			if holder != oid {
				return lodge_errors.ErrPrimaryViolation
			}
		} else if err != pebble.ErrNotFound {
			return err
		}
	}
	if before != nil {
		_ = batch.Delete(hashKey(cid, f.Offset, Hash(before)), nil)
		ix.updates.WithLabelValues("delete").Inc()
	}
	if after != nil {
		_ = batch.Set(hashKey(cid, f.Offset, Hash(after)), oid.Bytes(), nil)
		ix.updates.WithLabelValues("set").Inc()
	}
	return nil
}

// DropObject removes every index entry an object holds; values are
// read back from the store since the entries are keyed by them.
func (ix *Manager) DropObject(batch *pebble.Batch, reader pebble.Reader,
	cid rdt.ID, form classes.Fields, oid rdt.ID) error {
	for _, f := range form {
		if !f.Indexed() {
			continue
		}
		kind, tlv, err := host.ReadField(reader, oid.ToOff(f.Offset))
		if err != nil {
			return err
		}
		if kind == rdt.None {
			continue
		}
		if f.Primary {
			_ = batch.Delete(hashKey(cid, f.Offset, Hash(tlv)), nil)
		} else {
			_ = batch.Delete(entryKey(cid, f.Offset, Hash(tlv), oid), nil)
		}
		ix.updates.WithLabelValues("delete").Inc()
	}
	return nil
}

// LookupPrimary resolves a primary value to its object id.
func (ix *Manager) LookupPrimary(reader pebble.Reader,
	cid rdt.ID, f classes.Field, tlv []byte) (rdt.ID, error) {
	ix.lookups.Inc()
	val, clo, err := reader.Get(hashKey(cid, f.Offset, Hash(tlv)))
	if err == pebble.ErrNotFound {
		return rdt.BadID, lodge_errors.ErrObjectUnknown
	}
	if err != nil {
		return rdt.BadID, err
	}
	oid := rdt.IDFromBytes(val)
	_ = clo.Close()
	return oid, nil
}

// Lookup yields candidate object ids for an indexed value. Hash
// collisions make these candidates only; the caller compares the
// stored field against the probe value.
func (ix *Manager) Lookup(reader pebble.Reader,
	cid rdt.ID, f classes.Field, tlv []byte) iter.Seq2[rdt.ID, error] {
	ix.lookups.Inc()
	return func(yield func(rdt.ID, error) bool) {
		fro := hashKey(cid, f.Offset, Hash(tlv))
		til := append(append([]byte{}, fro...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		it, err := reader.NewIter(&pebble.IterOptions{LowerBound: fro, UpperBound: til})
		if err != nil {
			yield(rdt.BadID, err)
			return
		}
		defer it.Close()
		for it.First(); it.Valid(); it.Next() {
			key := it.Key()
			if len(key) != entryLen {
				continue
			}
			if !yield(rdt.IDFromBytes(key[primaryLen:]), nil) {
				return
			}
		}
	}
}
