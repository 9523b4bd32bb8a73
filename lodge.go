// Package lodge is an embedded object store over pebble: typed field
// records addressed by 64-bit ids, schema descriptions stored next to
// the data, and a versioned migration path between schemas.
package lodge

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/host"
	"github.com/lodge-db/lodge/indexes"
	"github.com/lodge-db/lodge/lodge_errors"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
	"github.com/lodge-db/lodge/utils"
)

type Options struct {
	Src      uint64
	Name     string
	Logger   utils.Logger
	Defaults rdt.DefaultGenerator

	// Metrics receives the store's prometheus collectors when set.
	Metrics prometheus.Registerer

	// Hard cap on cached class forms.
	MaxCachedClasses int

	Options pebble.Options
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.Defaults == nil {
		o.Defaults = rdt.StdDefaults{}
	}
	if o.MaxCachedClasses == 0 {
		o.MaxCachedClasses = 1024
	}
}

// FieldTrigger fires after a field record changed; before holds the
// previous stored TLV, which is nil for a first write.
type FieldTrigger func(fid rdt.ID, kind rdt.Kind, before, after []byte)

type Store struct {
	db  *pebble.DB
	dir string
	src uint64

	last   rdt.ID
	idlock sync.Mutex

	// Single-context contract: the store rejects overlapping entry
	// from a second goroutine instead of racing.
	busy atomic.Int32

	types    *lru.Cache[rdt.ID, classes.Fields]
	triggers *xsync.MapOf[rdt.ID, []*FieldTrigger]
	idx      *indexes.Manager

	opts Options
	log  utils.Logger
}

var _ host.Host = (*Store)(nil)

var writeOptions = pebble.WriteOptions{Sync: false}

// Open opens or creates a store in the given directory.
func Open(dir string, opts Options) (*Store, error) {
	opts.SetDefaults()
	db, err := pebble.Open(dir, &opts.Options)
	if err != nil {
		return nil, err
	}
	types, _ := lru.New[rdt.ID, classes.Fields](opts.MaxCachedClasses)
	st := &Store{
		db:       db,
		dir:      dir,
		src:      opts.Src,
		types:    types,
		triggers: xsync.NewMapOf[rdt.ID, []*FieldTrigger](),
		idx:      indexes.New(opts.Logger, opts.Metrics),
		opts:     opts,
		log:      opts.Logger,
	}
	if opts.Metrics != nil {
		opts.Metrics.MustRegister(NewPebbleCollector(db))
	}
	if err = st.loadMeta(); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Info("store open", "dir", dir, "src", st.src, "last", st.last.String())
	return st, nil
}

func (st *Store) loadMeta() error {
	val, clo, err := st.db.Get(host.KeySource)
	if err == pebble.ErrNotFound {
		// fresh store
		batch := st.db.NewBatch()
		_ = batch.Set(host.KeySource, protocol.ZipUint64(st.src), nil)
		_ = batch.Set(host.KeyName, []byte(st.opts.Name), nil)
		_ = batch.Set(host.KeySchemaVersion, protocol.ZipUint64(0), nil)
		st.last = rdt.NewID(st.src, 0, 0)
		_ = batch.Set(host.KeyLastID, st.last.Bytes(), nil)
		return st.db.Apply(batch, &writeOptions)
	}
	if err != nil {
		return err
	}
	st.src = protocol.UnzipUint64(val)
	_ = clo.Close()

	val, clo, err = st.db.Get(host.KeyLastID)
	if err != nil {
		return err
	}
	st.last = rdt.IDFromBytes(val)
	_ = clo.Close()
	return nil
}

func (st *Store) Close() error {
	if st.db == nil {
		return lodge_errors.ErrClosed
	}
	_ = st.db.Close()
	st.db = nil
	st.last = rdt.ID0
	return nil
}

func (st *Store) Logger() utils.Logger               { return st.log }
func (st *Store) Source() uint64                     { return st.src }
func (st *Store) Defaults() rdt.DefaultGenerator     { return st.opts.Defaults }
func (st *Store) Database() *pebble.DB               { return st.db }
func (st *Store) WriteOptions() *pebble.WriteOptions { return &writeOptions }

func (st *Store) Snapshot() pebble.Reader {
	return st.db.NewSnapshot()
}

func (st *Store) Last() rdt.ID {
	return st.last
}

// enter is the cross-context access check. The store is owned by one
// execution context; a call that overlaps another caller's is a
// contract violation, not a queueing situation.
func (st *Store) enter() error {
	if st.db == nil {
		return lodge_errors.ErrClosed
	}
	if !st.busy.CompareAndSwap(0, 1) {
		return lodge_errors.ErrWrongContext
	}
	if st.db == nil {
		st.busy.Store(0)
		return lodge_errors.ErrClosed
	}
	return nil
}

func (st *Store) leave() {
	st.busy.Store(0)
}

// AllocateID hands out the next object id and persists the watermark.
func (st *Store) AllocateID() rdt.ID {
	st.idlock.Lock()
	st.last = st.last.ZeroOff() + rdt.SeqInc
	id := st.last
	_ = st.db.Set(host.KeyLastID, id.Bytes(), &writeOptions)
	st.idlock.Unlock()
	return id
}

// SchemaVersion reads the version stored in the file.
func (st *Store) SchemaVersion() (uint64, error) {
	if st.db == nil {
		return 0, lodge_errors.ErrClosed
	}
	val, clo, err := st.db.Get(host.KeySchemaVersion)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v := protocol.UnzipUint64(val)
	_ = clo.Close()
	return v, nil
}

// AddTrigger registers a post-write notification for a field key.
func (st *Store) AddTrigger(fid rdt.ID, trigger *FieldTrigger) {
	st.triggers.Compute(fid, func(old []*FieldTrigger, _ bool) ([]*FieldTrigger, bool) {
		return append(old, trigger), false
	})
}

func (st *Store) RemoveTrigger(fid rdt.ID, trigger *FieldTrigger) {
	st.triggers.Compute(fid, func(old []*FieldTrigger, _ bool) ([]*FieldTrigger, bool) {
		next := old[:0]
		for _, t := range old {
			if t != trigger {
				next = append(next, t)
			}
		}
		return next, len(next) == 0
	})
}

func (st *Store) fireTriggers(fid rdt.ID, kind rdt.Kind, before, after []byte) {
	lstn, ok := st.triggers.Load(fid)
	if !ok {
		return
	}
	for _, t := range lstn {
		(*t)(fid, kind, before, after)
	}
}
