// Defines the Host interface the property, migration and index layers
// consume; the root lodge package implements it.
package host

import (
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/lodge-db/lodge/classes"
	"github.com/lodge-db/lodge/protocol"
	"github.com/lodge-db/lodge/rdt"
	"github.com/lodge-db/lodge/utils"
)

type Host interface {
	Logger() utils.Logger
	Source() uint64
	Defaults() rdt.DefaultGenerator

	// Field access by opaque per-schema key. Fails with
	// lodge_errors.ErrStaleReference when the owning object is gone,
	// lodge_errors.ErrWrongContext on cross-context access.
	GetField(fid rdt.ID) (kind rdt.Kind, tlv []byte, err error)
	SetField(ctx context.Context, fid rdt.ID, kind rdt.Kind, tlv []byte) error

	ClassFields(cid rdt.ID) (classes.Fields, error)
	ClassByName(name string) (rdt.ID, error)
	NewClass(ctx context.Context, name string, fields ...classes.Field) (rdt.ID, error)

	AllocateID() rdt.ID
	CreateObject(ctx context.Context, cid rdt.ID, tlvs protocol.Records) (rdt.ID, error)
	// CreateObjectAt writes the record under a pre-allocated id, for
	// callers that need the id before the record exists.
	CreateObjectAt(ctx context.Context, oid, cid rdt.ID, tlvs protocol.Records) (rdt.ID, error)
	DeleteObject(ctx context.Context, oid rdt.ID) error
	ObjectClass(oid rdt.ID) (rdt.ID, error)

	SchemaVersion() (uint64, error)
	Snapshot() pebble.Reader
	Database() *pebble.DB
	WriteOptions() *pebble.WriteOptions
}
