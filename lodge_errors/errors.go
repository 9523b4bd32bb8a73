// Provides common lodge error definitions.
package lodge_errors

import "errors"

var (
	ErrClosed        = errors.New("lodge: no store open")
	ErrObjectUnknown = errors.New("lodge: unknown object")
	ErrClassUnknown  = errors.New("lodge: unknown class")
	ErrFieldUnknown  = errors.New("lodge: unknown field for the class")
	ErrBadClass      = errors.New("lodge: bad class description")

	// StaleReference: the owning object was deleted or the store
	// invalidated; surfaced, never retried.
	ErrStaleReference = errors.New("lodge: stale object reference")

	// WrongContext: access from an execution context other than the
	// one that owns the store.
	ErrWrongContext = errors.New("lodge: access from a foreign context")

	ErrTypeMismatch = errors.New("lodge: field kind mismatch")

	ErrMigrationAborted  = errors.New("lodge: migration aborted")
	ErrVersionDowngrade  = errors.New("lodge: stored schema version is newer than declared")
	ErrMigrationReentry  = errors.New("lodge: migration instance already ran")
	ErrMigrationReadOnly = errors.New("lodge: record view is read-only")

	ErrPrimaryViolation = errors.New("lodge: primary key unique constraint violation")
	ErrHashIndexKind    = errors.New("lodge: field kind can't carry a hash index")
)
