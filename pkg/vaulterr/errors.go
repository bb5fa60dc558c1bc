/*
Package vaulterr defines the tagged error taxonomy shared by every layer of
the vault core (memory, vault, snapshot, procedure). Each subsystem reports
failures as an *Error carrying a Kind from its own namespace, wrapping the
lower-level cause with fmt.Errorf-style %w semantics so errors.Is/errors.As
keep working across package boundaries.

Propagation policy: low-level memory and I/O errors bubble up unchanged to
the boundary between subsystems, where they are re-tagged into the
enclosing kind (vault, snapshot, procedure). Nothing in this package
performs rollback; that is the procedure runner's job alone.
*/
package vaulterr

import (
	"errors"
	"fmt"
)

// Kind identifies which tagged error a failure belongs to, scoped by the
// prefix before the first '.' (memory, vault, snapshot, procedure).
type Kind string

const (
	// Memory
	KindEncryption            Kind = "memory.encryption"
	KindDecryption            Kind = "memory.decryption"
	KindSizeMismatch          Kind = "memory.size_mismatch"
	KindLockUnavailable       Kind = "memory.lock_unavailable"
	KindFilesystemError       Kind = "memory.filesystem_error"
	KindZeroSized             Kind = "memory.zero_sized"
	KindConfigurationNotAllowed Kind = "memory.configuration_not_allowed"

	// Vault
	KindRecordNotFound  Kind = "vault.record_not_found"
	KindWriteFailed     Kind = "vault.write_failed"
	KindKeyMissing      Kind = "vault.key_missing"
	KindKeyAlreadyExists Kind = "vault.key_already_exists"

	// Snapshot
	KindInvalidFile         Kind = "snapshot.invalid_file"
	KindUnsupportedVersion  Kind = "snapshot.unsupported_version"
	KindCorruptedContent    Kind = "snapshot.corrupted_content"
	KindIO                  Kind = "snapshot.io"
	KindSnapshotKeyMissing  Kind = "snapshot.key_missing"

	// Procedure
	KindMissingInput    Kind = "procedure.missing_input"
	KindInvalidInput    Kind = "procedure.invalid_input"
	KindFatalProcedure  Kind = "procedure.fatal"
	KindRevoked         Kind = "procedure.revoked"
)

// Error is the common tagged-error envelope for the whole module.
type Error struct {
	Kind   Kind
	Op     string // the operation that failed, e.g. "vault.write"
	Fields map[string]any
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if len(e.Fields) > 0 {
		msg += fmt.Sprintf(" %v", e.Fields)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same Kind, so callers can write
// errors.Is(err, vaulterr.KindRecordNotFound)-style checks via Kind values
// wrapped in a sentinel, or use IsKind directly.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a tagged Error, optionally wrapping a lower-level cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithFields attaches structured context (e.g. expected/found version,
// vault_id/record_id) to an Error and returns it for chaining.
func (e *Error) WithFields(fields map[string]any) *Error {
	e.Fields = fields
	return e
}

// IsKind reports whether err (or anything it wraps) is a vaulterr.Error of
// the given Kind.
func IsKind(err error, kind Kind) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind == kind
	}
	return false
}
