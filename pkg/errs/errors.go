// Package errs defines the error taxonomy shared across Blockframe's
// storage, recovery, and serving layers.
//
// Callers should compare with errors.Is against the sentinel Kind values
// below rather than matching on error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets described by
// the storage engine's error handling design. Kinds are comparable with
// errors.Is; they never carry operation-specific detail themselves.
type Kind error

var (
	// NotFound is returned when a requested file, segment, parity shard,
	// or manifest does not exist.
	NotFound Kind = errors.New("not found")

	// AlreadyExists is returned when a commit would overwrite an existing
	// archive directory for the same (name, content-hash) pair.
	AlreadyExists Kind = errors.New("already exists")

	// ParseError is returned when a manifest is malformed, a shard length
	// is not a multiple of 64, or leaf indices are non-contiguous.
	ParseError Kind = errors.New("parse error")

	// IntegrityError is returned when a hash mismatch could not be
	// resolved by recovery.
	IntegrityError Kind = errors.New("integrity error")

	// RecoveryFailed is returned when fewer surviving shards than
	// data_shards were available, or the erasure decoder rejected the
	// input.
	RecoveryFailed Kind = errors.New("recovery failed")

	// TransientIO is returned for interrupted reads or remote peer
	// timeouts; the caller may retry.
	TransientIO Kind = errors.New("transient i/o error")

	// PermanentIO is returned for disk-full, permission-denied, or
	// non-writable path conditions.
	PermanentIO Kind = errors.New("permanent i/o error")

	// ConfigError is returned when configuration is missing or
	// malformed.
	ConfigError Kind = errors.New("config error")
)

// Wrap annotates err with msg and associates it with kind so that
// errors.Is(wrapped, kind) reports true.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, kind)
	}

	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}

// Is reports whether err (or any error it wraps) belongs to kind.
func Is(err error, kind Kind) bool { return errors.Is(err, kind) }
