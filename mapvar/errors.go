package mapvar

import (
	"errors"
	"fmt"
)

// The four failure classes of symbolic mapping evaluation. Every one is
// fatal to the current trace: the session records the first and refuses
// further dispatch. There are no retries and no partial effects.
var (
	// ErrUnsupported marks a method, arity, or value shape outside the
	// modeled surface. The embedding tracer falls back to running the real
	// host instruction.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrKeyMissing marks a lookup of an absent key where the host defines
	// a key error.
	ErrKeyMissing = errors.New("key missing")

	// ErrSchemaMismatch marks record construction arguments that do not
	// cover the declared schema exactly.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrKeyRejected marks a symbolic value that failed key normalization.
	ErrKeyRejected = errors.New("key rejected")
)

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func keyMissingf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrKeyMissing, fmt.Sprintf(format, args...))
}

func schemaMismatchf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, fmt.Sprintf(format, args...))
}

func keyRejectedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrKeyRejected, fmt.Sprintf(format, args...))
}
