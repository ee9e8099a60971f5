// Package errors defines the tagged error kinds surfaced by the enclave.
//
// Every externally visible failure carries exactly one Kind so callers can
// distinguish, for example, a decryption failure from a post-decrypt content
// mismatch, or a cache miss from an unreachable key server.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an enclave error.
type Kind string

const (
	// KindConfig marks malformed static configuration. Fatal at startup.
	KindConfig Kind = "config"
	// KindConstruction marks bad identifiers or timestamps while building a
	// request, rejected before any network call is made.
	KindConstruction Kind = "construction"
	// KindTransport marks an unreachable or non-success collaborator. A single
	// key server failing is tolerated; the kind surfaces only when every
	// server in the set failed, or when a blob download fails.
	KindTransport Kind = "transport"
	// KindProtocol marks a key-server response that does not decrypt under the
	// server's known commitment. Never tolerated.
	KindProtocol Kind = "protocol"
	// KindNotProvisioned marks a cache miss on a cache-fed decrypt; callers
	// react by running the bootstrap flow.
	KindNotProvisioned Kind = "not_provisioned"
	// KindContentIntegrity marks a post-decrypt fingerprint mismatch, distinct
	// from a decryption failure.
	KindContentIntegrity Kind = "content_integrity"
)

// Error is a Kind-tagged error. It wraps an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinel comparisons like
// errors.Is(err, &Error{Kind: KindTransport}) work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a Kind-tagged error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a Kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a kind. Returns nil if err is nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, or "" when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
