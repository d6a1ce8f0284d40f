// Package rainerr provides the error taxonomy shared by every Rain
// component: Validation, Protocol, WorkerFault and Internal (spec.md §7).
// Errors carry stack traces and safe-detail redaction via
// github.com/cockroachdb/errors, the same dependency teranos-QNTX's
// errors package re-exports; rainerr adds the four-kind classification
// spec.md requires on top of it.
package rainerr

import (
	crdb "github.com/cockroachdb/errors"
)

// Kind classifies why an operation failed (spec.md §7). These are
// abstract categories, not concrete Go types: callers switch on Kind, not
// on the dynamic type of the error value.
type Kind int

const (
	// KindUnknown is never returned by rainerr constructors; it is the
	// zero value seen when KindOf is asked about a plain error.
	KindUnknown Kind = iota
	// KindValidation marks a rejected request that left the graph
	// unchanged: bad ids, cycles, malformed input (spec.md §7/§8's
	// verify_submit failures).
	KindValidation
	// KindProtocol marks a violation of the RPC surface's contract by a
	// peer: out-of-order calls, references to unknown ids.
	KindProtocol
	// KindWorkerFault marks a failure attributable to a specific worker:
	// an outbound RPC that failed to send, or a worker-reported error.
	KindWorkerFault
	// KindInternal marks a consistency-check failure or other defect in
	// the core itself. Per spec.md §7, Internal errors are fatal — the
	// core aborts rather than continuing with a corrupted graph.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindProtocol:
		return "Protocol"
	case KindWorkerFault:
		return "WorkerFault"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

type kindedError struct {
	kind  Kind
	cause error
}

func (e *kindedError) Error() string { return e.cause.Error() }
func (e *kindedError) Unwrap() error { return e.cause }

// newKind builds a kindedError over a fresh crdb error carrying a stack
// trace, so KindOf keeps working after Wrap/WithHint/etc. are layered on.
func newKind(kind Kind, format string, args ...interface{}) error {
	return &kindedError{kind: kind, cause: crdb.NewWithDepthf(1, format, args...)}
}

// Validationf builds a Validation error.
func Validationf(format string, args ...interface{}) error {
	return newKind(KindValidation, format, args...)
}

// Protocolf builds a Protocol error.
func Protocolf(format string, args ...interface{}) error {
	return newKind(KindProtocol, format, args...)
}

// WorkerFaultf builds a WorkerFault error.
func WorkerFaultf(format string, args ...interface{}) error {
	return newKind(KindWorkerFault, format, args...)
}

// Internalf builds an Internal error.
func Internalf(format string, args ...interface{}) error {
	return newKind(KindInternal, format, args...)
}

// Wrap attaches kind to an existing error, preserving its message and
// cause chain (crdb.Wrap adds a stack frame at the call site).
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, cause: crdb.Wrap(err, message)}
}

// KindOf walks err's cause chain and returns the first rainerr Kind found,
// or (KindUnknown, false) if err was never classified.
func KindOf(err error) (Kind, bool) {
	var ke *kindedError
	if crdb.As(err, &ke) {
		return ke.kind, true
	}
	return KindUnknown, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
