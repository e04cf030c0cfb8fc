// Package peperr implements the typed error taxonomy every PEP component
// surfaces to its callers.
package peperr

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies a category of failure without binding callers to a
// concrete error type.
type Kind int

const (
	// KindInvalidEncoding marks a malformed group element or scalar.
	KindInvalidEncoding Kind = iota
	// KindNonInvertibleScalar marks a failed arithmetic precondition.
	KindNonInvertibleScalar
	// KindSignatureInvalid marks a ticket or record signature that failed
	// to verify.
	KindSignatureInvalid
	// KindTicketExpired marks a ticket presented after its validity window.
	KindTicketExpired
	// KindTicketNotYetValid marks a ticket presented before its validity
	// window.
	KindTicketNotYetValid
	// KindAccessDenied marks a missing grant for (group, mode, subject).
	KindAccessDenied
	// KindTranscryptionRefused marks a hop that refused to rewrite a
	// ciphertext.
	KindTranscryptionRefused
	// KindPayloadCorrupted marks an AEAD failure at decryption.
	KindPayloadCorrupted
	// KindPersistenceIntegrityFailure marks a stored object whose hash did
	// not match what the page store returned.
	KindPersistenceIntegrityFailure
	// KindRecordConflict marks an attempt to create an already-existing
	// named entity.
	KindRecordConflict
	// KindNotFound marks a named entity absent at the requested timestamp.
	KindNotFound
	// KindCancelled marks cooperative cancellation.
	KindCancelled
	// KindThrottled marks a peer (or the page store) asking us to back off.
	KindThrottled
	// KindInternal marks an invariant violation.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidEncoding:
		return "InvalidEncoding"
	case KindNonInvertibleScalar:
		return "NonInvertibleScalar"
	case KindSignatureInvalid:
		return "SignatureInvalid"
	case KindTicketExpired:
		return "TicketExpired"
	case KindTicketNotYetValid:
		return "TicketNotYetValid"
	case KindAccessDenied:
		return "AccessDenied"
	case KindTranscryptionRefused:
		return "TranscryptionRefused"
	case KindPayloadCorrupted:
		return "PayloadCorrupted"
	case KindPersistenceIntegrityFailure:
		return "PersistenceIntegrityFailure"
	case KindRecordConflict:
		return "RecordConflict"
	case KindNotFound:
		return "NotFound"
	case KindCancelled:
		return "Cancelled"
	case KindThrottled:
		return "Throttled"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried by every typed PEP failure.
type Error struct {
	Kind Kind
	msg  string
	// AccessDenied detail, populated only for KindAccessDenied.
	Group, Mode, Subject string
	// RetryAfter, populated only for KindThrottled.
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.Kind == KindAccessDenied {
		return fmt.Sprintf("%s: group=%q mode=%q subject=%q: %s", e.Kind, e.Group, e.Mode, e.Subject, e.msg)
	}
	if e.Kind == KindThrottled {
		return fmt.Sprintf("%s: retry after %s: %s", e.Kind, e.RetryAfter, e.msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs an Error of the given kind with a plain message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap constructs an Error of the given kind, wrapping cause with
// github.com/pkg/errors so operators retain a stack trace at service
// boundaries (see DESIGN.md's error-handling grounding note).
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, cause: errors.Wrap(cause, msg)}
}

// AccessDenied constructs the AccessDenied variant, carrying the exact
// missing grant.
func AccessDenied(group, mode, subject string) *Error {
	return &Error{
		Kind:    KindAccessDenied,
		msg:     "missing access rule",
		Group:   group,
		Mode:    mode,
		Subject: subject,
	}
}

// Throttled constructs the Throttled variant with a caller-suggested
// backoff duration.
func Throttled(retryAfter time.Duration) *Error {
	return &Error{Kind: KindThrottled, msg: "backoff requested", RetryAfter: retryAfter}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
