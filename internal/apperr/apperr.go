// Package apperr classifies failures so HTTP handlers can map them to
// stable status codes and machine-readable reasons.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind buckets errors by who can fix them.
type Kind int

const (
	// KindValidation covers malformed or missing client input.
	KindValidation Kind = iota + 1
	// KindNotFound covers unknown or inactive resources.
	KindNotFound
	// KindPolicy covers well-formed requests rejected by business rules.
	KindPolicy
	// KindTransient covers infrastructure failures the caller may retry.
	KindTransient
	// KindInternal covers everything else; details stay in the logs.
	KindInternal
)

// Reason is a machine-readable code accompanying the human message.
type Reason string

const (
	ReasonBadInput        Reason = "BAD_INPUT"
	ReasonLocationMissing Reason = "LOCATION_MISSING"
	ReasonSessionNotFound Reason = "SESSION_NOT_FOUND"
	ReasonOutOfRange      Reason = "OUT_OF_RANGE"
	ReasonAlreadyMarked   Reason = "ALREADY_MARKED"
	ReasonOriginConflict  Reason = "ORIGIN_CONFLICT"
	ReasonVPNSuspected    Reason = "VPN_SUSPECTED"
	ReasonAlreadyEnded    Reason = "SESSION_ALREADY_ENDED"
	ReasonStoreFailure    Reason = "STORE_FAILURE"
	ReasonInternal        Reason = "INTERNAL"
)

// Error carries a kind, a reason code, and a caller-facing message.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a client-fixable input error.
func Validation(reason Reason, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: msg}
}

// NotFound builds a missing-resource error.
func NotFound(reason Reason, msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: msg}
}

// Policy builds a business-rule rejection.
func Policy(reason Reason, msg string) *Error {
	return &Error{Kind: KindPolicy, Reason: reason, Message: msg}
}

// Transient wraps a retryable infrastructure failure.
func Transient(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Reason: ReasonStoreFailure, Message: msg, Err: err}
}

// Internal wraps an unexpected fault. The message shown to callers is
// generic; err is preserved for logging.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: "internal error", Err: err}
}

// KindOf extracts the kind, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf extracts the reason code, defaulting to ReasonInternal.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonInternal
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPolicy:
		if e.Reason == ReasonAlreadyMarked {
			return http.StatusConflict
		}
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
