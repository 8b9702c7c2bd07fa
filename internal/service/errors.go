package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures of outbound calls so sweeps can decide
// per item whether to mark it failed, leave it pending, or back off.
type ErrorKind string

const (
	ErrKindTransient      ErrorKind = "transient"
	ErrKindAuth           ErrorKind = "auth"
	ErrKindRateLimited    ErrorKind = "rate_limited"
	ErrKindPermanent      ErrorKind = "permanent"
	ErrKindProxyExhausted ErrorKind = "proxy_exhausted"
)

type RelayError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

func Transient(message string, err error) *RelayError {
	return &RelayError{Kind: ErrKindTransient, Message: message, Err: err}
}

func AuthFailure(message string, err error) *RelayError {
	return &RelayError{Kind: ErrKindAuth, Message: message, Err: err}
}

func Permanent(message string, err error) *RelayError {
	return &RelayError{Kind: ErrKindPermanent, Message: message, Err: err}
}

// KindOf extracts the classification; unclassified errors count as
// transient so the next sweep naturally retries them.
func KindOf(err error) ErrorKind {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrKindTransient
}

// FromHTTPStatus maps a provider status code onto the taxonomy.
func FromHTTPStatus(status int, message string) *RelayError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &RelayError{Kind: ErrKindAuth, Message: message}
	case status == http.StatusTooManyRequests:
		return &RelayError{Kind: ErrKindRateLimited, Message: message}
	case status >= 500:
		return &RelayError{Kind: ErrKindTransient, Message: message}
	default:
		return &RelayError{Kind: ErrKindPermanent, Message: message}
	}
}
