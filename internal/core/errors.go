package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSkipped marks a host that was deliberately not contacted.
	ErrSkipped = errors.New("skipped")
	// ErrTimedOut is returned when an attempt exceeds its adaptive deadline.
	ErrTimedOut = errors.New("timed out")
	// ErrInterrupted is returned when the run is cancelled by the user.
	ErrInterrupted = errors.New("interrupted by the user")
	// ErrMalformedLink is returned when no display name can be derived from a link.
	ErrMalformedLink = errors.New("malformed link")
	// ErrInputNotFound is returned when the input path does not exist.
	ErrInputNotFound = errors.New("input not found")
)

// ConfigError reports a missing or malformed host registry.
type ConfigError struct {
	Source string
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("host registry %s: %s: %v", e.Source, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("host registry %s: missing or invalid %s", e.Source, e.Field)
	default:
		return fmt.Sprintf("host registry %s: %v", e.Source, e.Err)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SkipError carries the reason a host was skipped. It matches ErrSkipped.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func (e *SkipError) Is(target error) bool { return target == ErrSkipped }

// TransportErrorKind distinguishes host-reported failures.
type TransportErrorKind int

const (
	// Generic covers network failures, bad statuses, and unparseable responses.
	Generic TransportErrorKind = iota
	// BadGateway is a host answering with a "bad gateway" page.
	BadGateway
)

func (k TransportErrorKind) String() string {
	switch k {
	case BadGateway:
		return "bad_gateway"
	default:
		return "generic"
	}
}

// TransportError is a recoverable per-host upload failure.
type TransportError struct {
	Host string
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Host, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
