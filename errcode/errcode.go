package errcode

import (
	"errors"
	"strings"
)

// Code is a stable error identifier used in logs, fault counters and bus
// topics. It is a string newtype, comparable, allocation-free, and
// implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"
	Timeout       Code = "timeout"

	// Protocol faults raised by the emulated controller. None of these are
	// ever returned to an MMIO caller; they are logged and counted.
	AddressNack       Code = "address_nack"
	InvalidStateWrite Code = "invalid_state_write"
	EmptyQueueRead    Code = "empty_queue_read"
	UnmappedAccess    Code = "unmapped_access"

	// Machine assembly.
	DuplicateAddress Code = "duplicate_address"
	InvalidAddress   Code = "invalid_address"
	UnknownDevice    Code = "unknown_device"
	Overlap          Code = "overlap"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is match an *E against its bare Code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap builds an *E around a cause.
func Wrap(c Code, op string, err error) *E { return &E{C: c, Op: op, Err: err} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps errors from device drivers to a Code. Errors that
// already carry a Code keep it, anywhere in the chain.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return Timeout
	}
	return Error
}
