// Package errors provides standardized error handling for the notification
// stream engine. It includes error classification, standard error variables,
// and helper functions for consistent error wrapping across the engine, plus
// the protocol error taxonomy surfaced to the NETCONF RPC layer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or data
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
	// ErrorBenign represents expected conditions that are not failures
	ErrorBenign
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	case ErrorBenign:
		return "benign"
	default:
		return "unknown"
	}
}

// Standard error variables for engine conditions
var (
	// Stream file and codec errors
	ErrNotAStream    = errors.New("not a stream file")
	ErrHeaderShort   = errors.New("unexpected end of stream file header")
	ErrRecordShort   = errors.New("unexpected end of stream file record")
	ErrStreamExists  = errors.New("stream already exists")
	ErrUnknownStream = errors.New("stream does not exist")

	// Rule table errors
	ErrRuleTableFull = errors.New("rule table capacity exhausted")
	ErrMapFailed     = errors.New("mapping rule table failed")

	// Locking and I/O errors
	ErrLockFailed = errors.New("stream file locking failed")
	ErrIoFatal    = errors.New("stream file i/o failed")

	// Bus errors
	ErrBusClosed       = errors.New("bus connection closed")
	ErrNotSubscribed   = errors.New("not subscribed to stream")
	ErrRecvTimeout     = errors.New("no signal within timeout")
	ErrMalformedSignal = errors.New("malformed bus signal")

	// Engine lifecycle errors
	ErrNotInitialized     = errors.New("engine not initialized")
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrClosed             = errors.New("engine closed")

	// Parsing errors
	ErrParse = errors.New("parsing XML payload failed")

	// Dispatcher errors
	ErrSessionNotWorking = errors.New("session is not in working state")
	ErrNoNotifCapability = errors.New("session does not advertise the notification capability")
	ErrDispatcherActive  = errors.New("another notification dispatcher is active on the session")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried.
// EINTR and EAGAIN from raw file descriptor operations fall in this class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, ErrRecvTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// IsBenign checks if an error is an expected condition rather than a failure.
// ErrNotAStream during a directory scan is the canonical case.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorBenign
	}

	return errors.Is(err, ErrNotAStream)
}

// IsFatal checks if an error is fatal for the current operation
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrIoFatal) ||
		errors.Is(err, ErrMapFailed) ||
		errors.Is(err, ErrBusClosed) ||
		errors.Is(err, ErrClosed)
}

// IsInvalid checks if an error is due to invalid input or data
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrParse) ||
		errors.Is(err, ErrMalformedSignal) ||
		errors.Is(err, ErrUnknownStream)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	switch {
	case IsBenign(err):
		return ErrorBenign
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

// newClassified creates a new classified error.
// Internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorTransient, Wrap(err, component, method, action), component, method)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorFatal, Wrap(err, component, method, action), component, method)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorInvalid, Wrap(err, component, method, action), component, method)
}

// WrapBenign wraps an error as a benign condition with context
func WrapBenign(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorBenign, Wrap(err, component, method, action), component, method)
}
