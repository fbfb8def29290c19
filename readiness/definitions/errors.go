package definitions

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failed connection attempt or verification step.
type ErrorKind string

const (
	KindTransportUnavailable   ErrorKind = "TransportUnavailable"
	KindHandleUnresponsive     ErrorKind = "HandleUnresponsive"
	KindAllStrategiesExhausted ErrorKind = "AllStrategiesExhausted"
	KindBlockingStepFailed     ErrorKind = "BlockingStepFailed"
	KindAdvisoryStepFailed     ErrorKind = "AdvisoryStepFailed"
)

var (
	ErrTransportUnavailable   = errors.New("transport unavailable")
	ErrHandleUnresponsive     = errors.New("handle unresponsive")
	ErrAllStrategiesExhausted = errors.New("all connection strategies exhausted")
	ErrBlockingStepFailed     = errors.New("blocking step failed")
	ErrAdvisoryStepFailed     = errors.New("advisory step failed")
)

// Sentinel returns the package-level error matching the kind, or nil.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindTransportUnavailable:
		return ErrTransportUnavailable
	case KindHandleUnresponsive:
		return ErrHandleUnresponsive
	case KindAllStrategiesExhausted:
		return ErrAllStrategiesExhausted
	case KindBlockingStepFailed:
		return ErrBlockingStepFailed
	case KindAdvisoryStepFailed:
		return ErrAdvisoryStepFailed
	default:
		return nil
	}
}

// KindError attaches an ErrorKind to an underlying cause. It matches both the
// kind's sentinel and the cause with errors.Is.
type KindError struct {
	Kind  ErrorKind
	Cause error
}

func NewKindError(kind ErrorKind, cause error) *KindError {
	return &KindError{Kind: kind, Cause: cause}
}

func (e *KindError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *KindError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// KindOf extracts the ErrorKind carried by err, or "" if there is none.
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}
