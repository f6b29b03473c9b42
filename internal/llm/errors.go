package llm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel targets for errors.Is. Every backend failure surfaces as a
// *BackendError matching exactly one of these.
var (
	// ErrBackendUnavailable: transient transport failure or timeout.
	// The only retryable kind.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendOverflow: prompt exceeds the configured context window.
	// Never retried; the caller degrades or truncates.
	ErrBackendOverflow = errors.New("backend context overflow")
	// ErrBackendMalformed: the backend answered but the response cannot
	// be used. Callers may re-prompt once, then degrade.
	ErrBackendMalformed = errors.New("backend malformed output")
)

type ErrorKind int

const (
	KindUnavailable ErrorKind = iota
	KindOverflow
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindOverflow:
		return "overflow"
	case KindMalformed:
		return "malformed"
	default:
		return "unavailable"
	}
}

// BackendError annotates a model failure with the provider and model
// that produced it, so strict-mode failures are diagnosable.
type BackendError struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s/%s: %s", e.Provider, e.Model, e.Kind)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrBackendUnavailable:
		return e.Kind == KindUnavailable
	case ErrBackendOverflow:
		return e.Kind == KindOverflow
	case ErrBackendMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

func Unavailable(provider, model string, err error) *BackendError {
	return &BackendError{Kind: KindUnavailable, Provider: provider, Model: model, Err: err}
}

func Overflow(provider, model string, err error) *BackendError {
	return &BackendError{Kind: KindOverflow, Provider: provider, Model: model, Err: err}
}

func Malformed(provider, model string, err error) *BackendError {
	return &BackendError{Kind: KindMalformed, Provider: provider, Model: model, Err: err}
}
