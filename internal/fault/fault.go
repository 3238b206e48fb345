// Package fault defines the error taxonomy shared by the pipeline and its
// collaborators.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller must react to it.
type Kind int

const (
	// KindStage marks a recoverable failure of a single optional stage.
	KindStage Kind = iota
	// KindConfiguration marks a missing credential or model identifier. It
	// aborts the whole run.
	KindConfiguration
	// KindResource marks an inference backend running out of memory.
	KindResource
	// KindNotFound marks a missing input path.
	KindNotFound
)

var (
	ErrStage         = errors.New("stage failure")
	ErrConfiguration = errors.New("configuration error")
	ErrResource      = errors.New("resource exhausted")
	ErrNotFound      = errors.New("not found")
)

// ResourceHint is appended to resource errors surfaced to users.
const ResourceHint = "choose a smaller model (for example small or base)"

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	default:
		return "stage"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindResource:
		return ErrResource
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrStage
	}
}

// Error is a classified failure raised by an operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Kind == KindResource {
		msg += "; " + ResourceHint
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op string, err error) error { return newError(KindConfiguration, op, err) }
func Resource(op string, err error) error      { return newError(KindResource, op, err) }
func NotFound(op string, err error) error      { return newError(KindNotFound, op, err) }
func Stage(op string, err error) error         { return newError(KindStage, op, err) }

// Configurationf builds a configuration error from a format string.
func Configurationf(op, format string, args ...any) error {
	return Configuration(op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are treated as stage failures.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindStage
}

// Fatal reports whether err must stop processing of the current unit.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindConfiguration, KindResource, KindNotFound:
		return true
	}
	return false
}

// AbortsRun reports whether err must stop every remaining unit of a batch.
func AbortsRun(err error) bool {
	return err != nil && errors.Is(err, ErrConfiguration)
}

// Retryable reports whether a collaborator call that failed with err may be
// attempted again.
func Retryable(err error) bool {
	return err != nil && !Fatal(err)
}
