// Package failure tags errors with the small set of kinds the batch loop
// branches on.
package failure

import (
	"errors"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfigNotFound means the model registry could not be read.
	KindConfigNotFound
	// KindConfigParse means the model registry was read but is malformed.
	KindConfigParse
	// KindIdentifierMalformed means an output name could not be derived
	// from a model identifier.
	KindIdentifierMalformed
	// KindInference covers pipeline construction and image generation.
	KindInference
	// KindIO covers encoding and persisting the output image.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfigNotFound:
		return "config-not-found"
	case KindConfigParse:
		return "config-parse"
	case KindIdentifierMalformed:
		return "identifier-malformed"
	case KindInference:
		return "inference"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Inner   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Inner != nil {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Inner.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Inner: err}
}

// New returns a tagged error without an underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of the outermost tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindConfigNotFound, KindConfigParse:
		return true
	default:
		return false
	}
}
