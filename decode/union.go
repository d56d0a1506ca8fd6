package decode

import (
	"bytes"
	"errors"

	json "github.com/goccy/go-json"
)

// Shape names the variant a union body matched.
type Shape int

const (
	// ShapeSuccess means the body decoded as the success type.
	ShapeSuccess Shape = iota + 1
	// ShapeFailure means the body decoded as the upstream error shape.
	ShapeFailure
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSuccess:
		return "success"
	case ShapeFailure:
		return "failure"
	default:
		return "none"
	}
}

// Envelope is a decoded union response. Exactly one of Value and Failure is
// meaningful, as reported by Matched.
type Envelope[T any] struct {
	Value   T
	Failure *UpstreamError
}

// Matched reports which shape the body matched.
func (e Envelope[T]) Matched() Shape {
	if e.Failure != nil {
		return ShapeFailure
	}
	return ShapeSuccess
}

// Result converts the envelope into a value or an *UpstreamError.
func (e Envelope[T]) Result() (T, error) {
	if e.Failure != nil {
		var zero T
		return zero, e.Failure
	}
	return e.Value, nil
}

// Union decodes body as either T or the upstream error shape.
//
// The success shape is tried first. A successful decode is accepted unless the
// body is an object carrying the full error signature (info, message and
// stackTrace), which would otherwise let a lenient T swallow an error body.
// The error shape is tried second and requires info and message.
//
// When neither shape matches, a *DecodeError produced while decoding T (for
// example a RecordMismatch from a PositionalBatch) is returned unchanged.
// Anything else becomes SchemaMismatch, including a bare null body, which
// would otherwise decode as a nil success value.
func Union[T any](body []byte) (Envelope[T], error) {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return Envelope[T]{}, newDecodeError(SchemaMismatch, -1, body, errors.New("null body"))
	}

	var value T
	successErr := unmarshal(body, &value)

	if successErr == nil && !hasErrorSignature(body) {
		return Envelope[T]{Value: value}, nil
	}

	if failure, ok := Failure(body); ok {
		return Envelope[T]{Failure: failure}, nil
	}

	if successErr == nil {
		return Envelope[T]{Value: value}, nil
	}

	var de *DecodeError
	if errors.As(successErr, &de) {
		return Envelope[T]{}, de
	}
	return Envelope[T]{}, newDecodeError(SchemaMismatch, -1, body, successErr)
}

// unmarshal calls UnmarshalJSON directly when v implements it so typed errors
// keep their identity.
func unmarshal(body []byte, v any) error {
	if u, ok := v.(json.Unmarshaler); ok {
		return u.UnmarshalJSON(body)
	}
	return json.Unmarshal(body, v)
}

type failureWire struct {
	Info       *string `json:"info"`
	Message    *string `json:"message"`
	StackTrace *string `json:"stackTrace"`
}

// Failure decodes body as the upstream error shape only. It reports false
// unless body is an object with at least info and message.
func Failure(body []byte) (*UpstreamError, bool) {
	if firstByte(body) != '{' {
		return nil, false
	}
	var w failureWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, false
	}
	if w.Info == nil || w.Message == nil {
		return nil, false
	}
	failure := &UpstreamError{Info: *w.Info, Message: *w.Message}
	if w.StackTrace != nil {
		failure.StackTrace = *w.StackTrace
	}
	return failure, true
}

func hasErrorSignature(body []byte) bool {
	if firstByte(body) != '{' {
		return false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return false
	}
	for _, k := range []string{"info", "message", "stackTrace"} {
		if _, ok := keys[k]; !ok {
			return false
		}
	}
	return true
}

// firstByte returns the first non-whitespace byte of b, or 0.
func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}
