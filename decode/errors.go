package decode

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kroma-labs/transit-go/clienterr"
)

// SnippetLimit caps how many body bytes a DecodeError carries for diagnostics.
const SnippetLimit = 256

// Reason identifies which decoding rule a body violated.
type Reason int

const (
	// SchemaMismatch means the body matched neither the success nor the
	// error shape, or was not the expected JSON container.
	SchemaMismatch Reason = iota + 1
	// EmptyBatch means a positional batch had no elements at all.
	EmptyBatch
	// InvalidMetadata means element 0 of a positional batch was not a string.
	InvalidMetadata
	// RecordMismatch means one record failed to decode. Index holds its
	// position in the JSON array.
	RecordMismatch
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case SchemaMismatch:
		return "schema mismatch"
	case EmptyBatch:
		return "empty batch"
	case InvalidMetadata:
		return "invalid metadata"
	case RecordMismatch:
		return "record mismatch"
	default:
		return "unknown"
	}
}

// DecodeError reports a body that could not be decoded into the requested
// shape.
type DecodeError struct {
	Reason Reason
	// Index is the array position of the offending element for
	// RecordMismatch and InvalidMetadata, and -1 otherwise.
	Index int
	// Snippet holds at most SnippetLimit bytes of the offending input.
	Snippet string
	// Err is the underlying parser error, if any.
	Err error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode: ")
	b.WriteString(e.Reason.String())
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at index %d", e.Index)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, " (body: %q)", e.Snippet)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind implements clienterr.Kinded.
func (e *DecodeError) Kind() clienterr.Kind { return clienterr.KindDecode }

// UpstreamError is the error shape the origin returns when a call fails
// logically, often with HTTP 200.
type UpstreamError struct {
	Info       string `json:"info"`
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s\nStack trace: %s", e.Info, e.Message, e.StackTrace)
}

// Kind implements clienterr.Kinded.
func (e *UpstreamError) Kind() clienterr.Kind { return clienterr.KindUpstream }

func newDecodeError(reason Reason, index int, input []byte, err error) *DecodeError {
	return &DecodeError{
		Reason:  reason,
		Index:   index,
		Snippet: snippet(input),
		Err:     err,
	}
}

// snippet returns at most SnippetLimit bytes of b without splitting a rune.
func snippet(b []byte) string {
	if len(b) <= SnippetLimit {
		return strings.ToValidUTF8(string(b), "")
	}
	cut := SnippetLimit
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return strings.ToValidUTF8(string(b[:cut]), "")
}
