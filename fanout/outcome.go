package fanout

import (
	"errors"
	"fmt"

	"github.com/kroma-labs/transit-go/clienterr"
)

// ErrNoHosts is reported when a descriptor names no mirrors.
var ErrNoHosts = errors.New("fanout: descriptor has no hosts")

// ErrBodyTooLarge is reported when a mirror body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("fanout: response body too large")

// Stage is the point in a leg at which it failed.
type Stage int

const (
	// StageTransport covers building the request, the round trip, a non-2xx
	// status and reading the body.
	StageTransport Stage = iota + 1
	// StageDecode covers interpreting the body.
	StageDecode
)

func (s Stage) String() string {
	switch s {
	case StageTransport:
		return "transport"
	case StageDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// HostError is the failure of one leg.
type HostError struct {
	Host  string
	Stage Stage
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("fanout: %s failed at %s: %v", e.Host, e.Stage, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// Kind reports the kind of the wrapped error, falling back to the stage.
func (e *HostError) Kind() clienterr.Kind {
	if k := clienterr.KindOf(e.Err); k != clienterr.KindUnknown {
		return k
	}
	if e.Stage == StageDecode {
		return clienterr.KindDecode
	}
	return clienterr.KindTransport
}

// Outcome is the merged result of a fan-out.
//
// Items holds the records of every successful mirror, in host dispatch
// order and then in the order each mirror returned them. Duplicates across
// mirrors are kept. Errors holds one entry per failed mirror, in dispatch
// order.
type Outcome[T any] struct {
	Items  []T
	Errors []*HostError

	legs int
}

// Degraded reports whether at least one mirror failed.
func (o Outcome[T]) Degraded() bool {
	return len(o.Errors) > 0
}

// Failed reports whether no mirror succeeded.
func (o Outcome[T]) Failed() bool {
	return len(o.Errors) > 0 && len(o.Errors) >= o.legs
}

// Hosts returns the failed mirrors in dispatch order.
func (o Outcome[T]) Hosts() []string {
	hosts := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		hosts = append(hosts, e.Host)
	}
	return hosts
}

// Err joins the host errors when every mirror failed, and is nil otherwise.
func (o Outcome[T]) Err() error {
	if !o.Failed() {
		return nil
	}
	errs := make([]error, len(o.Errors))
	for i, e := range o.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
