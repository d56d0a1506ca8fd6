package fanout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kroma-labs/transit-go/clienterr"
	"github.com/kroma-labs/transit-go/decode"
	"github.com/kroma-labs/transit-go/endpoint"
	"github.com/kroma-labs/transit-go/httpclient"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Doer sends one HTTP request. *http.Client and *httpclient.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DecodeFunc turns one mirror body into records.
type DecodeFunc[T any] func(body []byte) ([]T, error)

// Fetcher dispatches one logical request to every mirror of a descriptor.
// It holds no per-call state and is safe for concurrent use.
type Fetcher struct {
	doer    Doer
	logger  zerolog.Logger
	tracer  trace.Tracer
	metrics *metrics
	maxBody int64
}

// New creates a Fetcher that sends every leg through doer.
func New(doer Doer, opts ...Option) *Fetcher {
	cfg := newConfig(opts...)

	m, err := newMetrics(cfg.MeterProvider.Meter(scope))
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("fanout metrics disabled")
		m = nil
	}

	return &Fetcher{
		doer:    doer,
		logger:  cfg.Logger,
		tracer:  cfg.TracerProvider.Tracer(scope),
		metrics: m,
		maxBody: cfg.MaxBodyBytes,
	}
}

type legResult[T any] struct {
	items []T
	err   *HostError
}

// Fetch sends desc to each of its hosts concurrently and waits for every leg.
// A failed leg never cancels its siblings. A nil dec decodes each body as a
// plain JSON array of T.
//
// Whether a partial or empty Outcome is acceptable is left to the caller.
func Fetch[T any](ctx context.Context, f *Fetcher, desc endpoint.Descriptor, dec DecodeFunc[T]) Outcome[T] {
	if dec == nil {
		dec = decode.List[T]
	}

	hosts := desc.Hosts()
	if len(hosts) == 0 {
		return Outcome[T]{
			Items:  []T{},
			Errors: []*HostError{{Stage: StageTransport, Err: ErrNoHosts}},
			legs:   1,
		}
	}

	results := make([]legResult[T], len(hosts))

	var g errgroup.Group
	for i, host := range hosts {
		g.Go(func() error {
			items, err := fetchLeg(ctx, f, desc.URL(host), host, dec)
			results[i] = legResult[T]{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome[T]{Items: []T{}, legs: len(hosts)}
	for _, r := range results {
		if r.err != nil {
			out.Errors = append(out.Errors, r.err)
			continue
		}
		out.Items = append(out.Items, r.items...)
	}

	if out.Degraded() {
		f.logger.Warn().
			Str("path", desc.Path()).
			Strs("failed_hosts", out.Hosts()).
			Int("hosts", len(hosts)).
			Bool("failed", out.Failed()).
			Msg("mirror fan-out degraded")
	}

	return out
}

func fetchLeg[T any](
	ctx context.Context,
	f *Fetcher,
	rawURL, host string,
	dec DecodeFunc[T],
) (items []T, hostErr *HostError) {
	ctx, span := f.tracer.Start(ctx, "fanout.leg",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("mirror.host", host)),
	)
	start := time.Now()
	defer func() {
		result := "ok"
		if hostErr != nil {
			result = hostErr.Stage.String()
			span.RecordError(hostErr.Err)
			span.SetStatus(codes.Error, result)
			span.SetAttributes(attribute.String("fanout.stage", result))
		} else {
			span.SetAttributes(attribute.Int("fanout.records", len(items)))
		}
		span.End()
		f.metrics.recordLeg(ctx, host, result, time.Since(start))
	}()

	fail := func(stage Stage, err error) ([]T, *HostError) {
		f.logger.Debug().
			Err(err).
			Str("host", host).
			Stringer("stage", stage).
			Msg("mirror leg failed")
		return nil, &HostError{Host: host, Stage: stage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(StageTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.doer.Do(req)
	if err != nil {
		return fail(StageTransport, httpclient.WrapTransportError(req, "fetch", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return fail(StageTransport, &clienterr.StatusError{Host: req.URL.Host, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return fail(StageTransport, httpclient.WrapTransportError(req, "read", err))
	}
	if int64(len(body)) > f.maxBody {
		return fail(StageTransport, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.maxBody))
	}

	items, err = dec(body)
	if err != nil {
		return fail(StageDecode, err)
	}
	return items, nil
}
