package mpk

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/kroma-labs/transit-go/clienterr"
	"github.com/kroma-labs/transit-go/decode"
	"github.com/kroma-labs/transit-go/digest"
	"github.com/kroma-labs/transit-go/endpoint"
	"github.com/kroma-labs/transit-go/httpclient"
	"github.com/rs/zerolog"
)

// Client calls the digest-protected MPK mobile API. It is safe for
// concurrent use.
type Client struct {
	cfg        Config
	negotiator *digest.Negotiator
	logger     zerolog.Logger
	now        func() time.Time
	maxBody    int64
}

// New returns a Client sending requests through doer.
func New(cfg Config, doer digest.Doer, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = DefaultConfig().Location
	}

	c := &Client{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		now:     time.Now,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.negotiator = digest.NewNegotiator(doer, cfg.credentials(), digest.WithLogger(c.logger))
	return c, nil
}

// Positions returns the current position of every vehicle.
func (c *Client) Positions(ctx context.Context) (Positions, error) {
	date := c.now().In(c.cfg.Location).Add(-c.cfg.PositionsLag).Format(DateFormat)
	return call[Positions](ctx, c, "getPositions", endpoint.Param{Key: "date", Value: date})
}

// PostInfo returns the next departures from the stop with symbol.
func (c *Client) PostInfo(ctx context.Context, symbol string) ([]BusStop, error) {
	return call[[]BusStop](ctx, c, "getPostInfo", endpoint.Param{Key: "symbol", Value: symbol})
}

// CoursePosts returns the route of each course.
func (c *Client) CoursePosts(ctx context.Context, courses []string) ([]CourseInfo, error) {
	return call[[]CourseInfo](ctx, c, "getCoursePosts",
		endpoint.Param{Key: "courses", Value: strings.Join(courses, ",")})
}

// PostPlate returns the printed timetable of line at post.
func (c *Client) PostPlate(ctx context.Context, post, line string) (PostPlate, error) {
	return call[PostPlate](ctx, c, "getPostPlate",
		endpoint.Param{Key: "post", Value: post},
		endpoint.Param{Key: "line", Value: line},
		endpoint.Param{Key: "output", Value: "json"},
	)
}

// Descriptor returns the request for function with params.
func (c *Client) Descriptor(function string, params ...endpoint.Param) endpoint.Descriptor {
	all := append([]endpoint.Param{{Key: "function", Value: function}}, params...)
	return endpoint.New([]string{c.cfg.BaseURL}, c.cfg.Path, all...)
}

func call[T any](ctx context.Context, c *Client, function string, params ...endpoint.Param) (T, error) {
	var zero T
	rawURL := c.Descriptor(function, params...).URL(c.cfg.BaseURL)

	start := time.Now()
	resp, err := c.negotiator.Get(ctx, rawURL)
	if err != nil {
		c.logger.Debug().Err(err).Str("function", function).Msg("mpk call failed")
		return zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return zero, &clienterr.TransportError{
			Host: hostOf(rawURL),
			Op:   "read",
			Type: httpclient.ClassifyError(err),
			Err:  err,
		}
	}
	if int64(len(body)) > c.maxBody {
		return zero, &clienterr.TransportError{
			Host: hostOf(rawURL),
			Op:   "read",
			Type: httpclient.ErrorTypeUnknown,
			Err:  fmt.Errorf("body exceeds %d bytes", c.maxBody),
		}
	}

	// Only an unchallenged first response can still be non-2xx here.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &clienterr.StatusError{Host: hostOf(rawURL), StatusCode: resp.StatusCode}
	}

	env, err := decode.Union[T](body)
	if err != nil {
		return zero, err
	}

	c.logger.Debug().
		Str("function", function).
		Stringer("shape", env.Matched()).
		Int("bytes", len(body)).
		Dur("took", time.Since(start)).
		Msg("mpk call done")

	return env.Result()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
