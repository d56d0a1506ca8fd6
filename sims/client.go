// Package sims is a client for the SIMS passenger information API, served
// by several equivalent mirrors that are all queried for every call.
package sims

import (
	"context"
	"net/url"

	"github.com/kroma-labs/transit-go/endpoint"
	"github.com/kroma-labs/transit-go/fanout"
)

// DefaultHosts returns the known mirrors in dispatch order.
func DefaultHosts() []string {
	return []string{
		"https://api.dla.sims.pl",
		"https://api.dlugoleka.sims.pl",
		"https://api.dlugoleka.mp.sims.pl",
	}
}

// Config lists the mirrors to query.
type Config struct {
	Hosts []string
}

// DefaultConfig returns a Config with DefaultHosts.
func DefaultConfig() Config {
	return Config{Hosts: DefaultHosts()}
}

// Validate checks every mirror URL.
func (c Config) Validate() error {
	return endpoint.New(c.Hosts, "").Validate()
}

// Client queries every mirror for each resource. Results of all mirrors are
// concatenated, so the same record may appear once per healthy mirror.
type Client struct {
	hosts   []string
	fetcher *fanout.Fetcher
}

// New returns a Client. An empty host list selects DefaultHosts.
func New(cfg Config, fetcher *fanout.Fetcher) *Client {
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		hosts = DefaultHosts()
	}
	return &Client{hosts: hosts, fetcher: fetcher}
}

// Vehicles returns the last report of every vehicle.
func (c *Client) Vehicles(ctx context.Context) fanout.Outcome[Vehicle] {
	return fanout.Fetch[Vehicle](ctx, c.fetcher, c.descriptor("vehicles"), nil)
}

// BusStops returns every stop.
func (c *Client) BusStops(ctx context.Context) fanout.Outcome[BusStop] {
	return fanout.Fetch[BusStop](ctx, c.fetcher, c.descriptor("timetables/busStops"), nil)
}

// Timetable returns the departures from the stop with code.
func (c *Client) Timetable(ctx context.Context, code string) fanout.Outcome[Timetable] {
	desc := c.descriptor("timetables/busStops/" + url.PathEscape(code))
	return fanout.Fetch[Timetable](ctx, c.fetcher, desc, nil)
}

func (c *Client) descriptor(path string) endpoint.Descriptor {
	return endpoint.New(c.hosts, path)
}
