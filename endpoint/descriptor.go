// Package endpoint describes a single logical upstream request: the hosts it
// targets, the path, and the ordered query parameters.
//
// A Descriptor is a value. Builders return new descriptors instead of
// mutating the receiver, so one descriptor can be shared between concurrent
// fan-out legs.
package endpoint

import (
	"errors"
	"net/url"
	"slices"
	"strings"
)

// ErrNoHost is returned by Validate when a descriptor targets no host.
var ErrNoHost = errors.New("endpoint: no host configured")

// Param is a single query parameter. Duplicate keys are allowed.
type Param struct {
	Key   string
	Value string
}

// Descriptor is an immutable request description.
type Descriptor struct {
	hosts  []string
	path   string
	params []Param
}

// New returns a descriptor for path on the given hosts.
//
// Hosts are base URLs such as "https://api.dla.sims.pl". Trailing slashes on
// hosts and leading slashes on path are normalised when building URLs.
func New(hosts []string, path string, params ...Param) Descriptor {
	return Descriptor{
		hosts:  slices.Clone(hosts),
		path:   path,
		params: slices.Clone(params),
	}
}

// Hosts returns a copy of the target hosts in dispatch order.
func (d Descriptor) Hosts() []string { return slices.Clone(d.hosts) }

// Path returns the request path.
func (d Descriptor) Path() string { return d.path }

// Params returns a copy of the query parameters in insertion order.
func (d Descriptor) Params() []Param { return slices.Clone(d.params) }

// With returns a copy of d with one more query parameter appended.
func (d Descriptor) With(key, value string) Descriptor {
	params := make([]Param, 0, len(d.params)+1)
	params = append(params, d.params...)
	params = append(params, Param{Key: key, Value: value})
	return Descriptor{
		hosts:  d.hosts,
		path:   d.path,
		params: params,
	}
}

// Validate checks that the descriptor targets at least one parseable host.
func (d Descriptor) Validate() error {
	if len(d.hosts) == 0 {
		return ErrNoHost
	}
	for _, h := range d.hosts {
		u, err := url.Parse(h)
		if err != nil {
			return err
		}
		if u.Scheme == "" || u.Host == "" {
			return &url.Error{Op: "parse", URL: h, Err: errors.New("missing scheme or host")}
		}
	}
	return nil
}

// URL builds the absolute URL for host.
//
// Query parameters are encoded in insertion order. url.Values is not used
// because it sorts keys.
func (d Descriptor) URL(host string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(host, "/"))
	if d.path != "" {
		b.WriteByte('/')
		b.WriteString(strings.TrimLeft(d.path, "/"))
	}
	b.WriteString(d.Query())
	return b.String()
}

// Query returns the encoded query string including the leading '?',
// or an empty string when there are no parameters.
func (d Descriptor) Query() string {
	if len(d.params) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range d.params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
