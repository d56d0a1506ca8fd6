package mpk

import (
	"errors"
	"net/url"
	"time"
	// Embedded zone data so Europe/Warsaw resolves on minimal images.
	_ "time/tzdata"

	"github.com/kroma-labs/transit-go/digest"
	"github.com/rs/zerolog"
)

// DateFormat is the layout of the date parameter of getPositions.
const DateFormat = "2006-01-02 15:04:05"

// DefaultMaxBodyBytes caps a response body.
const DefaultMaxBodyBytes = 16 << 20

// Config describes the MPK Wrocław mobile API.
type Config struct {
	BaseURL  string
	Path     string
	Username string
	Password string
	// Location is the zone of the date parameter of getPositions.
	Location *time.Location
	// PositionsLag moves the positions query into the past, since the upstream
	// answers empty for the current second.
	PositionsLag time.Duration
}

// DefaultConfig returns the configuration of the public mobile API.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		BaseURL:      "https://impk.mpk.wroc.pl:8088",
		Path:         "/mobile",
		Username:     "android-mpk",
		Password:     "g5crehAfUCh4Wust",
		Location:     loc,
		PositionsLag: 10 * time.Second,
	}
}

// Validate checks that the configuration can reach the API.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("mpk: base url needs scheme and host")
	}
	return c.credentials().Validate()
}

func (c Config) credentials() digest.Credentials {
	return digest.Credentials{Username: c.Username, Password: c.Password}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger of the client and its digest negotiator.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxBodyBytes caps a response body.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}
