package digest

import (
	"errors"

	"github.com/rs/zerolog"
)

const redacted = "***"

// Credentials is the username and password answered to a Digest challenge.
//
// String and MarshalZerologObject never render the password.
type Credentials struct {
	Username string
	Password string
}

// Validate reports whether the credentials can be used.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return errors.New("digest: username is required")
	}
	return nil
}

func (c Credentials) String() string {
	return c.Username + ":" + redacted
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Str("username", c.Username).Str("password", redacted)
}
