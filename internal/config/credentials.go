package config

import (
	"github.com/pkg/errors"

	"notitrade/internal/exception"
)

const redacted = "[REDACTED]"

// Credentials holds the exchange API key pair. It is built once at startup
// and never changes afterwards.
type Credentials struct {
	key    string
	secret string
}

func NewCredentials(key, secret string) Credentials {
	return Credentials{key: key, secret: secret}
}

func (c Credentials) Key() string {
	return c.key
}

func (c Credentials) Secret() string {
	return c.secret
}

func (c Credentials) Validate() error {
	if c.key == "" || c.secret == "" {
		return errors.Wrap(exception.ErrSigning, "api key or secret key is empty")
	}
	return nil
}

func (c Credentials) String() string {
	return redacted
}

func (c Credentials) GoString() string {
	return redacted
}

func (c Credentials) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
