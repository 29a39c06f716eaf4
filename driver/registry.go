package driver

import (
	"context"
	"net/url"

	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/internal/safe"
)

// Config locates a server and the credential to use against it
type Config struct {
	URL         string      `json:"url" validate:"required"`
	Credentials Credentials `json:"credentials"`
}

// Opener opens a client for a url scheme
type Opener func(ctx context.Context, cfg Config) (Client, error)

var registeredOpeners = safe.NewMap[Opener](nil)

// Register registers an opener for a url scheme
func Register(scheme string, opener Opener) {
	registeredOpeners.Set(scheme, opener)
}

// Schemes returns the registered url schemes
func Schemes() []string {
	return registeredOpeners.Keys()
}

// Open opens a client with the opener registered for the url's scheme
func Open(ctx context.Context, cfg Config) (Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid server url %q", cfg.URL)
	}
	opener, ok := registeredOpeners.Load(u.Scheme)
	if !ok {
		return nil, errors.New(errors.Validation, "no driver registered for scheme %q", u.Scheme)
	}
	return opener(ctx, cfg)
}
