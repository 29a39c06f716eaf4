package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/driver/embedded"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/segmentio/ksuid"
)

// Server is an embedded server registered under a unique host
type Server struct {
	*embedded.Server
	Host         string
	URL          string
	RootPassword string
}

// Root returns the administrator credential of the server
func (s Server) Root() driver.Credentials {
	return driver.Credentials{Username: driver.RootUser, Password: s.RootPassword}
}

// Option configures a test server
type Option func(cfg *embedded.Config)

// Clustered makes the test server report a cluster topology
func Clustered() Option {
	return func(cfg *embedded.Config) {
		cfg.Clustered = true
	}
}

// StoragePath keeps the server's data on disk instead of in memory
func StoragePath(dir string) Option {
	return func(cfg *embedded.Config) {
		cfg.Params = map[string]any{"storage_path": dir}
	}
}

// TestServer runs fn against a fresh in-memory server and tears it down afterwards
func TestServer(fn func(ctx context.Context, srv Server), opts ...Option) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cfg := embedded.Config{
		Provider:     "badger",
		Params:       map[string]any{"storage_path": ""},
		RootPassword: gofakeit.Password(true, true, true, false, false, 16),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := embedded.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close(ctx)
	host := strings.ToLower(ksuid.New().String())
	embedded.Register(host, srv)
	defer embedded.Deregister(host)
	fn(ctx, Server{
		Server:       srv,
		Host:         host,
		URL:          fmt.Sprintf("%s://%s", embedded.Scheme, host),
		RootPassword: cfg.RootPassword,
	})
	return nil
}

// DBName returns a unique database name
func DBName() string {
	return "db_" + strings.ToLower(ksuid.New().String())
}

// NewUser returns a random credential
func NewUser() driver.Credentials {
	return driver.Credentials{
		Username: strings.ToLower(gofakeit.Username()) + "_" + strings.ToLower(ksuid.New().String()[:8]),
		Password: gofakeit.Password(true, true, true, false, false, 16),
	}
}

// NewPlaceDoc returns a random document with a location
func NewPlaceDoc() map[string]any {
	return map[string]any{
		"name":      gofakeit.City(),
		"country":   gofakeit.Country(),
		"latitude":  gofakeit.Latitude(),
		"longitude": gofakeit.Longitude(),
		"tags":      []string{gofakeit.Word(), gofakeit.Word()},
	}
}
