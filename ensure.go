package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/util"
	"github.com/samber/lo"
)

// Ensure connects to the configured database, creating it when a root password is supplied,
// applies every descriptor in order and returns accessors bound to the connection.
// Applying the same config twice is a no-op the second time.
func Ensure(ctx context.Context, cfg Config) (*Accessors, error) {
	cfg.setDefaults()
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid config")
	}
	descriptors, err := prepare(ctx, cfg.Options, cfg.Lenient, cfg.Logger)
	if err != nil {
		return nil, err
	}
	var as driver.Credentials
	if user, ok := lo.Find(descriptors, func(d Descriptor) bool { return d.Type == UserDescriptor }); ok {
		as = driver.Credentials{Username: user.Username, Password: user.Password}
	}
	conn, err := Connect(ctx, ConnectOptions{
		As:           as,
		DatabaseName: cfg.Name,
		RootPassword: cfg.RootPassword,
		URL:          cfg.URL,
	})
	if err != nil {
		return nil, err
	}
	if !conn.OK() {
		return nil, errors.New(conn.Kind, "%s", conn.Message)
	}
	var admin driver.Client
	if cfg.RootPassword != "" {
		if as.IsZero() {
			admin = conn.Client
		} else {
			admin, err = driver.Open(ctx, driver.Config{
				URL:         cfg.URL,
				Credentials: driver.Credentials{Username: driver.RootUser, Password: cfg.RootPassword},
			})
			if err != nil {
				return nil, errors.Wrap(err, errors.Unknown, "failed to open administrator session")
			}
		}
	}
	topology := ProbeTopology(ctx, lo.Ternary(admin != nil, admin, conn.Client), cfg.Logger)
	cfg.Logger.Debug(ctx, "connected", map[string]any{
		"database":  cfg.Name,
		"clustered": topology.Clustered,
		"admin":     admin != nil,
	})
	accessors := DatabaseAccessors(conn.Connection, admin, AccessorOptions{TruncateConcurrency: cfg.TruncateConcurrency})
	r := newRunner(cfg.Logger, cfg.Lenient, topology, accessors)
	r.database = func(ctx context.Context, d Descriptor) (driver.Database, error) {
		return conn.Connection, nil
	}
	r.handlers[UserDescriptor] = func(ctx context.Context, d Descriptor) error {
		return nil
	}
	return r.run(ctx, descriptors)
}
