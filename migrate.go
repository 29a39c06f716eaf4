package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/util"
)

// Tools applies descriptors across databases with an administrator session
type Tools struct {
	cfg ToolsConfig
}

// NewTools validates the config and returns Tools
func NewTools(cfg ToolsConfig) (*Tools, error) {
	cfg.setDefaults()
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid config")
	}
	return &Tools{cfg: cfg}, nil
}

// Migrate applies descriptors in order. Each descriptor acts in its databaseName, _system by default.
// The returned accessors are bound to the last database descriptor applied.
func (t *Tools) Migrate(ctx context.Context, descriptors []Descriptor) (*Accessors, error) {
	descriptors, err := prepare(ctx, descriptors, t.cfg.Lenient, t.cfg.Logger)
	if err != nil {
		return nil, err
	}
	admin, err := driver.Open(ctx, driver.Config{
		URL:         t.cfg.URL,
		Credentials: driver.Credentials{Username: driver.RootUser, Password: t.cfg.RootPassword},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to open administrator session")
	}
	if _, err := admin.Database(ctx, driver.SystemDatabase); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to log in as %s", driver.RootUser)
	}
	opts := AccessorOptions{TruncateConcurrency: t.cfg.TruncateConcurrency}
	r := newRunner(t.cfg.Logger, t.cfg.Lenient, ProbeTopology(ctx, admin, t.cfg.Logger), DatabaseAccessors(nil, admin, opts))
	databases := map[string]driver.Database{}
	r.database = func(ctx context.Context, d Descriptor) (driver.Database, error) {
		name := d.Database()
		if db, ok := databases[name]; ok {
			return db, nil
		}
		db, err := admin.Database(ctx, name)
		if err != nil {
			return nil, errors.Wrap(err, errors.Unknown, "%s: %s", d.Type, name)
		}
		databases[name] = db
		return db, nil
	}
	r.handlers[DatabaseDescriptor] = func(ctx context.Context, d Descriptor) error {
		accessors, err := MigrateDatabase(ctx, admin, t.cfg.URL, d, opts)
		if err != nil {
			return err
		}
		r.accessors.rebind(accessors.Database())
		return nil
	}
	r.handlers[GeoIndexDescriptor] = func(ctx context.Context, d Descriptor) error {
		_, err := MigrateGeoIndex(ctx, admin, d)
		return err
	}
	r.handlers[UserDescriptor] = func(ctx context.Context, d Descriptor) error {
		if _, err := CreateUser(ctx, admin, driver.Credentials{Username: d.Username, Password: d.Password}); err != nil {
			return err
		}
		_, err := GrantAccess(ctx, admin, d.Username, d.Database(), d.Grant)
		return err
	}
	return r.run(ctx, descriptors)
}
