package embedded

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/samber/lo"
)

type client struct {
	srv   *Server
	creds driver.Credentials
}

func (c *client) Database(ctx context.Context, name string) (driver.Database, error) {
	if err := c.srv.authenticate(ctx, c.creds); err != nil {
		return nil, err
	}
	var exists bool
	if err := c.srv.kv.Tx(true, func(tx kv.Tx) error {
		var err error
		exists, err = getJSON(ctx, tx, databaseKey(name), &databaseRecord{})
		return err
	}); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New(errors.Forbidden, "forbidden")
	}
	return &database{srv: c.srv, name: name, user: c.creds.Username}, nil
}

func (c *client) DatabaseExists(ctx context.Context, name string) (bool, error) {
	if err := c.srv.authenticate(ctx, c.creds); err != nil {
		return false, err
	}
	var exists bool
	err := c.srv.kv.Tx(true, func(tx kv.Tx) error {
		var err error
		exists, err = getJSON(ctx, tx, databaseKey(name), &databaseRecord{})
		return err
	})
	return exists, err
}

func (c *client) Databases(ctx context.Context) ([]string, error) {
	if err := c.srv.authenticate(ctx, c.creds); err != nil {
		return nil, err
	}
	var names []string
	err := c.srv.kv.Tx(true, func(tx kv.Tx) error {
		return scan(tx, databasesPrefix(), func(key, value []byte) error {
			names = append(names, strings.TrimPrefix(string(key), string(databasesPrefix())))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if c.creds.Username == driver.RootUser {
		return names, nil
	}
	return lo.Filter(names, func(name string, _ int) bool {
		grant, err := c.srv.grant(ctx, c.creds.Username, name)
		return err == nil && grant != GrantNone
	}), nil
}

func (c *client) CreateDatabase(ctx context.Context, name string, opts *driver.CreateDatabaseOptions) (driver.Database, error) {
	if err := c.srv.authenticateRoot(ctx, c.creds); err != nil {
		return nil, err
	}
	if err := validName("database", name); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &driver.CreateDatabaseOptions{}
	}
	var users []userRecord
	for _, u := range opts.Users {
		if u.Username == "" {
			return nil, errors.New(errors.Validation, "user name missing")
		}
		hash, err := hashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		users = append(users, userRecord{
			User:         u.Username,
			PasswordHash: hash,
			Active:       u.Active == nil || *u.Active,
			Extra:        u.Extra,
		})
	}
	err := c.srv.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, databaseKey(name), &databaseRecord{})
		if err != nil {
			return err
		}
		if exists {
			return errors.New(errors.Duplicate, "duplicate database name")
		}
		if err := setJSON(ctx, tx, databaseKey(name), databaseRecord{Name: name, Created: time.Now()}); err != nil {
			return err
		}
		for _, u := range users {
			exists, err := getJSON(ctx, tx, userKey(u.User), &userRecord{})
			if err != nil {
				return err
			}
			if !exists {
				if err := setJSON(ctx, tx, userKey(u.User), u); err != nil {
					return err
				}
			}
			if err := setJSON(ctx, tx, grantKey(u.User, name), grantRecord{Grant: GrantReadWrite}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.srv.logger.Debug(ctx, "created database", map[string]any{
		"database": name,
		"users":    lo.Map(users, func(u userRecord, _ int) string { return u.User }),
	})
	return &database{srv: c.srv, name: name, user: c.creds.Username}, nil
}

func (c *client) DropDatabase(ctx context.Context, name string) error {
	if err := c.srv.authenticateRoot(ctx, c.creds); err != nil {
		return err
	}
	if name == driver.SystemDatabase {
		return errors.New(errors.Forbidden, "cannot drop %s", driver.SystemDatabase)
	}
	err := c.srv.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, databaseKey(name), &databaseRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "database not found")
		}
		var grants [][]byte
		if err := scan(tx, usersPrefix(), func(key, value []byte) error {
			user := strings.TrimPrefix(string(key), string(usersPrefix()))
			grants = append(grants, grantKey(user, name))
			return nil
		}); err != nil {
			return err
		}
		for _, key := range grants {
			if err := tx.Delete(ctx, key); err != nil {
				return errors.Wrap(err, errors.Internal, "")
			}
		}
		return tx.Delete(ctx, databaseKey(name))
	})
	if err != nil {
		return err
	}
	if err := c.srv.kv.DropPrefix(ctx, databasePrefix(name)); err != nil {
		return errors.Wrap(err, errors.Internal, "failed to drop database %s", name)
	}
	c.srv.logger.Debug(ctx, "dropped database", map[string]any{"database": name})
	return nil
}

func (c *client) Cluster(ctx context.Context) (driver.ClusterHealth, error) {
	if err := c.srv.authenticate(ctx, c.creds); err != nil {
		return driver.ClusterHealth{}, err
	}
	if !c.srv.cfg.Clustered {
		return driver.ClusterHealth{}, errors.New(errors.Validation, "cluster expected, found single server")
	}
	return driver.ClusterHealth{
		ID: c.srv.id,
		Servers: lo.Times(3, func(i int) string {
			return fmt.Sprintf("DBServer%04d", i+1)
		}),
	}, nil
}

func (c *client) Route(ctx context.Context, method, path string, body any, result any) error {
	if err := c.srv.authenticateRoot(ctx, c.creds); err != nil {
		return err
	}
	return c.srv.serve(ctx, method, path, body, result)
}
