package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/util"
)

// MigrateDatabase creates a database together with its users and returns accessors
// bound to the first user's session. Without users the accessors use the administrator's session.
func MigrateDatabase(ctx context.Context, admin driver.Client, url string, d Descriptor, opts AccessorOptions) (*Accessors, error) {
	name := d.DatabaseName
	_, err := admin.CreateDatabase(ctx, name, &driver.CreateDatabaseOptions{Users: d.Users})
	if err != nil && !errors.Is(err, errors.Duplicate) {
		return nil, errors.Wrap(err, errors.Unknown, "%s", name)
	}
	client := admin
	if len(d.Users) > 0 {
		user := d.Users[0]
		client, err = driver.Open(ctx, driver.Config{
			URL:         url,
			Credentials: driver.Credentials{Username: user.Username, Password: user.Password},
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.Unknown, "%s", name)
		}
	}
	db, err := client.Database(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "%s", name)
	}
	return DatabaseAccessors(db, admin, opts), nil
}

// MakeDatabaseOptions describe a database with a dedicated user and a set of collections
type MakeDatabaseOptions struct {
	Name                string   `json:"name" validate:"required"`
	User                string   `json:"user" validate:"required"`
	Password            string   `json:"password"`
	DocumentCollections []string `json:"documentCollections"`
	EdgeCollections     []string `json:"edgeCollections"`
}

// MakeDatabase creates a database, its user and its collections in one call and returns accessors
// bound to the user's session
func MakeDatabase(ctx context.Context, admin driver.Client, url string, opts MakeDatabaseOptions, accessorOpts AccessorOptions) (*Accessors, error) {
	if err := util.ValidateStruct(opts); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "")
	}
	_, err := admin.CreateDatabase(ctx, opts.Name, nil)
	if err != nil && !errors.Is(err, errors.Duplicate) {
		return nil, errors.Wrap(err, errors.Unknown, "Tried to create database called %q", opts.Name)
	}
	if opts.User != driver.RootUser {
		creds := driver.Credentials{Username: opts.User, Password: opts.Password}
		if _, err := CreateUser(ctx, admin, creds); err != nil {
			return nil, errors.Wrap(err, errors.Unknown, "Tried to grant %q access to %q", opts.User, opts.Name)
		}
		if _, err := GrantAccess(ctx, admin, opts.User, opts.Name, GrantReadWrite); err != nil {
			return nil, errors.Wrap(err, errors.Unknown, "Tried to grant %q access to %q", opts.User, opts.Name)
		}
	}
	rootDB, err := admin.Database(ctx, opts.Name)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "%s", opts.Name)
	}
	if _, err := EnsureCollections(ctx, rootDB, opts.DocumentCollections, driver.CollectionTypeDocument); err != nil {
		return nil, err
	}
	if _, err := EnsureCollections(ctx, rootDB, opts.EdgeCollections, driver.CollectionTypeEdge); err != nil {
		return nil, err
	}
	db, err := ConnectTo(ctx, ConnectOptions{
		As:           driver.Credentials{Username: opts.User, Password: opts.Password},
		DatabaseName: opts.Name,
		URL:          url,
	})
	if err != nil {
		return nil, err
	}
	accessors := DatabaseAccessors(db, admin, accessorOpts)
	// rebind the accessors to the user's session
	for _, names := range [][]string{opts.DocumentCollections, opts.EdgeCollections} {
		collections, err := EnsureCollections(ctx, db, names, "")
		if err != nil {
			return nil, err
		}
		accessors.merge(collections)
	}
	return accessors, nil
}
