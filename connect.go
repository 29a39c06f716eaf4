package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/samber/lo"
)

const (
	msgBadCredentials = "bad credentials"
	msgNoSuchDatabase = "no such database"
	msgUnreachable    = "database server is not reachable"
)

// ConnectOptions locate a database and the credential to log into it with
type ConnectOptions struct {
	// As is the user to log in as. When empty the administrator logs in.
	As driver.Credentials `json:"as"`
	// DatabaseName defaults to _system
	DatabaseName string `json:"databaseName"`
	// RootPassword lets a missing database and user be created on the fly
	RootPassword string `json:"rootPassword"`
	URL          string `json:"url" validate:"required"`
}

// ConnectResult holds a live database handle, or the reason there is none
type ConnectResult struct {
	Connection driver.Database
	// Client is the session the connection was opened through
	Client driver.Client
	// Message is empty on success
	Message string
	// Kind classifies the failure behind Message
	Kind errors.Kind
}

// OK reports whether the connection succeeded
func (c ConnectResult) OK() bool {
	return c.Message == ""
}

// Connect logs into a database, creating it and the user when a root password is supplied.
// Expected failures are reported in the result, anything else is returned as an error.
func Connect(ctx context.Context, opts ConnectOptions) (ConnectResult, error) {
	if opts.DatabaseName == "" {
		opts.DatabaseName = driver.SystemDatabase
	}
	if opts.As.IsZero() {
		return connectAdmin(ctx, opts)
	}
	client, err := driver.Open(ctx, driver.Config{URL: opts.URL, Credentials: opts.As})
	if err != nil {
		return connectFailure(err)
	}
	db, loginErr := client.Database(ctx, opts.DatabaseName)
	if loginErr == nil {
		return ConnectResult{Connection: db, Client: client}, nil
	}
	switch {
	case errors.Is(loginErr, errors.Forbidden):
		if opts.RootPassword == "" {
			return ConnectResult{Message: msgNoSuchDatabase, Kind: errors.Forbidden}, nil
		}
	case errors.Is(loginErr, errors.WrongCredentials) && opts.RootPassword != "":
	default:
		return connectFailure(loginErr)
	}
	admin, err := driver.Open(ctx, driver.Config{
		URL:         opts.URL,
		Credentials: driver.Credentials{Username: driver.RootUser, Password: opts.RootPassword},
	})
	if err != nil {
		return connectFailure(err)
	}
	// servers that check credentials before the database reject an unknown user as a bad login
	if errors.Is(loginErr, errors.WrongCredentials) {
		users, err := ListUsers(ctx, admin)
		if err != nil {
			return connectFailure(err)
		}
		if lo.ContainsBy(users, func(u User) bool { return u.User == opts.As.Username }) {
			return connectFailure(loginErr)
		}
	}
	_, err = admin.CreateDatabase(ctx, opts.DatabaseName, &driver.CreateDatabaseOptions{
		Users: []driver.DatabaseUser{{Username: opts.As.Username, Password: opts.As.Password}},
	})
	switch {
	case errors.Is(err, errors.Duplicate):
	case err != nil:
		return connectFailure(err)
	}
	// the database may already exist without the user
	if _, err := CreateUser(ctx, admin, opts.As); err != nil {
		return ConnectResult{}, err
	}
	if _, err := GrantAccess(ctx, admin, opts.As.Username, opts.DatabaseName, GrantReadWrite); err != nil {
		return ConnectResult{}, err
	}
	db, err = client.Database(ctx, opts.DatabaseName)
	if err != nil {
		return connectFailure(err)
	}
	return ConnectResult{Connection: db, Client: client}, nil
}

func connectAdmin(ctx context.Context, opts ConnectOptions) (ConnectResult, error) {
	client, err := driver.Open(ctx, driver.Config{
		URL:         opts.URL,
		Credentials: driver.Credentials{Username: driver.RootUser, Password: opts.RootPassword},
	})
	if err != nil {
		return connectFailure(err)
	}
	db, err := client.Database(ctx, opts.DatabaseName)
	if err == nil {
		return ConnectResult{Connection: db, Client: client}, nil
	}
	if !errors.Is(err, errors.Forbidden) {
		return connectFailure(err)
	}
	db, err = client.CreateDatabase(ctx, opts.DatabaseName, nil)
	if errors.Is(err, errors.Duplicate) {
		db, err = client.Database(ctx, opts.DatabaseName)
	}
	if err != nil {
		return connectFailure(err)
	}
	return ConnectResult{Connection: db, Client: client}, nil
}

func connectFailure(err error) (ConnectResult, error) {
	switch kind := errors.KindOf(err); kind {
	case errors.Unreachable:
		return ConnectResult{Message: msgUnreachable, Kind: kind}, nil
	case errors.WrongCredentials:
		return ConnectResult{Message: msgBadCredentials, Kind: kind}, nil
	case errors.Forbidden:
		return ConnectResult{Message: msgNoSuchDatabase, Kind: kind}, nil
	default:
		return ConnectResult{}, errors.Wrap(err, errors.Unknown, "failed to connect")
	}
}

// ConnectTo logs into an existing database and returns the handle, failing on any connect message
func ConnectTo(ctx context.Context, opts ConnectOptions) (driver.Database, error) {
	res, err := Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, errors.New(res.Kind, "%s: %s", opts.DatabaseName, res.Message)
	}
	return res.Connection, nil
}
