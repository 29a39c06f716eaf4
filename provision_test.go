package provision_test

import (
	"context"
	"testing"

	"github.com/autom8ter/provision"
	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/testutil"
	"github.com/stretchr/testify/require"
)

func rootClient(t *testing.T, ctx context.Context, srv testutil.Server) driver.Client {
	admin, err := driver.Open(ctx, driver.Config{URL: srv.URL, Credentials: srv.Root()})
	require.NoError(t, err)
	return admin
}

// userDatabase creates a database and a user holding grant on it, and logs the user in
func userDatabase(t *testing.T, ctx context.Context, srv testutil.Server, grant string) (driver.Client, driver.Database) {
	admin := rootClient(t, ctx, srv)
	name := testutil.DBName()
	user := testutil.NewUser()
	_, err := admin.CreateDatabase(ctx, name, nil)
	require.NoError(t, err)
	_, err = provision.CreateUser(ctx, admin, user)
	require.NoError(t, err)
	_, err = provision.GrantAccess(ctx, admin, user.Username, name, grant)
	require.NoError(t, err)
	db, err := provision.ConnectTo(ctx, provision.ConnectOptions{
		As:           user,
		DatabaseName: name,
		URL:          srv.URL,
	})
	require.NoError(t, err)
	return admin, db
}

func readAll[T any](t *testing.T, ctx context.Context, cursor driver.Cursor) []T {
	rows, err := driver.ReadAll[T](ctx, cursor)
	require.NoError(t, err)
	return rows
}
