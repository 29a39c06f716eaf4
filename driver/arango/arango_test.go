package arango_test

import (
	"context"
	"os"
	"testing"

	"github.com/autom8ter/provision/driver"
	_ "github.com/autom8ter/provision/driver/arango"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test runs against a live server when PROVISION_ARANGO_URL and PROVISION_ROOT_PASSWORD are set
func Test(t *testing.T) {
	url := os.Getenv("PROVISION_ARANGO_URL")
	if url == "" {
		t.Skip("PROVISION_ARANGO_URL is not set")
	}
	ctx := context.Background()
	root, err := driver.Open(ctx, driver.Config{
		URL:         url,
		Credentials: driver.Credentials{Username: driver.RootUser, Password: os.Getenv("PROVISION_ROOT_PASSWORD")},
	})
	require.NoError(t, err)
	name := testutil.DBName()
	user := testutil.NewUser()
	_, err = root.CreateDatabase(ctx, name, &driver.CreateDatabaseOptions{
		Users: []driver.DatabaseUser{{Username: user.Username, Password: user.Password}},
	})
	require.NoError(t, err)
	defer root.DropDatabase(ctx, name)
	t.Run("wrong password", func(t *testing.T) {
		client, err := driver.Open(ctx, driver.Config{URL: url, Credentials: driver.Credentials{Username: user.Username, Password: "nope"}})
		require.NoError(t, err)
		_, err = client.Database(ctx, name)
		assert.True(t, errors.Is(err, errors.WrongCredentials))
	})
	t.Run("collection", func(t *testing.T) {
		client, err := driver.Open(ctx, driver.Config{URL: url, Credentials: user})
		require.NoError(t, err)
		db, err := client.Database(ctx, name)
		require.NoError(t, err)
		col, err := db.CreateCollection(ctx, "places", nil)
		require.NoError(t, err)
		_, err = col.Save(ctx, testutil.NewPlaceDoc())
		assert.NoError(t, err)
		_, err = db.CreateCollection(ctx, "places", nil)
		assert.True(t, errors.Is(err, errors.Duplicate))
	})
	t.Run("unreachable", func(t *testing.T) {
		client, err := driver.Open(ctx, driver.Config{URL: "http://provision.invalid:8529", Credentials: user})
		require.NoError(t, err)
		_, err = client.Database(ctx, name)
		assert.True(t, errors.Is(err, errors.Unreachable))
	})
}
