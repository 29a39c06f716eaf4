package provision_test

import (
	"context"
	"testing"

	"github.com/autom8ter/provision"
	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/logging"
	"github.com/autom8ter/provision/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ensureConfig(srv testutil.Server, user driver.Credentials) provision.Config {
	return provision.Config{
		URL:          srv.URL,
		Name:         testutil.DBName(),
		RootPassword: srv.RootPassword,
		Logger:       logging.NewNop(),
		Options: []provision.Descriptor{
			{Type: provision.UserDescriptor, Username: user.Username, Password: user.Password},
			{Type: provision.DocumentCollectionDescriptor, Name: "places", Options: map[string]any{"waitForSync": true}},
			{Type: provision.EdgeCollectionDescriptor, Name: "routes"},
			{Type: provision.GeoIndexDescriptor, On: "places", Fields: []string{"latitude", "longitude"}},
			{Type: provision.DelimiterAnalyzerDescriptor, Name: "tags", Delimiter: ","},
			{Type: provision.SearchViewDescriptor, Name: "placeview", Options: map[string]any{
				"links": map[string]any{
					"places": map[string]any{
						"fields": map[string]any{
							"tags": map[string]any{"analyzers": []any{"tags"}},
						},
					},
				},
			}},
		},
	}
}

func TestEnsure(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		user := testutil.NewUser()
		cfg := ensureConfig(srv, user)
		t.Run("apply", func(t *testing.T) {
			accessors, err := provision.Ensure(ctx, cfg)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"places", "routes"}, lo.Keys(accessors.Collections))
			assert.Equal(t, cfg.Name, accessors.Database().Name())

			cursor, err := accessors.Query(ctx, "currentUser()", nil)
			require.NoError(t, err)
			assert.EqualValues(t, 1, cursor.Count())
			assert.Equal(t, []string{user.Username}, readAll[string](t, ctx, cursor))
		})
		t.Run("apply twice", func(t *testing.T) {
			accessors, err := provision.Ensure(ctx, cfg)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"places", "routes"}, lo.Keys(accessors.Collections))

			col := accessors.Collections["places"].Collection()
			indexes, err := col.Indexes(ctx)
			require.NoError(t, err)
			assert.Len(t, lo.Filter(indexes, func(idx driver.Index, _ int) bool { return idx.Type == driver.GeoIndex }), 1)
			props, err := col.Properties(ctx)
			require.NoError(t, err)
			assert.True(t, props.WaitForSync)
		})
		t.Run("without root password", func(t *testing.T) {
			scoped := cfg
			scoped.RootPassword = ""
			accessors, err := provision.Ensure(ctx, scoped)
			require.NoError(t, err)
			err = accessors.Drop(ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "requires root")
		})
		t.Run("drop", func(t *testing.T) {
			accessors, err := provision.Ensure(ctx, cfg)
			require.NoError(t, err)
			require.NoError(t, accessors.Drop(ctx))
			exists, err := rootClient(t, ctx, srv).DatabaseExists(ctx, cfg.Name)
			require.NoError(t, err)
			assert.False(t, exists)
		})
		t.Run("administrator only", func(t *testing.T) {
			accessors, err := provision.Ensure(ctx, provision.Config{
				URL:          srv.URL,
				Name:         testutil.DBName(),
				RootPassword: srv.RootPassword,
				Logger:       logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: provision.DocumentCollectionDescriptor, Name: "places"},
				},
			})
			require.NoError(t, err)
			cursor, err := accessors.Query(ctx, "currentUser()", nil)
			require.NoError(t, err)
			assert.Equal(t, []string{driver.RootUser}, readAll[string](t, ctx, cursor))
			assert.NoError(t, accessors.Drop(ctx))
		})
	}))
}

func TestEnsureFailures(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		t.Run("more than one user", func(t *testing.T) {
			_, err := provision.Ensure(ctx, provision.Config{
				URL:    "embedded://nowhere",
				Logger: logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: provision.UserDescriptor, Username: "a"},
					{Type: provision.UserDescriptor, Username: "b"},
				},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "more than one user")
		})
		t.Run("unknown type is rejected before connecting", func(t *testing.T) {
			_, err := provision.Ensure(ctx, provision.Config{
				URL:    "embedded://nowhere",
				Logger: logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: "documentcolection", Name: "places"},
				},
			})
			assert.True(t, errors.Is(err, errors.Validation))
		})
		t.Run("unknown type is skipped when lenient", func(t *testing.T) {
			accessors, err := provision.Ensure(ctx, provision.Config{
				URL:          srv.URL,
				Name:         testutil.DBName(),
				RootPassword: srv.RootPassword,
				Lenient:      true,
				Logger:       logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: "documentcolection", Name: "places"},
					{Type: provision.DatabaseDescriptor, DatabaseName: "other"},
					{Type: provision.DocumentCollectionDescriptor, Name: "people"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"people"}, lo.Keys(accessors.Collections))
		})
		t.Run("database descriptors need migrate", func(t *testing.T) {
			_, err := provision.Ensure(ctx, provision.Config{
				URL:          srv.URL,
				RootPassword: srv.RootPassword,
				Logger:       logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: provision.DatabaseDescriptor, DatabaseName: "other"},
				},
			})
			assert.True(t, errors.Is(err, errors.Validation))
		})
		t.Run("unreachable", func(t *testing.T) {
			_, err := provision.Ensure(ctx, provision.Config{URL: "embedded://nowhere", Logger: logging.NewNop()})
			require.Error(t, err)
			assert.Equal(t, "database server is not reachable", err.Error())
		})
		t.Run("geo index before its collection", func(t *testing.T) {
			_, err := provision.Ensure(ctx, provision.Config{
				URL:          srv.URL,
				Name:         testutil.DBName(),
				RootPassword: srv.RootPassword,
				Logger:       logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: provision.GeoIndexDescriptor, On: "places", Fields: []string{"location"}, GeoJSON: true},
					{Type: provision.DocumentCollectionDescriptor, Name: "places"},
				},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "Can't add a geoindex to a collection that doesn't exist")
		})
		t.Run("read only user stops the run", func(t *testing.T) {
			admin, db := userDatabase(t, ctx, srv, provision.GrantReadOnly)
			user := testutil.NewUser()
			_, err := provision.CreateUser(ctx, admin, user)
			require.NoError(t, err)
			_, err = provision.GrantAccess(ctx, admin, user.Username, db.Name(), provision.GrantReadOnly)
			require.NoError(t, err)
			_, err = provision.Ensure(ctx, provision.Config{
				URL:    srv.URL,
				Name:   db.Name(),
				Logger: logging.NewNop(),
				Options: []provision.Descriptor{
					{Type: provision.UserDescriptor, Username: user.Username, Password: user.Password},
					{Type: provision.DocumentCollectionDescriptor, Name: "places"},
				},
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CannotCreate))
			assert.Contains(t, err.Error(), "Check user has 'rw' not 'ro'.")
		})
	}))
}

func TestParseConfig(t *testing.T) {
	cfg, err := provision.ParseConfig([]byte(`
url: embedded://local
name: places
rootPassword: secret
lenient: true
options:
  - type: user
    username: mike
    password: test
  - type: documentcollection
    name: places
    options:
      waitForSync: true
  - type: geoindex
    on: places
    fields: [latitude, longitude]
  - type: delimiteranalyzer
    name: tags
    delimiter: ","
`))
	require.NoError(t, err)
	assert.Equal(t, "embedded://local", cfg.URL)
	assert.True(t, cfg.Lenient)
	require.Len(t, cfg.Options, 4)
	assert.Equal(t, provision.UserDescriptor, cfg.Options[0].Type)
	assert.Equal(t, true, cfg.Options[1].Options["waitForSync"])
	assert.Equal(t, []string{"latitude", "longitude"}, cfg.Options[2].Fields)
	assert.Equal(t, "places", cfg.Options[2].Target())
	assert.NoError(t, cfg.Options[2].Validate())
	assert.Equal(t, ",", cfg.Options[3].Delimiter)

	_, err = provision.ParseConfig([]byte(`options: {`))
	assert.True(t, errors.Is(err, errors.Validation))
}
