package embedded_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userDatabase creates a database with a user holding the given grant
func userDatabase(t *testing.T, ctx context.Context, srv testutil.Server, grant string) (admin driver.Database, db driver.Database) {
	root := rootClient(t, ctx, srv)
	name := testutil.DBName()
	user := testutil.NewUser()
	_, err := root.CreateDatabase(ctx, name, &driver.CreateDatabaseOptions{
		Users: []driver.DatabaseUser{{Username: user.Username, Password: user.Password}},
	})
	require.NoError(t, err)
	if grant != "rw" {
		require.NoError(t, root.Route(ctx, http.MethodPut, "/_api/user/"+user.Username+"/database/"+name, map[string]any{"grant": grant}, nil))
	}
	admin, err = root.Database(ctx, name)
	require.NoError(t, err)
	client, err := driver.Open(ctx, driver.Config{URL: srv.URL, Credentials: user})
	require.NoError(t, err)
	db, err = client.Database(ctx, name)
	require.NoError(t, err)
	return admin, db
}

func TestCollections(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		_, db := userDatabase(t, ctx, srv, "rw")
		t.Run("create document collection", func(t *testing.T) {
			col, err := db.CreateCollection(ctx, "places", nil)
			require.NoError(t, err)
			assert.Equal(t, driver.CollectionTypeDocument, col.Type())
			exists, err := db.CollectionExists(ctx, "places")
			assert.NoError(t, err)
			assert.True(t, exists)
		})
		t.Run("create edge collection", func(t *testing.T) {
			col, err := db.CreateCollection(ctx, "likes", &driver.CollectionOptions{Type: driver.CollectionTypeEdge})
			require.NoError(t, err)
			assert.Equal(t, driver.CollectionTypeEdge, col.Type())
			_, err = col.Save(ctx, map[string]any{"weight": 1})
			assert.True(t, errors.Is(err, errors.Validation))
			_, err = col.Save(ctx, map[string]any{"_from": "places/a", "_to": "places/b"})
			assert.NoError(t, err)
			indexes, err := col.Indexes(ctx)
			assert.NoError(t, err)
			assert.Len(t, indexes, 2)
		})
		t.Run("duplicate", func(t *testing.T) {
			_, err := db.CreateCollection(ctx, "places", nil)
			assert.True(t, errors.Is(err, errors.Duplicate))
		})
		t.Run("list", func(t *testing.T) {
			cols, err := db.Collections(ctx)
			assert.NoError(t, err)
			names := lo.Map(cols, func(c driver.Collection, _ int) string { return c.Name() })
			assert.ElementsMatch(t, []string{"places", "likes"}, names)
		})
		t.Run("missing", func(t *testing.T) {
			_, err := db.Collection(ctx, "nope")
			assert.True(t, errors.Is(err, errors.NotFound))
		})
		t.Run("save and query", func(t *testing.T) {
			col, err := db.Collection(ctx, "places")
			require.NoError(t, err)
			doc := testutil.NewPlaceDoc()
			doc["_key"] = "home"
			meta, err := col.Save(ctx, doc)
			require.NoError(t, err)
			assert.Equal(t, "home", meta.Key)
			assert.Equal(t, "places/home", meta.ID)
			_, err = col.Save(ctx, doc)
			assert.True(t, errors.Is(err, errors.Duplicate))
			cursor, err := db.Query(ctx, `collection("places").filter(p => p._key === key)`, map[string]any{"key": "home"}, &driver.QueryOptions{Count: true})
			require.NoError(t, err)
			assert.EqualValues(t, 1, cursor.Count())
			rows, err := driver.ReadAll[map[string]any](ctx, cursor)
			require.NoError(t, err)
			assert.Equal(t, doc["name"], rows[0]["name"])
		})
		t.Run("import", func(t *testing.T) {
			col, err := db.Collection(ctx, "places")
			require.NoError(t, err)
			stats, err := col.Import(ctx, []any{
				map[string]any{"_key": "home", "visited": true},
				map[string]any{"_key": "work"},
				nil,
				"not a document",
			}, &driver.ImportOptions{OnDuplicate: driver.OnDuplicateUpdate})
			require.NoError(t, err)
			assert.EqualValues(t, 1, stats.Created)
			assert.EqualValues(t, 1, stats.Updated)
			assert.EqualValues(t, 1, stats.Empty)
			assert.EqualValues(t, 1, stats.Errors)
			cursor, err := db.Query(ctx, `collection("places").filter(p => p._key === "home").map(p => p.visited)`, nil, nil)
			require.NoError(t, err)
			rows, err := driver.ReadAll[bool](ctx, cursor)
			require.NoError(t, err)
			assert.Equal(t, []bool{true}, rows)
			_, err = col.Import(ctx, []any{map[string]any{"_key": "work"}}, &driver.ImportOptions{Complete: true})
			assert.True(t, errors.Is(err, errors.Duplicate))
		})
		t.Run("truncate", func(t *testing.T) {
			col, err := db.Collection(ctx, "places")
			require.NoError(t, err)
			assert.NoError(t, col.Truncate(ctx))
			cursor, err := db.Query(ctx, `collection("places").length`, nil, nil)
			require.NoError(t, err)
			rows, err := driver.ReadAll[int](ctx, cursor)
			require.NoError(t, err)
			assert.Equal(t, []int{0}, rows)
		})
		t.Run("properties", func(t *testing.T) {
			col, err := db.Collection(ctx, "places")
			require.NoError(t, err)
			assert.NoError(t, col.SetProperties(ctx, driver.SetCollectionPropertiesOptions{WaitForSync: lo.ToPtr(true)}))
			props, err := col.Properties(ctx)
			assert.NoError(t, err)
			assert.True(t, props.WaitForSync)
			assert.Zero(t, props.ReplicationFactor)
			err = col.SetProperties(ctx, driver.SetCollectionPropertiesOptions{ReplicationFactor: 2})
			assert.True(t, errors.Is(err, errors.Validation))
		})
		t.Run("schema", func(t *testing.T) {
			col, err := db.CreateCollection(ctx, "people", &driver.CollectionOptions{
				Schema: &driver.CollectionSchema{
					Rule: map[string]any{
						"type":                 "object",
						"properties":           map[string]any{"name": map[string]any{"type": "string"}},
						"required":             []any{"name"},
						"additionalProperties": false,
					},
					Level:   "moderate",
					Message: "people need a name",
				},
			})
			require.NoError(t, err)
			_, err = col.Save(ctx, map[string]any{"age": 3})
			assert.True(t, errors.Is(err, errors.Validation))
			assert.Contains(t, err.Error(), "people need a name")
			_, err = col.Save(ctx, map[string]any{"_key": "bob", "name": "bob"})
			assert.NoError(t, err)
		})
		t.Run("geo index is idempotent", func(t *testing.T) {
			col, err := db.Collection(ctx, "places")
			require.NoError(t, err)
			first, created, err := col.EnsureGeoIndex(ctx, []string{"latitude", "longitude"}, false)
			require.NoError(t, err)
			assert.True(t, created)
			second, created, err := col.EnsureGeoIndex(ctx, []string{"latitude", "longitude"}, false)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, second.ID)
			indexes, err := col.Indexes(ctx)
			assert.NoError(t, err)
			assert.Len(t, lo.Filter(indexes, func(i driver.Index, _ int) bool { return i.Type == driver.GeoIndex }), 1)
		})
	}))
}

func TestClusteredCollections(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		_, db := userDatabase(t, ctx, srv, "rw")
		t.Run("write concern above replication factor", func(t *testing.T) {
			_, err := db.CreateCollection(ctx, "bad", &driver.CollectionOptions{WriteConcern: 3, ReplicationFactor: 2})
			assert.True(t, errors.Is(err, errors.BadWriteConcern))
		})
		t.Run("update replication", func(t *testing.T) {
			col, err := db.CreateCollection(ctx, "good", &driver.CollectionOptions{ReplicationFactor: 2})
			require.NoError(t, err)
			props, err := col.Properties(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, props.ReplicationFactor)
			assert.Equal(t, 1, props.WriteConcern)
			assert.NoError(t, col.SetProperties(ctx, driver.SetCollectionPropertiesOptions{ReplicationFactor: 3, WriteConcern: 2}))
			err = col.SetProperties(ctx, driver.SetCollectionPropertiesOptions{WriteConcern: 4})
			assert.True(t, errors.Is(err, errors.BadWriteConcern))
			assert.Contains(t, err.Error(), "bad value for writeConcern")
		})
	}, testutil.Clustered()))
}

func TestGrants(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		t.Run("read only", func(t *testing.T) {
			admin, db := userDatabase(t, ctx, srv, "ro")
			_, err := admin.CreateCollection(ctx, "existing", nil)
			require.NoError(t, err)
			exists, err := db.CollectionExists(ctx, "existing")
			assert.NoError(t, err)
			assert.True(t, exists)
			_, err = db.CreateCollection(ctx, "places", nil)
			assert.True(t, errors.Is(err, errors.CannotCreate))
			_, err = db.CreateAnalyzer(ctx, driver.AnalyzerDefinition{Name: "csv", Type: driver.AnalyzerTypeDelimiter, Properties: driver.AnalyzerProperties{Delimiter: ","}})
			assert.True(t, errors.Is(err, errors.InsufficientRights))
			_, err = db.CreateView(ctx, "search", nil)
			assert.True(t, errors.Is(err, errors.Forbidden))
			col, err := db.Collection(ctx, "existing")
			require.NoError(t, err)
			_, err = col.Save(ctx, map[string]any{"a": 1})
			assert.True(t, errors.Is(err, errors.Forbidden))
		})
		t.Run("none", func(t *testing.T) {
			_, db := userDatabase(t, ctx, srv, "none")
			_, err := db.CollectionExists(ctx, "places")
			assert.True(t, errors.Is(err, errors.NotAuthorized))
			_, err = db.Query(ctx, "1", nil, nil)
			assert.True(t, errors.Is(err, errors.NotAuthorized))
		})
	}))
}

func TestAnalyzersAndViews(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		_, db := userDatabase(t, ctx, srv, "rw")
		_, err := db.CreateCollection(ctx, "places", nil)
		require.NoError(t, err)
		def := driver.AnalyzerDefinition{Name: "csv", Type: driver.AnalyzerTypeDelimiter, Properties: driver.AnalyzerProperties{Delimiter: ","}}
		t.Run("create analyzer", func(t *testing.T) {
			a, err := db.CreateAnalyzer(ctx, def)
			require.NoError(t, err)
			assert.Equal(t, ",", a.Definition().Properties.Delimiter)
			_, err = db.CreateAnalyzer(ctx, def)
			assert.NoError(t, err)
			changed := def
			changed.Properties.Delimiter = ";"
			_, err = db.CreateAnalyzer(ctx, changed)
			assert.True(t, errors.Is(err, errors.Duplicate))
		})
		t.Run("unsupported analyzer", func(t *testing.T) {
			_, err := db.CreateAnalyzer(ctx, driver.AnalyzerDefinition{Name: "stem", Type: "stem"})
			assert.True(t, errors.Is(err, errors.Validation))
		})
		t.Run("create view with defaults", func(t *testing.T) {
			v, err := db.CreateView(ctx, "placeSearch", &driver.ViewProperties{
				Links: map[string]driver.ViewLink{
					"places": {Fields: map[string]driver.ViewLink{"tags": {Analyzers: []string{"csv"}}}},
				},
			})
			require.NoError(t, err)
			props, err := v.Properties(ctx)
			require.NoError(t, err)
			link := props.Links["places"]
			assert.Equal(t, []string{"identity"}, link.Analyzers)
			assert.False(t, *link.IncludeAllFields)
			assert.Equal(t, "none", link.StoreValues)
			assert.False(t, *link.TrackListPositions)
			assert.Equal(t, []string{"csv"}, link.Fields["tags"].Analyzers)
			_, err = db.CreateView(ctx, "placeSearch", nil)
			assert.True(t, errors.Is(err, errors.Duplicate))
		})
		t.Run("view link to missing collection", func(t *testing.T) {
			_, err := db.CreateView(ctx, "broken", &driver.ViewProperties{Links: map[string]driver.ViewLink{"nope": {}}})
			assert.True(t, errors.Is(err, errors.NotFound))
		})
		t.Run("remove analyzer in use", func(t *testing.T) {
			a, err := db.Analyzer(ctx, "csv")
			require.NoError(t, err)
			assert.True(t, errors.Is(a.Remove(ctx, false), errors.Validation))
			assert.NoError(t, a.Remove(ctx, true))
			_, err = db.Analyzer(ctx, "csv")
			assert.True(t, errors.Is(err, errors.NotFound))
		})
	}))
}

func TestQuery(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		_, db := userDatabase(t, ctx, srv, "rw")
		t.Run("current user", func(t *testing.T) {
			cursor, err := db.Query(ctx, "currentUser()", nil, &driver.QueryOptions{Count: true})
			require.NoError(t, err)
			rows, err := driver.ReadAll[string](ctx, cursor)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.NotEqual(t, driver.RootUser, rows[0])
		})
		t.Run("bind vars", func(t *testing.T) {
			cursor, err := db.Query(ctx, "[a, b, params.a + params.b]", map[string]any{"a": 1, "b": 2}, &driver.QueryOptions{Count: true})
			require.NoError(t, err)
			assert.EqualValues(t, 3, cursor.Count())
			rows, err := driver.ReadAll[int](ctx, cursor)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3}, rows)
		})
		t.Run("missing collection", func(t *testing.T) {
			_, err := db.Query(ctx, `collection("nope")`, nil, nil)
			assert.True(t, errors.Is(err, errors.NotFound))
		})
		t.Run("syntax error", func(t *testing.T) {
			_, err := db.Query(ctx, `[`, nil, nil)
			assert.True(t, errors.Is(err, errors.Validation))
		})
		t.Run("cancelled", func(t *testing.T) {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := db.Query(cctx, `while(true) {}`, nil, nil)
			assert.Error(t, err)
		})
	}))
}

func TestTransactions(t *testing.T) {
	assert.NoError(t, testutil.TestServer(func(ctx context.Context, srv testutil.Server) {
		_, db := userDatabase(t, ctx, srv, "rw")
		places, err := db.CreateCollection(ctx, "places", nil)
		require.NoError(t, err)
		_, err = db.CreateCollection(ctx, "other", nil)
		require.NoError(t, err)
		count := func() int {
			cursor, err := db.Query(ctx, `collection("places").length`, nil, nil)
			require.NoError(t, err)
			rows, err := driver.ReadAll[int](ctx, cursor)
			require.NoError(t, err)
			return rows[0]
		}
		t.Run("commit", func(t *testing.T) {
			tx, err := db.BeginTransaction(ctx, driver.TransactionCollections{Write: []string{"places"}}, nil)
			require.NoError(t, err)
			assert.NoError(t, tx.Step(ctx, func(ctx context.Context) error {
				_, err := places.Save(ctx, testutil.NewPlaceDoc())
				return err
			}))
			assert.Equal(t, 0, count())
			assert.NoError(t, tx.Commit(ctx))
			assert.Equal(t, 1, count())
			assert.Error(t, tx.Commit(ctx))
		})
		t.Run("abort", func(t *testing.T) {
			tx, err := db.BeginTransaction(ctx, driver.TransactionCollections{Write: []string{"places"}}, nil)
			require.NoError(t, err)
			assert.NoError(t, tx.Step(ctx, func(ctx context.Context) error {
				_, err := places.Save(ctx, testutil.NewPlaceDoc())
				return err
			}))
			assert.NoError(t, tx.Abort(ctx))
			assert.Equal(t, 1, count())
		})
		t.Run("undeclared write", func(t *testing.T) {
			tx, err := db.BeginTransaction(ctx, driver.TransactionCollections{Read: []string{"places"}, Write: []string{"other"}}, nil)
			require.NoError(t, err)
			defer tx.Abort(ctx)
			err = tx.Step(ctx, func(ctx context.Context) error {
				_, err := places.Save(ctx, testutil.NewPlaceDoc())
				return err
			})
			assert.True(t, errors.Is(err, errors.Validation))
		})
		t.Run("missing collection", func(t *testing.T) {
			_, err := db.BeginTransaction(ctx, driver.TransactionCollections{Write: []string{"nope"}}, nil)
			assert.True(t, errors.Is(err, errors.NotFound))
		})
	}))
}
