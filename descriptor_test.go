package provision_test

import (
	"testing"

	"github.com/autom8ter/provision"
	"github.com/autom8ter/provision/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptors(t *testing.T) {
	t.Run("parse json", func(t *testing.T) {
		descriptors, err := provision.ParseDescriptors([]byte(`[
			{"type": "database", "databaseName": "places", "users": [{"username": "mike", "passwd": "test"}]},
			{"type": "geoindex", "databaseName": "places", "collection": "places", "options": {"fields": ["location"], "geoJson": true}}
		]`))
		require.NoError(t, err)
		require.Len(t, descriptors, 2)
		assert.Equal(t, "test", descriptors[0].Users[0].Password)
		spec, err := descriptors[1].GeoIndex()
		require.NoError(t, err)
		assert.Equal(t, provision.GeoIndexSpec{Collection: "places", Fields: []string{"location"}, GeoJSON: true}, spec)
	})
	t.Run("parse yaml geoindex on", func(t *testing.T) {
		descriptors, err := provision.ParseDescriptors([]byte("- type: geoindex\n  on: places\n  fields: [latitude, longitude]\n"))
		require.NoError(t, err)
		require.Len(t, descriptors, 1)
		assert.Equal(t, "places", descriptors[0].On)
		assert.NoError(t, descriptors[0].Validate())
	})
	t.Run("defaults", func(t *testing.T) {
		d := provision.Descriptor{Type: provision.GeoIndexDescriptor, On: "places"}
		assert.Equal(t, "_system", d.Database())
		assert.Equal(t, "places", d.Target())
	})
	t.Run("validate", func(t *testing.T) {
		for _, d := range []provision.Descriptor{
			{Type: "collection", Name: "places"},
			{Type: provision.UserDescriptor},
			{Type: provision.DatabaseDescriptor},
			{Type: provision.DocumentCollectionDescriptor},
			{Type: provision.DelimiterAnalyzerDescriptor, Name: "tags"},
			{Type: provision.GeoIndexDescriptor, On: "places"},
			{Type: provision.GeoIndexDescriptor, Fields: []string{"location"}},
			{Type: provision.UserDescriptor, Username: "mike", Grant: "admin"},
		} {
			assert.True(t, errors.Is(d.Validate(), errors.Validation), d)
		}
		for _, d := range []provision.Descriptor{
			{Type: provision.UserDescriptor, Username: "mike"},
			{Type: provision.DatabaseDescriptor, DatabaseName: "places"},
			{Type: provision.EdgeCollectionDescriptor, Name: "routes"},
			{Type: provision.DelimiterAnalyzerDescriptor, Name: "tags", Delimiter: ";"},
			{Type: provision.SearchViewDescriptor, Name: "placeview"},
			{Type: provision.GeoIndexDescriptor, Collection: "places", Fields: []string{"latitude", "longitude"}},
		} {
			assert.NoError(t, d.Validate(), d)
		}
	})
	t.Run("collection options ignore unknown keys", func(t *testing.T) {
		opts, err := provision.CollectionOptions(map[string]any{
			"waitForSync":  "true",
			"journalSize":  1048576,
			"writeConcern": 2,
		})
		require.NoError(t, err)
		require.NotNil(t, opts.WaitForSync)
		assert.True(t, *opts.WaitForSync)
		assert.Equal(t, 2, opts.WriteConcern)
	})
}
