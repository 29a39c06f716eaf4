package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/util"
	"github.com/samber/lo"
)

// GeoIndexSpec describes a geo index
type GeoIndexSpec struct {
	Collection string   `json:"collection" validate:"required"`
	Fields     []string `json:"fields" validate:"required,min=1,max=2"`
	GeoJSON    bool     `json:"geoJson"`
}

// EnsureGeoIndex adds a geo index to an existing collection. An equivalent index is returned instead of duplicated.
func EnsureGeoIndex(ctx context.Context, db driver.Database, spec GeoIndexSpec) (driver.Index, error) {
	if err := util.ValidateStruct(spec); err != nil {
		return driver.Index{}, errors.Wrap(err, errors.Validation, "")
	}
	exists, err := db.CollectionExists(ctx, spec.Collection)
	if err != nil {
		return driver.Index{}, errors.Wrap(err, errors.Unknown, "geoindex on %q", spec.Collection)
	}
	if !exists {
		return driver.Index{}, errors.New(errors.NotFound, "Can't add a geoindex to a collection that doesn't exist")
	}
	col, err := db.Collection(ctx, spec.Collection)
	if err != nil {
		return driver.Index{}, errors.Wrap(err, errors.Unknown, "geoindex on %q", spec.Collection)
	}
	indexes, err := col.Indexes(ctx)
	if err != nil {
		return driver.Index{}, errors.Wrap(err, errors.Unknown, "failed to list indexes of %q", spec.Collection)
	}
	if existing, ok := lo.Find(indexes, func(idx driver.Index) bool {
		return idx.IsGeo(spec.Fields, spec.GeoJSON)
	}); ok {
		return existing, nil
	}
	idx, _, err := col.EnsureGeoIndex(ctx, spec.Fields, spec.GeoJSON)
	if err != nil {
		return driver.Index{}, errors.Wrap(err, errors.Unknown, "Failed to create geo index")
	}
	return idx, nil
}

// MigrateGeoIndex applies a geoindex descriptor inside the descriptor's database using the administrator session
func MigrateGeoIndex(ctx context.Context, admin driver.Client, d Descriptor) (driver.Index, error) {
	db, err := admin.Database(ctx, d.Database())
	if err != nil {
		return driver.Index{}, errors.Wrap(err, errors.Unknown, "%s: %s", d.Type, d.Database())
	}
	spec, err := d.GeoIndex()
	if err != nil {
		return driver.Index{}, err
	}
	idx, err := EnsureGeoIndex(ctx, db, spec)
	return idx, errors.Wrap(err, errors.Unknown, "%s", d.Type)
}
