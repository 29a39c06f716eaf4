package provision

import (
	"context"
	"fmt"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/util"
)

// CollectionSpec describes a collection to provision
type CollectionSpec struct {
	Name string `json:"name" validate:"required"`
	// Type defaults to document
	Type    driver.CollectionType `json:"type"`
	Options map[string]any        `json:"options"`
}

// CollectionResult holds the provisioned collection, or the reason there is none
type CollectionResult struct {
	Collection driver.Collection
	Message    string
	Kind       errors.Kind
}

// OK reports whether the collection was provisioned
func (c CollectionResult) OK() bool {
	return c.Message == ""
}

// CollectionOptions decodes a descriptor's options map. Unknown keys are ignored.
func CollectionOptions(options map[string]any) (driver.CollectionOptions, error) {
	var opts driver.CollectionOptions
	if len(options) == 0 {
		return opts, nil
	}
	if err := util.Decode(options, &opts); err != nil {
		return opts, errors.Wrap(err, errors.Validation, "invalid collection options")
	}
	return opts, nil
}

// EnsureCollection creates the collection when absent and reconciles its mutable properties when present
func EnsureCollection(ctx context.Context, db driver.Database, spec CollectionSpec, topology Topology) (CollectionResult, error) {
	if err := util.ValidateStruct(spec); err != nil {
		return CollectionResult{}, errors.Wrap(err, errors.Validation, "")
	}
	if spec.Type == "" {
		spec.Type = driver.CollectionTypeDocument
	}
	opts, err := CollectionOptions(spec.Options)
	if err != nil {
		return CollectionResult{}, err
	}
	opts.Type = spec.Type
	exists, err := db.CollectionExists(ctx, spec.Name)
	if err != nil {
		if errors.Is(err, errors.NotAuthorized) {
			return CollectionResult{
				Message: fmt.Sprintf("Permission denied connecting to %q. Check user has 'rw' not 'none'.", db.Name()),
				Kind:    errors.NotAuthorized,
			}, nil
		}
		return CollectionResult{}, errors.Wrap(err, errors.Unknown, "collection %q", spec.Name)
	}
	if !exists {
		col, err := db.CreateCollection(ctx, spec.Name, &opts)
		if err != nil {
			if errors.Is(err, errors.CannotCreate) {
				return CollectionResult{
					Message: fmt.Sprintf("Missing permission to create collection %q. Check user has 'rw' not 'ro'.", spec.Name),
					Kind:    errors.CannotCreate,
				}, nil
			}
			return CollectionResult{}, errors.Wrap(err, errors.Unknown, "failed to create collection %q", spec.Name)
		}
		return CollectionResult{Collection: col}, nil
	}
	col, err := db.Collection(ctx, spec.Name)
	if err != nil {
		return CollectionResult{}, errors.Wrap(err, errors.Unknown, "collection %q", spec.Name)
	}
	return reconcileCollection(ctx, col, opts, topology)
}

func reconcileCollection(ctx context.Context, col driver.Collection, opts driver.CollectionOptions, topology Topology) (CollectionResult, error) {
	current, err := col.Properties(ctx)
	if err != nil {
		return CollectionResult{}, errors.Wrap(err, errors.Unknown, "failed to read properties of %q", col.Name())
	}
	var update driver.SetCollectionPropertiesOptions
	if opts.WaitForSync != nil && *opts.WaitForSync != current.WaitForSync {
		update.WaitForSync = opts.WaitForSync
	}
	if opts.Schema != nil && !util.JSONEqual(opts.Schema, current.Schema) {
		update.Schema = opts.Schema
	}
	if opts.WriteConcern != 0 && current.WriteConcern != 0 && opts.WriteConcern != current.WriteConcern {
		update.WriteConcern = opts.WriteConcern
	}
	if topology.Clustered && opts.ReplicationFactor != 0 && opts.ReplicationFactor != current.ReplicationFactor {
		update.ReplicationFactor = opts.ReplicationFactor
	}
	if update.IsEmpty() {
		return CollectionResult{Collection: col}, nil
	}
	if err := col.SetProperties(ctx, update); err != nil {
		if errors.Is(err, errors.BadWriteConcern) {
			ceiling := current.ReplicationFactor
			if update.ReplicationFactor != 0 {
				ceiling = update.ReplicationFactor
			}
			return CollectionResult{
				Message: fmt.Sprintf(
					"Could not set writeConcern %d on collection %q. writeConcern must not exceed the replicationFactor, which is %d.",
					opts.WriteConcern, col.Name(), ceiling,
				),
				Kind: errors.BadWriteConcern,
			}, nil
		}
		return CollectionResult{}, errors.Wrap(err, errors.Unknown, "failed to update properties of %q", col.Name())
	}
	return CollectionResult{Collection: col}, nil
}

// EnsureCollections creates any missing collections of the given type and returns accessors for all of them
func EnsureCollections(ctx context.Context, db driver.Database, names []string, typ driver.CollectionType) (map[string]CollectionAccessor, error) {
	if typ == "" {
		typ = driver.CollectionTypeDocument
	}
	existing, err := db.Collections(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to list collections of %q", db.Name())
	}
	byName := map[string]driver.Collection{}
	for _, col := range existing {
		byName[col.Name()] = col
	}
	accessors := map[string]CollectionAccessor{}
	for _, name := range names {
		col, ok := byName[name]
		if !ok {
			col, err = db.CreateCollection(ctx, name, &driver.CollectionOptions{Type: typ})
			if err != nil {
				return nil, errors.Wrap(err, errors.Unknown, "creating %s collection %q failed", typ, name)
			}
		}
		accessors[name] = NewCollectionAccessor(col)
	}
	return accessors, nil
}
