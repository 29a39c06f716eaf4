package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/logging"
	"github.com/autom8ter/provision/util"
)

type handler func(ctx context.Context, d Descriptor) error

// runner applies descriptors in order, accumulating accessors
type runner struct {
	logger    logging.Logger
	lenient   bool
	topology  Topology
	accessors *Accessors
	// database resolves the database a descriptor acts in
	database func(ctx context.Context, d Descriptor) (driver.Database, error)
	handlers map[DescriptorType]handler
}

func newRunner(logger logging.Logger, lenient bool, topology Topology, accessors *Accessors) *runner {
	r := &runner{
		logger:    logger,
		lenient:   lenient,
		topology:  topology,
		accessors: accessors,
	}
	r.handlers = map[DescriptorType]handler{
		DocumentCollectionDescriptor: r.collection(driver.CollectionTypeDocument),
		EdgeCollectionDescriptor:     r.collection(driver.CollectionTypeEdge),
		GeoIndexDescriptor:           r.geoIndex,
		SearchViewDescriptor:         r.searchView,
		DelimiterAnalyzerDescriptor:  r.delimiterAnalyzer,
	}
	return r
}

func (r *runner) run(ctx context.Context, descriptors []Descriptor) (*Accessors, error) {
	for i, d := range descriptors {
		tags := map[string]any{
			"index":      i,
			"type":       d.Type,
			"descriptor": util.JSONString(d),
		}
		fn, ok := r.handlers[d.Type]
		if !ok {
			if !r.lenient {
				return nil, errors.New(errors.Validation, "descriptor %d: %s descriptors are not supported here", i, d.Type)
			}
			r.logger.Warn(ctx, "skipping unsupported descriptor", tags)
			continue
		}
		r.logger.Debug(ctx, "applying descriptor", tags)
		if err := fn(ctx, d); err != nil {
			r.logger.Error(ctx, "failed to apply descriptor", err, tags)
			return nil, err
		}
	}
	return r.accessors, nil
}

func (r *runner) collection(typ driver.CollectionType) handler {
	return func(ctx context.Context, d Descriptor) error {
		db, err := r.database(ctx, d)
		if err != nil {
			return err
		}
		res, err := EnsureCollection(ctx, db, CollectionSpec{
			Name:    d.Name,
			Type:    typ,
			Options: d.Options,
		}, r.topology)
		if err != nil {
			return err
		}
		if !res.OK() {
			return errors.New(res.Kind, "%s", res.Message)
		}
		r.accessors.merge(map[string]CollectionAccessor{
			d.Name: NewCollectionAccessor(res.Collection),
		})
		return nil
	}
}

func (r *runner) geoIndex(ctx context.Context, d Descriptor) error {
	db, err := r.database(ctx, d)
	if err != nil {
		return err
	}
	spec, err := d.GeoIndex()
	if err != nil {
		return err
	}
	_, err = EnsureGeoIndex(ctx, db, spec)
	return err
}

func (r *runner) searchView(ctx context.Context, d Descriptor) error {
	db, err := r.database(ctx, d)
	if err != nil {
		return err
	}
	props, err := ViewProperties(d.Options)
	if err != nil {
		return err
	}
	res, err := EnsureSearchView(ctx, db, d.Name, props)
	if err != nil {
		return err
	}
	if !res.OK() {
		return errors.New(res.Kind, "%s", res.Message)
	}
	return nil
}

func (r *runner) delimiterAnalyzer(ctx context.Context, d Descriptor) error {
	db, err := r.database(ctx, d)
	if err != nil {
		return err
	}
	res, err := EnsureDelimiterAnalyzer(ctx, db, d.Name, d.Delimiter)
	if err != nil {
		return err
	}
	if !res.OK() {
		return errors.New(res.Kind, "%s", res.Message)
	}
	return nil
}
