package provision

import (
	"context"
	"encoding/json"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/logging"
	"github.com/autom8ter/provision/util"
	"github.com/samber/lo"
)

// DescriptorType tags the kind of resource a descriptor provisions
type DescriptorType string

const (
	DatabaseDescriptor           DescriptorType = "database"
	UserDescriptor               DescriptorType = "user"
	DocumentCollectionDescriptor DescriptorType = "documentcollection"
	EdgeCollectionDescriptor     DescriptorType = "edgecollection"
	GeoIndexDescriptor           DescriptorType = "geoindex"
	SearchViewDescriptor         DescriptorType = "searchview"
	DelimiterAnalyzerDescriptor  DescriptorType = "delimiteranalyzer"
)

// DescriptorTypes lists every known descriptor type
var DescriptorTypes = []DescriptorType{
	DatabaseDescriptor,
	UserDescriptor,
	DocumentCollectionDescriptor,
	EdgeCollectionDescriptor,
	GeoIndexDescriptor,
	SearchViewDescriptor,
	DelimiterAnalyzerDescriptor,
}

// Valid reports whether the type is known
func (d DescriptorType) Valid() bool {
	return lo.Contains(DescriptorTypes, d)
}

// Descriptor describes one resource to provision
type Descriptor struct {
	Type DescriptorType `json:"type" yaml:"type" validate:"required"`
	Name string         `json:"name,omitempty" yaml:"name,omitempty"`
	// DatabaseName is the database the descriptor acts in when migrating. Defaults to _system.
	DatabaseName string `json:"databaseName,omitempty" yaml:"databaseName,omitempty"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty" validate:"required_if=Type user"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty"`
	// Grant is the permission a migrated user receives on DatabaseName. Defaults to rw.
	Grant string `json:"grant,omitempty" yaml:"grant,omitempty" validate:"omitempty,oneof=rw ro none"`
	// Users are created together with a migrated database
	Users     []driver.DatabaseUser `json:"users,omitempty" yaml:"users,omitempty"`
	Options   map[string]any        `json:"options,omitempty" yaml:"options,omitempty"`
	Delimiter string                `json:"delimiter,omitempty" yaml:"delimiter,omitempty" validate:"required_if=Type delimiteranalyzer"`
	// On names the collection a geo index is added to. Collection is accepted as an alias.
	On         string   `json:"on,omitempty" yaml:"on,omitempty"`
	Collection string   `json:"collection,omitempty" yaml:"collection,omitempty"`
	Fields     []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	GeoJSON    bool     `json:"geoJson,omitempty" yaml:"geoJson,omitempty"`
}

// Database returns the database the descriptor acts in
func (d Descriptor) Database() string {
	if d.DatabaseName == "" {
		return driver.SystemDatabase
	}
	return d.DatabaseName
}

// Target returns the collection a geo index descriptor applies to
func (d Descriptor) Target() string {
	if d.On != "" {
		return d.On
	}
	return d.Collection
}

// GeoIndex returns the geo index a descriptor asks for. Fields and geoJson may also be given in options.
func (d Descriptor) GeoIndex() (GeoIndexSpec, error) {
	spec := GeoIndexSpec{
		Collection: d.Target(),
		Fields:     d.Fields,
		GeoJSON:    d.GeoJSON,
	}
	if len(d.Options) > 0 {
		var opts struct {
			Fields  []string `json:"fields"`
			GeoJSON bool     `json:"geoJson"`
		}
		if err := util.Decode(d.Options, &opts); err != nil {
			return spec, errors.Wrap(err, errors.Validation, "invalid geoindex options")
		}
		if len(spec.Fields) == 0 {
			spec.Fields = opts.Fields
		}
		spec.GeoJSON = spec.GeoJSON || opts.GeoJSON
	}
	return spec, nil
}

// Validate checks the descriptor carries the fields its type needs
func (d Descriptor) Validate() error {
	if !d.Type.Valid() {
		return errors.New(errors.Validation, "unknown descriptor type %q", d.Type)
	}
	if err := util.ValidateStruct(d); err != nil {
		return errors.Wrap(err, errors.Validation, "%s descriptor", d.Type)
	}
	switch d.Type {
	case DatabaseDescriptor:
		if d.DatabaseName == "" {
			return errors.New(errors.Validation, "database descriptor requires databaseName")
		}
	case DocumentCollectionDescriptor, EdgeCollectionDescriptor, SearchViewDescriptor, DelimiterAnalyzerDescriptor:
		if d.Name == "" {
			return errors.New(errors.Validation, "%s descriptor requires a name", d.Type)
		}
	case GeoIndexDescriptor:
		if d.Target() == "" {
			return errors.New(errors.Validation, "geoindex descriptor requires a collection")
		}
		spec, err := d.GeoIndex()
		if err != nil {
			return err
		}
		if len(spec.Fields) == 0 {
			return errors.New(errors.Validation, "geoindex descriptor requires fields")
		}
	}
	return nil
}

// ParseDescriptors reads a yaml or json list of descriptors
func ParseDescriptors(content []byte) ([]Descriptor, error) {
	var descriptors []Descriptor
	bits, err := util.YAMLToJSON(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid descriptors")
	}
	if err := json.Unmarshal(bits, &descriptors); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid descriptors")
	}
	return descriptors, nil
}

// prepare validates descriptors before any remote call. Unknown types are skipped when lenient.
func prepare(ctx context.Context, descriptors []Descriptor, lenient bool, logger logging.Logger) ([]Descriptor, error) {
	users := lo.Filter(descriptors, func(d Descriptor, _ int) bool { return d.Type == UserDescriptor })
	if len(users) > 1 {
		return nil, errors.New(errors.Validation, "can't handle more than one user at the moment")
	}
	var valid []Descriptor
	for i, d := range descriptors {
		if !d.Type.Valid() && lenient {
			logger.Warn(ctx, "skipping descriptor of unknown type", map[string]any{
				"index":      i,
				"descriptor": util.JSONString(d),
			})
			continue
		}
		if err := d.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "descriptor %d", i)
		}
		valid = append(valid, d)
	}
	return valid, nil
}
