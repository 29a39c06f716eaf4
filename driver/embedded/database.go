package embedded

import (
	"context"
	"encoding/json"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/xeipuuv/gojsonschema"
)

type database struct {
	srv  *Server
	name string
	user string
}

func (d *database) Name() string {
	return d.name
}

// authorize fails NotAuthorized for users without access to the database, and
// fails with denied when write access is required but the grant is read only
func (d *database) authorize(ctx context.Context, write bool, denied errors.Kind, deniedMsg string) error {
	grant, err := d.srv.grant(ctx, d.user, d.name)
	if err != nil {
		return err
	}
	switch {
	case grant == GrantNone:
		return errors.New(errors.NotAuthorized, "not authorized to execute this request")
	case write && grant != GrantReadWrite:
		return errors.New(denied, "%s", deniedMsg)
	}
	return nil
}

func (d *database) loadCollection(ctx context.Context, tx kv.Getter, name string) (collectionRecord, bool, error) {
	var rec collectionRecord
	exists, err := getJSON(ctx, tx, collectionKey(d.name, name), &rec)
	return rec, exists, err
}

func (d *database) Collection(ctx context.Context, name string) (driver.Collection, error) {
	if err := d.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return nil, err
	}
	var rec collectionRecord
	if err := d.srv.view(ctx, d.name, func(tx kv.Tx) error {
		var (
			exists bool
			err    error
		)
		rec, exists, err = d.loadCollection(ctx, tx, name)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "collection or view not found: %s", name)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &collection{db: d, name: rec.Name, typ: rec.Type}, nil
}

func (d *database) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := d.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return false, err
	}
	var exists bool
	err := d.srv.view(ctx, d.name, func(tx kv.Tx) error {
		var err error
		_, exists, err = d.loadCollection(ctx, tx, name)
		return err
	})
	return exists, err
}

func (d *database) Collections(ctx context.Context) ([]driver.Collection, error) {
	if err := d.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return nil, err
	}
	var cols []driver.Collection
	err := d.srv.view(ctx, d.name, func(tx kv.Tx) error {
		return scan(tx, collectionsPrefix(d.name), func(key, value []byte) error {
			var rec collectionRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return errors.Wrap(err, errors.Internal, "corrupt collection record")
			}
			cols = append(cols, &collection{db: d, name: rec.Name, typ: rec.Type})
			return nil
		})
	})
	return cols, err
}

func (d *database) CreateCollection(ctx context.Context, name string, opts *driver.CollectionOptions) (driver.Collection, error) {
	if err := d.authorize(ctx, true, errors.CannotCreate, "cannot create collection"); err != nil {
		return nil, err
	}
	if err := validName("collection", name); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &driver.CollectionOptions{}
	}
	rec := collectionRecord{
		Name: name,
		Type: opts.Type,
	}
	if rec.Type == "" {
		rec.Type = driver.CollectionTypeDocument
	}
	if rec.Type != driver.CollectionTypeDocument && rec.Type != driver.CollectionTypeEdge {
		return nil, errors.New(errors.Validation, "invalid collection type %q", rec.Type)
	}
	if opts.WaitForSync != nil {
		rec.WaitForSync = *opts.WaitForSync
	}
	if err := validSchema(opts.Schema); err != nil {
		return nil, err
	}
	rec.Schema = opts.Schema
	if d.srv.cfg.Clustered {
		rec.ReplicationFactor = 1
		rec.WriteConcern = 1
		if opts.ReplicationFactor > 0 {
			rec.ReplicationFactor = opts.ReplicationFactor
		}
		if opts.WriteConcern > 0 {
			rec.WriteConcern = opts.WriteConcern
		}
		if err := validWriteConcern(rec.WriteConcern, rec.ReplicationFactor); err != nil {
			return nil, err
		}
	}
	err := d.srv.kv.Tx(false, func(tx kv.Tx) error {
		_, exists, err := d.loadCollection(ctx, tx, name)
		if err != nil {
			return err
		}
		if exists {
			return errors.New(errors.Duplicate, "duplicate name: %s", name)
		}
		viewExists, err := getJSON(ctx, tx, viewKey(d.name, name), &viewRecord{})
		if err != nil {
			return err
		}
		if viewExists {
			return errors.New(errors.Duplicate, "duplicate name: %s", name)
		}
		return setJSON(ctx, tx, collectionKey(d.name, name), rec)
	})
	if err != nil {
		return nil, err
	}
	d.srv.logger.Debug(ctx, "created collection", map[string]any{
		"database":   d.name,
		"collection": name,
		"type":       rec.Type,
	})
	return &collection{db: d, name: name, typ: rec.Type}, nil
}

func validWriteConcern(writeConcern, replicationFactor int) error {
	if writeConcern > replicationFactor {
		return errors.New(errors.BadWriteConcern, "bad value for writeConcern")
	}
	return nil
}

func validSchema(schema *driver.CollectionSchema) error {
	if schema == nil || schema.Rule == nil {
		return nil
	}
	switch schema.Level {
	case "", "none", "new", "moderate", "strict":
	default:
		return errors.New(errors.Validation, "invalid schema level %q", schema.Level)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.Rule)); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid schema rule")
	}
	return nil
}
