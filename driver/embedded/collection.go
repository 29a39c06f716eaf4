package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"
)

var systemAttributes = []string{"_key", "_id", "_rev", "_from", "_to"}

type collection struct {
	db   *database
	name string
	typ  driver.CollectionType
}

func (c *collection) Name() string {
	return c.name
}

func (c *collection) Type() driver.CollectionType {
	return c.typ
}

func (c *collection) record(ctx context.Context, tx kv.Getter) (collectionRecord, error) {
	rec, exists, err := c.db.loadCollection(ctx, tx, c.name)
	if err != nil {
		return rec, err
	}
	if !exists {
		return rec, errors.New(errors.NotFound, "collection or view not found: %s", c.name)
	}
	return rec, nil
}

func (c *collection) Properties(ctx context.Context) (driver.CollectionProperties, error) {
	if err := c.db.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return driver.CollectionProperties{}, err
	}
	var rec collectionRecord
	if err := c.db.srv.view(ctx, c.db.name, func(tx kv.Tx) error {
		var err error
		rec, err = c.record(ctx, tx)
		return err
	}); err != nil {
		return driver.CollectionProperties{}, err
	}
	return driver.CollectionProperties{
		Name:              rec.Name,
		Type:              rec.Type,
		WaitForSync:       rec.WaitForSync,
		Schema:            rec.Schema,
		WriteConcern:      rec.WriteConcern,
		ReplicationFactor: rec.ReplicationFactor,
	}, nil
}

func (c *collection) SetProperties(ctx context.Context, opts driver.SetCollectionPropertiesOptions) error {
	if err := c.db.authorize(ctx, true, errors.Forbidden, "forbidden"); err != nil {
		return err
	}
	clustered := c.db.srv.cfg.Clustered
	if opts.ReplicationFactor > 0 && !clustered {
		return errors.New(errors.Validation, "replicationFactor is only supported in clusters")
	}
	if err := validSchema(opts.Schema); err != nil {
		return err
	}
	err := c.db.srv.kv.Tx(false, func(tx kv.Tx) error {
		rec, err := c.record(ctx, tx)
		if err != nil {
			return err
		}
		if opts.WaitForSync != nil {
			rec.WaitForSync = *opts.WaitForSync
		}
		if opts.Schema != nil {
			rec.Schema = opts.Schema
		}
		if clustered {
			if opts.ReplicationFactor > 0 {
				rec.ReplicationFactor = opts.ReplicationFactor
			}
			if opts.WriteConcern > 0 {
				rec.WriteConcern = opts.WriteConcern
			}
			if err := validWriteConcern(rec.WriteConcern, rec.ReplicationFactor); err != nil {
				return err
			}
		}
		return setJSON(ctx, tx, collectionKey(c.db.name, c.name), rec)
	})
	if err != nil {
		return err
	}
	c.db.srv.logger.Debug(ctx, "updated collection properties", map[string]any{
		"database":   c.db.name,
		"collection": c.name,
	})
	return nil
}

func (c *collection) Truncate(ctx context.Context) error {
	if err := c.db.authorize(ctx, true, errors.Forbidden, "forbidden"); err != nil {
		return err
	}
	return c.db.srv.update(ctx, c.db.name, c.name, func(tx kv.Tx) error {
		if _, err := c.record(ctx, tx); err != nil {
			return err
		}
		var keys [][]byte
		if err := scan(tx, documentsPrefix(c.db.name, c.name), func(key, value []byte) error {
			keys = append(keys, key)
			return nil
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(ctx, key); err != nil {
				return errors.Wrap(err, errors.Internal, "")
			}
		}
		return nil
	})
}

func (c *collection) Save(ctx context.Context, doc any) (driver.DocumentMeta, error) {
	if err := c.db.authorize(ctx, true, errors.Forbidden, "forbidden"); err != nil {
		return driver.DocumentMeta{}, err
	}
	var meta driver.DocumentMeta
	err := c.db.srv.update(ctx, c.db.name, c.name, func(tx kv.Tx) error {
		rec, err := c.record(ctx, tx)
		if err != nil {
			return err
		}
		bits, err := json.Marshal(doc)
		if err != nil {
			return errors.Wrap(err, errors.Validation, "invalid document")
		}
		meta, _, err = c.insert(ctx, tx, rec, bits, driver.OnDuplicateError)
		return err
	})
	return meta, err
}

func (c *collection) Import(ctx context.Context, docs []any, opts *driver.ImportOptions) (driver.ImportStatistics, error) {
	if err := c.db.authorize(ctx, true, errors.Forbidden, "forbidden"); err != nil {
		return driver.ImportStatistics{}, err
	}
	if opts == nil {
		opts = &driver.ImportOptions{}
	}
	onDuplicate := opts.OnDuplicate
	if onDuplicate == "" {
		onDuplicate = driver.OnDuplicateError
	}
	var stats driver.ImportStatistics
	err := c.db.srv.update(ctx, c.db.name, c.name, func(tx kv.Tx) error {
		rec, err := c.record(ctx, tx)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			if doc == nil {
				stats.Empty++
				continue
			}
			bits, err := json.Marshal(doc)
			if err == nil {
				var result insertResult
				_, result, err = c.insert(ctx, tx, rec, bits, onDuplicate)
				switch result {
				case inserted:
					stats.Created++
				case updated:
					stats.Updated++
				case ignored:
					stats.Ignored++
				}
			}
			if err != nil {
				if opts.Complete {
					return errors.Wrap(err, errors.Unknown, "at position %d", i)
				}
				stats.Errors++
				stats.Details = append(stats.Details, fmt.Sprintf("at position %d: %s", i, err.Error()))
			}
		}
		return nil
	})
	if err != nil {
		return driver.ImportStatistics{}, err
	}
	return stats, nil
}

type insertResult int

const (
	failed insertResult = iota
	inserted
	updated
	ignored
)

// insert stores a document, resolving an existing key according to onDuplicate
func (c *collection) insert(ctx context.Context, tx kv.Tx, rec collectionRecord, doc []byte, onDuplicate driver.OnDuplicate) (driver.DocumentMeta, insertResult, error) {
	parsed := gjson.ParseBytes(doc)
	if !parsed.IsObject() {
		return driver.DocumentMeta{}, failed, errors.New(errors.Validation, "invalid document type")
	}
	if rec.Type == driver.CollectionTypeEdge {
		if parsed.Get("_from").Type != gjson.String || parsed.Get("_to").Type != gjson.String {
			return driver.DocumentMeta{}, failed, errors.New(errors.Validation, "edge attribute missing or invalid")
		}
	}
	key := parsed.Get("_key").String()
	if key == "" {
		key = ksuid.New().String()
	}
	if strings.ContainsAny(key, "/ ") {
		return driver.DocumentMeta{}, failed, errors.New(errors.Validation, "illegal document key %q", key)
	}
	meta := driver.DocumentMeta{
		Key: key,
		ID:  fmt.Sprintf("%s/%s", c.name, key),
		Rev: ksuid.New().String(),
	}
	result := inserted
	existing, err := tx.Get(ctx, documentKey(c.db.name, c.name, key))
	if err != nil {
		return driver.DocumentMeta{}, failed, errors.Wrap(err, errors.Internal, "")
	}
	if existing != nil {
		switch onDuplicate {
		case driver.OnDuplicateIgnore:
			return driver.DocumentMeta{Key: key, ID: meta.ID}, ignored, nil
		case driver.OnDuplicateUpdate:
			doc, err = merge(existing, doc)
			if err != nil {
				return driver.DocumentMeta{}, failed, err
			}
			result = updated
		case driver.OnDuplicateReplace:
			result = updated
		default:
			return driver.DocumentMeta{}, failed, errors.New(errors.Duplicate, "unique constraint violated - in index primary of type primary over '_key'; conflicting key: %s", key)
		}
	}
	if err := validateDocument(rec.Schema, doc); err != nil {
		return driver.DocumentMeta{}, failed, err
	}
	for _, attr := range []struct{ path, value string }{
		{"_key", meta.Key},
		{"_id", meta.ID},
		{"_rev", meta.Rev},
	} {
		doc, err = sjson.SetBytes(doc, attr.path, attr.value)
		if err != nil {
			return driver.DocumentMeta{}, failed, errors.Wrap(err, errors.Internal, "")
		}
	}
	if err := tx.Set(ctx, documentKey(c.db.name, c.name, key), doc); err != nil {
		return driver.DocumentMeta{}, failed, errors.Wrap(err, errors.Internal, "")
	}
	return meta, result, nil
}

// merge writes the top level fields of patch onto doc
func merge(doc, patch []byte) ([]byte, error) {
	var err error
	gjson.ParseBytes(patch).ForEach(func(key, value gjson.Result) bool {
		doc, err = sjson.SetRawBytes(doc, escapePath(key.String()), []byte(value.Raw))
		return err == nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to merge document")
	}
	return doc, nil
}

func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

// validateDocument checks the user attributes of doc against the collection schema
func validateDocument(schema *driver.CollectionSchema, doc []byte) error {
	if schema == nil || schema.Rule == nil || schema.Level == "none" {
		return nil
	}
	var err error
	for _, attr := range systemAttributes {
		doc, err = sjson.DeleteBytes(doc, attr)
		if err != nil {
			return errors.Wrap(err, errors.Internal, "")
		}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema.Rule), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errors.Wrap(err, errors.Validation, "invalid schema rule")
	}
	if !result.Valid() {
		msg := schema.Message
		if msg == "" {
			msg = "Schema violation"
		}
		return errors.New(errors.Validation, "%s: %s", msg, strings.Join(lo.Map(result.Errors(), func(e gojsonschema.ResultError, _ int) string {
			return e.String()
		}), ", "))
	}
	return nil
}

func (c *collection) documents(ctx context.Context) ([]any, error) {
	if t, ok := transactionFrom(ctx); ok && t.db.name == c.db.name {
		if err := t.canRead(c.name); err != nil {
			return nil, err
		}
	}
	var docs []any
	err := c.db.srv.view(ctx, c.db.name, func(tx kv.Tx) error {
		if _, err := c.record(ctx, tx); err != nil {
			return err
		}
		return scan(tx, documentsPrefix(c.db.name, c.name), func(key, value []byte) error {
			var doc map[string]any
			if err := json.Unmarshal(value, &doc); err != nil {
				return errors.Wrap(err, errors.Internal, "corrupt document %s", string(key))
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (c *collection) Indexes(ctx context.Context) ([]driver.Index, error) {
	if err := c.db.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return nil, err
	}
	indexes := []driver.Index{{
		ID:     c.name + "/0",
		Type:   driver.PrimaryIndex,
		Fields: []string{"_key"},
	}}
	if c.typ == driver.CollectionTypeEdge {
		indexes = append(indexes, driver.Index{
			ID:     c.name + "/1",
			Type:   driver.EdgeIndex,
			Fields: []string{"_from", "_to"},
		})
	}
	err := c.db.srv.view(ctx, c.db.name, func(tx kv.Tx) error {
		if _, err := c.record(ctx, tx); err != nil {
			return err
		}
		return scan(tx, indexesPrefix(c.db.name, c.name), func(key, value []byte) error {
			var idx driver.Index
			if err := json.Unmarshal(value, &idx); err != nil {
				return errors.Wrap(err, errors.Internal, "corrupt index %s", string(key))
			}
			indexes = append(indexes, idx)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return indexes, nil
}

func (c *collection) EnsureGeoIndex(ctx context.Context, fields []string, geoJSON bool) (driver.Index, bool, error) {
	if err := c.db.authorize(ctx, true, errors.Forbidden, "forbidden"); err != nil {
		return driver.Index{}, false, err
	}
	if len(fields) == 0 || len(fields) > 2 {
		return driver.Index{}, false, errors.New(errors.Validation, "geo index requires one or two fields")
	}
	var (
		index   driver.Index
		created bool
	)
	err := c.db.srv.kv.Tx(false, func(tx kv.Tx) error {
		if _, err := c.record(ctx, tx); err != nil {
			return err
		}
		var found bool
		if err := scan(tx, indexesPrefix(c.db.name, c.name), func(key, value []byte) error {
			var idx driver.Index
			if err := json.Unmarshal(value, &idx); err != nil {
				return errors.Wrap(err, errors.Internal, "corrupt index %s", string(key))
			}
			if !found && idx.IsGeo(fields, geoJSON) {
				index = idx
				found = true
			}
			return nil
		}); err != nil {
			return err
		}
		if found {
			return nil
		}
		id := ksuid.New().String()
		index = driver.Index{
			ID:      fmt.Sprintf("%s/%s", c.name, id),
			Type:    driver.GeoIndex,
			Fields:  fields,
			GeoJSON: geoJSON,
		}
		created = true
		return setJSON(ctx, tx, indexKey(c.db.name, c.name, id), index)
	})
	if err != nil {
		return driver.Index{}, false, err
	}
	return index, created, nil
}
