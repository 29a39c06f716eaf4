package embedded

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/samber/lo"
)

type view struct {
	db   *database
	name string
}

func (v *view) Name() string {
	return v.name
}

func (v *view) Properties(ctx context.Context) (driver.ViewProperties, error) {
	if err := v.db.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return driver.ViewProperties{}, err
	}
	var rec viewRecord
	err := v.db.srv.kv.Tx(true, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, viewKey(v.db.name, v.name), &rec)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "collection or view not found: %s", v.name)
		}
		return nil
	})
	return rec.Properties, err
}

func (d *database) View(ctx context.Context, name string) (driver.View, error) {
	if err := d.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return nil, err
	}
	err := d.srv.kv.Tx(true, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, viewKey(d.name, name), &viewRecord{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "collection or view not found: %s", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view{db: d, name: name}, nil
}

func (d *database) CreateView(ctx context.Context, name string, props *driver.ViewProperties) (driver.View, error) {
	if err := d.authorize(ctx, true, errors.Forbidden, "forbidden"); err != nil {
		return nil, err
	}
	if err := validName("view", name); err != nil {
		return nil, err
	}
	if props == nil {
		props = &driver.ViewProperties{}
	}
	rec := viewRecord{
		Name: name,
		Properties: driver.ViewProperties{
			Links:                     map[string]driver.ViewLink{},
			CleanupIntervalStep:       props.CleanupIntervalStep,
			CommitIntervalMsec:        props.CommitIntervalMsec,
			ConsolidationIntervalMsec: props.ConsolidationIntervalMsec,
		},
	}
	if rec.Properties.CleanupIntervalStep == 0 {
		rec.Properties.CleanupIntervalStep = 2
	}
	if rec.Properties.CommitIntervalMsec == 0 {
		rec.Properties.CommitIntervalMsec = 1000
	}
	if rec.Properties.ConsolidationIntervalMsec == 0 {
		rec.Properties.ConsolidationIntervalMsec = 1000
	}
	for col, link := range props.Links {
		rec.Properties.Links[col] = withLinkDefaults(link)
	}
	err := d.srv.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, viewKey(d.name, name), &viewRecord{})
		if err != nil {
			return err
		}
		if exists {
			return errors.New(errors.Duplicate, "duplicate name: %s", name)
		}
		if _, exists, err = d.loadCollection(ctx, tx, name); err != nil {
			return err
		}
		if exists {
			return errors.New(errors.Duplicate, "duplicate name: %s", name)
		}
		for col, link := range rec.Properties.Links {
			if _, exists, err = d.loadCollection(ctx, tx, col); err != nil {
				return err
			}
			if !exists {
				return errors.New(errors.NotFound, "collection or view not found: %s", col)
			}
			if err := d.checkLinkAnalyzers(ctx, tx, link); err != nil {
				return err
			}
		}
		return setJSON(ctx, tx, viewKey(d.name, name), rec)
	})
	if err != nil {
		return nil, err
	}
	d.srv.logger.Debug(ctx, "created view", map[string]any{
		"database": d.name,
		"view":     name,
		"links":    lo.Keys(rec.Properties.Links),
	})
	return &view{db: d, name: name}, nil
}

func (d *database) checkLinkAnalyzers(ctx context.Context, tx kv.Getter, link driver.ViewLink) error {
	for _, name := range link.Analyzers {
		if lo.Contains(builtinAnalyzers, name) {
			continue
		}
		exists, err := getJSON(ctx, tx, analyzerKey(d.name, name), &driver.AnalyzerDefinition{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "analyzer not found: %s", name)
		}
	}
	for _, field := range link.Fields {
		if err := d.checkLinkAnalyzers(ctx, tx, field); err != nil {
			return err
		}
	}
	return nil
}

func withLinkDefaults(link driver.ViewLink) driver.ViewLink {
	if len(link.Analyzers) == 0 {
		link.Analyzers = []string{"identity"}
	}
	if link.IncludeAllFields == nil {
		link.IncludeAllFields = lo.ToPtr(false)
	}
	if link.StoreValues == "" {
		link.StoreValues = "none"
	}
	if link.TrackListPositions == nil {
		link.TrackListPositions = lo.ToPtr(false)
	}
	if len(link.Fields) > 0 {
		fields := make(map[string]driver.ViewLink, len(link.Fields))
		for name, field := range link.Fields {
			fields[name] = withLinkDefaults(field)
		}
		link.Fields = fields
	}
	return link
}
