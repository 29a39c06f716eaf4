package embedded

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/autom8ter/provision/util"
	"github.com/nqd/flat"
	"github.com/samber/lo"
)

// builtinAnalyzers are always available to views
var builtinAnalyzers = []string{"identity", "text_de", "text_en", "text_es", "text_fr", "text_it", "text_nl", "text_pt", "text_ru", "text_sv", "text_zh"}

type analyzer struct {
	db  *database
	def driver.AnalyzerDefinition
}

func (a *analyzer) Name() string {
	return a.def.Name
}

func (a *analyzer) Definition() driver.AnalyzerDefinition {
	return a.def
}

func (a *analyzer) Remove(ctx context.Context, force bool) error {
	if err := a.db.authorize(ctx, true, errors.InsufficientRights, "insufficient rights"); err != nil {
		return err
	}
	err := a.db.srv.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, analyzerKey(a.db.name, a.def.Name), &driver.AnalyzerDefinition{})
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "analyzer not found: %s", a.def.Name)
		}
		if !force {
			inUse, err := a.db.analyzerInUse(tx, a.def.Name)
			if err != nil {
				return err
			}
			if inUse {
				return errors.New(errors.Validation, "analyzer in use: %s", a.def.Name)
			}
		}
		return tx.Delete(ctx, analyzerKey(a.db.name, a.def.Name))
	})
	if err != nil {
		return err
	}
	a.db.srv.logger.Debug(ctx, "removed analyzer", map[string]any{
		"database": a.db.name,
		"analyzer": a.def.Name,
	})
	return nil
}

// analyzerInUse reports whether any view link references the analyzer
func (d *database) analyzerInUse(tx kv.Getter, name string) (bool, error) {
	var inUse bool
	err := scan(tx, viewsPrefix(d.name), func(key, value []byte) error {
		var props map[string]any
		if err := json.Unmarshal(value, &props); err != nil {
			return errors.Wrap(err, errors.Internal, "corrupt view %s", string(key))
		}
		flattened, err := flat.Flatten(props, nil)
		if err != nil {
			return errors.Wrap(err, errors.Internal, "")
		}
		for k, v := range flattened {
			if strings.Contains(k, ".analyzers.") && v == name {
				inUse = true
			}
		}
		return nil
	})
	return inUse, err
}

func (d *database) Analyzer(ctx context.Context, name string) (driver.Analyzer, error) {
	if err := d.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return nil, err
	}
	var def driver.AnalyzerDefinition
	if err := d.srv.kv.Tx(true, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, analyzerKey(d.name, name), &def)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.NotFound, "analyzer not found: %s", name)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &analyzer{db: d, def: def}, nil
}

func (d *database) CreateAnalyzer(ctx context.Context, def driver.AnalyzerDefinition) (driver.Analyzer, error) {
	if err := d.authorize(ctx, true, errors.InsufficientRights, "insufficient rights"); err != nil {
		return nil, err
	}
	if !analyzerNamePattern.MatchString(def.Name) || lo.Contains(builtinAnalyzers, def.Name) {
		return nil, errors.New(errors.Validation, "invalid analyzer name %q", def.Name)
	}
	if def.Type != driver.AnalyzerTypeDelimiter {
		return nil, errors.New(errors.Validation, "unsupported analyzer type %q", def.Type)
	}
	if def.Properties.Delimiter == "" {
		return nil, errors.New(errors.Validation, "delimiter analyzer requires a delimiter")
	}
	err := d.srv.kv.Tx(false, func(tx kv.Tx) error {
		var existing driver.AnalyzerDefinition
		exists, err := getJSON(ctx, tx, analyzerKey(d.name, def.Name), &existing)
		if err != nil {
			return err
		}
		if exists {
			if util.JSONEqual(existing, def) {
				return nil
			}
			return errors.New(errors.Duplicate, "analyzer with name %s already exists with different properties", def.Name)
		}
		return setJSON(ctx, tx, analyzerKey(d.name, def.Name), def)
	})
	if err != nil {
		return nil, err
	}
	d.srv.logger.Debug(ctx, "created analyzer", map[string]any{
		"database":  d.name,
		"analyzer":  def.Name,
		"delimiter": def.Properties.Delimiter,
	})
	return &analyzer{db: d, def: def}, nil
}
