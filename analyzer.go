package provision

import (
	"context"
	"fmt"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
)

// AnalyzerResult holds the provisioned analyzer, or the reason there is none
type AnalyzerResult struct {
	Analyzer driver.Analyzer
	Message  string
	Kind     errors.Kind
}

// OK reports whether the analyzer was provisioned
func (a AnalyzerResult) OK() bool {
	return a.Message == ""
}

// EnsureDelimiterAnalyzer makes sure an analyzer splitting on delimiter exists under name.
// An analyzer with another delimiter is dropped and recreated.
func EnsureDelimiterAnalyzer(ctx context.Context, db driver.Database, name, delimiter string) (AnalyzerResult, error) {
	existing, err := db.Analyzer(ctx, name)
	switch {
	case errors.Is(err, errors.NotFound):
	case err != nil:
		return AnalyzerResult{}, errors.Wrap(err, errors.Unknown, "analyzer %q", name)
	default:
		def := existing.Definition()
		if def.Type == driver.AnalyzerTypeDelimiter && def.Properties.Delimiter == delimiter {
			return AnalyzerResult{Analyzer: existing}, nil
		}
		if err := existing.Remove(ctx, true); err != nil {
			if errors.Is(err, errors.InsufficientRights) {
				return insufficientRights(db), nil
			}
			return AnalyzerResult{}, errors.Wrap(err, errors.Unknown, "failed to drop analyzer %q", name)
		}
	}
	analyzer, err := db.CreateAnalyzer(ctx, driver.AnalyzerDefinition{
		Name:       name,
		Type:       driver.AnalyzerTypeDelimiter,
		Properties: driver.AnalyzerProperties{Delimiter: delimiter},
	})
	if err != nil {
		if errors.Is(err, errors.InsufficientRights) {
			return insufficientRights(db), nil
		}
		return AnalyzerResult{}, errors.Wrap(err, errors.Unknown, "failed to create analyzer %q", name)
	}
	return AnalyzerResult{Analyzer: analyzer}, nil
}

func insufficientRights(db driver.Database) AnalyzerResult {
	return AnalyzerResult{
		Message: fmt.Sprintf("Insufficient user permissions to create analyzer in %q.", db.Name()),
		Kind:    errors.InsufficientRights,
	}
}
