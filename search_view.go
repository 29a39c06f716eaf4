package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/util"
)

// ViewResult holds the provisioned view, or the reason there is none
type ViewResult struct {
	View    driver.View
	Message string
	Kind    errors.Kind
}

// OK reports whether the view was provisioned
func (v ViewResult) OK() bool {
	return v.Message == ""
}

// ViewProperties decodes a descriptor's options map into view properties
func ViewProperties(options map[string]any) (driver.ViewProperties, error) {
	var props driver.ViewProperties
	if len(options) == 0 {
		return props, nil
	}
	if err := util.Decode(options, &props); err != nil {
		return props, errors.Wrap(err, errors.Validation, "invalid view options")
	}
	return props, nil
}

// EnsureSearchView creates a search view. An existing view of the same name is returned as is.
func EnsureSearchView(ctx context.Context, db driver.Database, name string, props driver.ViewProperties) (ViewResult, error) {
	view, err := db.CreateView(ctx, name, &props)
	if err == nil {
		return ViewResult{View: view}, nil
	}
	if !errors.Is(err, errors.Duplicate) {
		return ViewResult{Message: errors.Extract(err).Error(), Kind: errors.KindOf(err)}, nil
	}
	view, err = db.View(ctx, name)
	if err != nil {
		return ViewResult{}, errors.Wrap(err, errors.Unknown, "view %q", name)
	}
	return ViewResult{View: view}, nil
}
