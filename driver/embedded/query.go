package embedded

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/dop251/goja"
	"github.com/tidwall/gjson"
)

// Query evaluates a javascript expression. Bind variables are exposed as globals and
// through params. collection(name) returns every document of a collection,
// currentUser() and currentDatabase() describe the session. An array result yields
// one row per element.
func (d *database) Query(ctx context.Context, query string, bindVars map[string]any, opts *driver.QueryOptions) (driver.Cursor, error) {
	if err := d.authorize(ctx, false, errors.Forbidden, ""); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &driver.QueryOptions{}
	}
	vm, callErr, err := d.queryVM(ctx, bindVars)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	val, err := vm.RunString(query)
	if *callErr != nil {
		return nil, *callErr
	}
	if err != nil {
		if _, ok := err.(*goja.InterruptedError); ok {
			return nil, errors.Wrap(ctx.Err(), errors.Unknown, "query interrupted")
		}
		return nil, errors.Wrap(err, errors.Validation, "query failed")
	}
	rows, err := toRows(val)
	if err != nil {
		return nil, err
	}
	return &cursor{rows: rows, count: opts.Count}, nil
}

func (d *database) queryVM(ctx context.Context, bindVars map[string]any) (*goja.Runtime, *error, error) {
	var callErr error
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if bindVars == nil {
		bindVars = map[string]any{}
	}
	for k, v := range bindVars {
		if err := vm.Set(k, v); err != nil {
			return nil, nil, errors.Wrap(err, errors.Validation, "invalid bind parameter %s", k)
		}
	}
	if err := vm.Set("params", bindVars); err != nil {
		return nil, nil, err
	}
	if err := vm.Set("collection", func(name string) []any {
		c, err := d.Collection(ctx, name)
		if err != nil {
			callErr = err
			panic(vm.NewGoError(err))
		}
		docs, err := c.(*collection).documents(ctx)
		if err != nil {
			callErr = err
			panic(vm.NewGoError(err))
		}
		return docs
	}); err != nil {
		return nil, nil, err
	}
	if err := vm.Set("currentUser", func() string {
		return d.user
	}); err != nil {
		return nil, nil, err
	}
	if err := vm.Set("currentDatabase", func() string {
		return d.name
	}); err != nil {
		return nil, nil, err
	}
	return vm, &callErr, nil
}

func toRows(val goja.Value) ([][]byte, error) {
	if val == nil || goja.IsUndefined(val) {
		return nil, nil
	}
	bits, err := json.Marshal(val.Export())
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "query result is not json")
	}
	result := gjson.ParseBytes(bits)
	if !result.IsArray() {
		return [][]byte{bits}, nil
	}
	var rows [][]byte
	result.ForEach(func(_, value gjson.Result) bool {
		rows = append(rows, []byte(value.Raw))
		return true
	})
	return rows, nil
}

type cursor struct {
	mu    sync.Mutex
	rows  [][]byte
	pos   int
	count bool
}

func (c *cursor) Count() int64 {
	if !c.count {
		return 0
	}
	return int64(len(c.rows))
}

func (c *cursor) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos < len(c.rows)
}

func (c *cursor) ReadDocument(ctx context.Context, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.rows) {
		return errors.New(errors.NotFound, "no more documents")
	}
	row := c.rows[c.pos]
	c.pos++
	return errors.Wrap(json.Unmarshal(row, result), errors.Validation, "failed to decode row")
}

func (c *cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = len(c.rows)
	return nil
}
