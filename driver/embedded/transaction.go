package embedded

import (
	"context"
	"sync"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
)

type transactionCtxKey struct{}

func transactionFrom(ctx context.Context) (*transaction, bool) {
	t, ok := ctx.Value(transactionCtxKey{}).(*transaction)
	return t, ok
}

type transaction struct {
	mu            sync.Mutex
	id            string
	db            *database
	tx            kv.Tx
	read          []string
	write         []string
	allowImplicit bool
	done          bool
}

func (d *database) BeginTransaction(ctx context.Context, cols driver.TransactionCollections, opts *driver.TransactionOptions) (driver.Transaction, error) {
	write := lo.Uniq(append(append([]string{}, cols.Write...), cols.Exclusive...))
	if err := d.authorize(ctx, len(write) > 0, errors.Forbidden, "forbidden"); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &driver.TransactionOptions{}
	}
	read := lo.Uniq(append(append([]string{}, cols.Read...), write...))
	if err := d.srv.kv.Tx(true, func(tx kv.Tx) error {
		for _, name := range read {
			_, exists, err := d.loadCollection(ctx, tx, name)
			if err != nil {
				return err
			}
			if !exists {
				return errors.New(errors.NotFound, "collection or view not found: %s", name)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	tx, err := d.srv.kv.NewTx(false)
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to begin transaction")
	}
	t := &transaction{
		id:            ksuid.New().String(),
		db:            d,
		tx:            tx,
		read:          read,
		write:         write,
		allowImplicit: opts.AllowImplicit,
	}
	d.srv.logger.Debug(ctx, "began transaction", map[string]any{
		"database":    d.name,
		"transaction": t.id,
		"write":       write,
	})
	return t, nil
}

func (t *transaction) ID() string {
	return t.id
}

func (t *transaction) Step(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done {
		return errors.New(errors.Validation, "transaction %s is not running", t.id)
	}
	return fn(context.WithValue(ctx, transactionCtxKey{}, t))
}

func (t *transaction) canWrite(col string) error {
	if !lo.Contains(t.write, col) {
		return errors.New(errors.Validation, "collection %s is not registered for write in transaction %s", col, t.id)
	}
	return nil
}

func (t *transaction) canRead(col string) error {
	if !t.allowImplicit && !lo.Contains(t.read, col) {
		return errors.New(errors.Validation, "collection %s is not registered for read in transaction %s", col, t.id)
	}
	return nil
}

func (t *transaction) run(fn func(kv.Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New(errors.Validation, "transaction %s is not running", t.id)
	}
	return fn(t.tx)
}

func (t *transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New(errors.Validation, "transaction %s is not running", t.id)
	}
	t.done = true
	return errors.Wrap(t.tx.Commit(ctx), errors.Internal, "failed to commit transaction %s", t.id)
}

func (t *transaction) Abort(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New(errors.Validation, "transaction %s is not running", t.id)
	}
	t.done = true
	t.tx.Rollback(ctx)
	return nil
}
