package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"golang.org/x/sync/errgroup"
)

// CollectionAccessor writes documents into one collection
type CollectionAccessor struct {
	collection driver.Collection
}

// NewCollectionAccessor binds an accessor to a collection handle
func NewCollectionAccessor(collection driver.Collection) CollectionAccessor {
	return CollectionAccessor{collection: collection}
}

// Collection returns the underlying collection handle
func (c CollectionAccessor) Collection() driver.Collection {
	return c.collection
}

// Save stores a single document
func (c CollectionAccessor) Save(ctx context.Context, doc any) (driver.DocumentMeta, error) {
	return c.collection.Save(ctx, doc)
}

// Import bulk loads documents
func (c CollectionAccessor) Import(ctx context.Context, docs []any, opts *driver.ImportOptions) (driver.ImportStatistics, error) {
	return c.collection.Import(ctx, docs, opts)
}

// AccessorOptions tune the accessor bundle
type AccessorOptions struct {
	// TruncateConcurrency bounds how many collections are emptied at once. Zero or one is sequential.
	TruncateConcurrency int
}

// Accessors is the bundle of operations bound to a provisioned database
type Accessors struct {
	db    driver.Database
	admin driver.Client
	opts  AccessorOptions
	// Collections holds an accessor per provisioned collection, keyed by name
	Collections map[string]CollectionAccessor
}

// DatabaseAccessors binds an accessor bundle to a database handle. admin may be nil, in which case Drop always fails.
func DatabaseAccessors(db driver.Database, admin driver.Client, opts AccessorOptions) *Accessors {
	return &Accessors{
		db:          db,
		admin:       admin,
		opts:        opts,
		Collections: map[string]CollectionAccessor{},
	}
}

// Database returns the handle the bundle is bound to
func (a *Accessors) Database() driver.Database {
	return a.db
}

func (a *Accessors) ready() error {
	if a.db == nil {
		return errors.New(errors.Validation, "no database has been provisioned")
	}
	return nil
}

// Query runs a parameterized query with row counting enabled
func (a *Accessors) Query(ctx context.Context, query string, bindVars map[string]any) (driver.Cursor, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.db.Query(ctx, query, bindVars, &driver.QueryOptions{Count: true})
}

// Drop removes the database. It requires an administrator session.
func (a *Accessors) Drop(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	if a.admin == nil {
		return errors.New(errors.Forbidden, "Dropping database %q requires root privileges.", a.db.Name())
	}
	return errors.Wrap(a.admin.DropDatabase(ctx, a.db.Name()), errors.Unknown, "failed to drop database %q", a.db.Name())
}

// Truncate empties every collection in the database and returns true
func (a *Accessors) Truncate(ctx context.Context) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	collections, err := a.db.Collections(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.Unknown, "failed to list collections of %q", a.db.Name())
	}
	if a.opts.TruncateConcurrency <= 1 {
		for _, col := range collections {
			if err := col.Truncate(ctx); err != nil {
				return false, errors.Wrap(err, errors.Unknown, "failed to truncate %q", col.Name())
			}
		}
		return true, nil
	}
	egp, ctx := errgroup.WithContext(ctx)
	egp.SetLimit(a.opts.TruncateConcurrency)
	for _, col := range collections {
		col := col
		egp.Go(func() error {
			return errors.Wrap(col.Truncate(ctx), errors.Unknown, "failed to truncate %q", col.Name())
		})
	}
	if err := egp.Wait(); err != nil {
		return false, err
	}
	return true, nil
}

// Transaction begins a transaction over the given read and write collections
func (a *Accessors) Transaction(ctx context.Context, collections driver.TransactionCollections) (driver.Transaction, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.db.BeginTransaction(ctx, collections, nil)
}

// merge adds collection accessors without dropping the ones already present
func (a *Accessors) merge(collections map[string]CollectionAccessor) {
	for name, accessor := range collections {
		a.Collections[name] = accessor
	}
}

// rebind points the bundle at another database, keeping merged collections
func (a *Accessors) rebind(db driver.Database) {
	a.db = db
}
