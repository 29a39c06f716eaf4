// Package driver is the capability interface the provisioning core depends on.
// Implementations classify every failure into an errors.Kind so callers never
// inspect message text.
package driver

import (
	"context"
)

// SystemDatabase is the database every server bootstraps with
const SystemDatabase = "_system"

// RootUser is the administrator account
const RootUser = "root"

// Client is an authenticated session against a database server
type Client interface {
	// Database logs into the named database with the client's credentials.
	// A missing database or user fails errors.Forbidden, a wrong password errors.WrongCredentials.
	Database(ctx context.Context, name string) (Database, error)
	// DatabaseExists reports whether the named database exists
	DatabaseExists(ctx context.Context, name string) (bool, error)
	// Databases lists the names of every database
	Databases(ctx context.Context) ([]string, error)
	// CreateDatabase creates a database, optionally with users granted rw on it.
	// An existing database fails errors.Duplicate.
	CreateDatabase(ctx context.Context, name string, opts *CreateDatabaseOptions) (Database, error)
	// DropDatabase removes a database and everything in it
	DropDatabase(ctx context.Context, name string) error
	// Cluster probes the deployment topology. Single servers return an error.
	Cluster(ctx context.Context) (ClusterHealth, error)
	// Route issues a raw request against the server api. body and result are json encoded.
	Route(ctx context.Context, method, path string, body any, result any) error
}

// Database is a handle bound to one database and one credential
type Database interface {
	Name() string
	// Collection returns an existing collection or fails errors.NotFound
	Collection(ctx context.Context, name string) (Collection, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	Collections(ctx context.Context) ([]Collection, error)
	// CreateCollection creates a collection. An existing one fails errors.Duplicate.
	CreateCollection(ctx context.Context, name string, opts *CollectionOptions) (Collection, error)
	// Analyzer returns an existing analyzer or fails errors.NotFound
	Analyzer(ctx context.Context, name string) (Analyzer, error)
	// CreateAnalyzer creates an analyzer. An existing one with another definition fails errors.Duplicate.
	CreateAnalyzer(ctx context.Context, def AnalyzerDefinition) (Analyzer, error)
	// View returns an existing view or fails errors.NotFound
	View(ctx context.Context, name string) (View, error)
	// CreateView creates a search view. An existing one fails errors.Duplicate.
	CreateView(ctx context.Context, name string, props *ViewProperties) (View, error)
	// Query runs a parameterized query
	Query(ctx context.Context, query string, bindVars map[string]any, opts *QueryOptions) (Cursor, error)
	// BeginTransaction starts a stream transaction over the given collections
	BeginTransaction(ctx context.Context, cols TransactionCollections, opts *TransactionOptions) (Transaction, error)
}

// Collection is a handle to one collection
type Collection interface {
	Name() string
	Type() CollectionType
	Properties(ctx context.Context) (CollectionProperties, error)
	SetProperties(ctx context.Context, opts SetCollectionPropertiesOptions) error
	// Truncate removes every document
	Truncate(ctx context.Context) error
	// Save creates a document. Inside Transaction.Step the write joins the transaction.
	Save(ctx context.Context, doc any) (DocumentMeta, error)
	// Import bulk loads documents
	Import(ctx context.Context, docs []any, opts *ImportOptions) (ImportStatistics, error)
	// EnsureGeoIndex returns the geo index over fields, creating it when absent. created reports whether it is new.
	EnsureGeoIndex(ctx context.Context, fields []string, geoJSON bool) (idx Index, created bool, err error)
	Indexes(ctx context.Context) ([]Index, error)
}

// Analyzer is a handle to a text analyzer
type Analyzer interface {
	Name() string
	Definition() AnalyzerDefinition
	// Remove drops the analyzer. force removes it even when views still use it.
	Remove(ctx context.Context, force bool) error
}

// View is a handle to a search view
type View interface {
	Name() string
	Properties(ctx context.Context) (ViewProperties, error)
}

// Cursor iterates query results
type Cursor interface {
	// Count is the total number of rows when counting was requested
	Count() int64
	HasMore() bool
	// ReadDocument decodes the next row into result
	ReadDocument(ctx context.Context, result any) error
	Close() error
}

// Transaction is a stream transaction
type Transaction interface {
	ID() string
	// Step runs fn with a context bound to the transaction
	Step(ctx context.Context, fn func(ctx context.Context) error) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}
