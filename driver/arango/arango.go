// Package arango implements the driver interfaces with the official ArangoDB go driver.
// It serves http:// and https:// urls.
package arango

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/arangodb/go-driver"
	arangohttp "github.com/arangodb/go-driver/http"
	provdriver "github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
)

func init() {
	provdriver.Register("http", Open)
	provdriver.Register("https", Open)
}

var (
	loginOverrides = map[errors.Kind]errors.Kind{
		errors.NotAuthorized: errors.WrongCredentials,
		errors.NotFound:      errors.Forbidden,
	}
	databaseOverrides = map[errors.Kind]errors.Kind{
		errors.NotAuthorized: errors.Forbidden,
		errors.NotFound:      errors.Forbidden,
	}
	createCollectionOverrides = map[errors.Kind]errors.Kind{
		errors.Forbidden: errors.CannotCreate,
	}
	analyzerOverrides = map[errors.Kind]errors.Kind{
		errors.Forbidden:     errors.InsufficientRights,
		errors.NotAuthorized: errors.InsufficientRights,
	}
)

type client struct {
	conn   driver.Connection
	client driver.Client
	creds  provdriver.Credentials
}

// Open returns a client authenticated with basic auth. No request is made until the client is used.
func Open(ctx context.Context, cfg provdriver.Config) (provdriver.Client, error) {
	conn, err := arangohttp.NewConnection(arangohttp.ConnectionConfig{
		Endpoints: []string{cfg.URL},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid server url %q", cfg.URL)
	}
	c, err := driver.NewClient(driver.ClientConfig{
		Connection:     conn,
		Authentication: driver.BasicAuthentication(cfg.Credentials.Username, cfg.Credentials.Password),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to create client")
	}
	return &client{conn: conn, client: c, creds: cfg.Credentials}, nil
}

// login checks the credential against the auth endpoint of the named database.
// A missing database answers 404 before the credential is looked at.
func (c *client) login(ctx context.Context, name string) error {
	req, err := c.conn.NewRequest(http.MethodPost, path.Join("_db", url.PathEscape(name), "_open/auth"))
	if err != nil {
		return errors.Wrap(err, errors.Internal, "")
	}
	if _, err := req.SetBody(map[string]string{
		"username": c.creds.Username,
		"password": c.creds.Password,
	}); err != nil {
		return errors.Wrap(err, errors.Internal, "")
	}
	resp, err := c.conn.Do(ctx, req)
	if err != nil {
		return wrap(err, nil, "")
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return errors.New(errors.WrongCredentials, "Wrong credentials")
	}
	return wrap(resp.CheckStatus(http.StatusOK), loginOverrides, "")
}

func (c *client) Database(ctx context.Context, name string) (provdriver.Database, error) {
	if err := c.login(ctx, name); err != nil {
		return nil, err
	}
	db, err := c.client.Database(ctx, name)
	if err != nil {
		return nil, wrap(err, databaseOverrides, "")
	}
	return &database{db: db}, nil
}

func (c *client) DatabaseExists(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.DatabaseExists(ctx, name)
	return exists, wrap(err, nil, "")
}

func (c *client) Databases(ctx context.Context) ([]string, error) {
	dbs, err := c.client.Databases(ctx)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	names := make([]string, 0, len(dbs))
	for _, db := range dbs {
		names = append(names, db.Name())
	}
	return names, nil
}

func (c *client) CreateDatabase(ctx context.Context, name string, opts *provdriver.CreateDatabaseOptions) (provdriver.Database, error) {
	options := &driver.CreateDatabaseOptions{}
	if opts != nil {
		for _, u := range opts.Users {
			options.Users = append(options.Users, driver.CreateDatabaseUserOptions{
				UserName: u.Username,
				Password: u.Password,
				Active:   u.Active,
				Extra:    u.Extra,
			})
		}
	}
	db, err := c.client.CreateDatabase(ctx, name, options)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &database{db: db}, nil
}

func (c *client) DropDatabase(ctx context.Context, name string) error {
	db, err := c.client.Database(ctx, name)
	if err != nil {
		return wrap(err, nil, "")
	}
	return wrap(db.Remove(ctx), nil, "")
}

func (c *client) Cluster(ctx context.Context) (provdriver.ClusterHealth, error) {
	cluster, err := c.client.Cluster(ctx)
	if err != nil {
		return provdriver.ClusterHealth{}, wrap(err, nil, "")
	}
	health, err := cluster.Health(ctx)
	if err != nil {
		return provdriver.ClusterHealth{}, wrap(err, nil, "")
	}
	result := provdriver.ClusterHealth{ID: health.ID}
	for id := range health.Health {
		result.Servers = append(result.Servers, string(id))
	}
	return result, nil
}

func (c *client) Route(ctx context.Context, method, path string, body any, result any) error {
	req, err := c.conn.NewRequest(method, path)
	if err != nil {
		return errors.Wrap(err, errors.Validation, "")
	}
	if body != nil {
		if _, err := req.SetBody(body); err != nil {
			return errors.Wrap(err, errors.Validation, "")
		}
	}
	resp, err := c.conn.Do(ctx, req)
	if err != nil {
		return wrap(err, nil, "")
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return wrap(resp.CheckStatus(http.StatusOK, http.StatusCreated, http.StatusAccepted), nil, "%s %s", method, path)
	}
	if result == nil {
		return nil
	}
	return wrap(resp.ParseBody("", result), nil, "")
}

type database struct {
	db driver.Database
}

func (d *database) Name() string {
	return d.db.Name()
}

func (d *database) Collection(ctx context.Context, name string) (provdriver.Collection, error) {
	col, err := d.db.Collection(ctx, name)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &collection{col: col}, nil
}

func (d *database) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := d.db.CollectionExists(ctx, name)
	return exists, wrap(err, nil, "")
}

func (d *database) Collections(ctx context.Context) ([]provdriver.Collection, error) {
	cols, err := d.db.Collections(ctx)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	var result []provdriver.Collection
	for _, col := range cols {
		props, err := col.Properties(ctx)
		if err != nil {
			return nil, wrap(err, nil, "")
		}
		if props.IsSystem {
			continue
		}
		result = append(result, &collection{col: col})
	}
	return result, nil
}

func (d *database) CreateCollection(ctx context.Context, name string, opts *provdriver.CollectionOptions) (provdriver.Collection, error) {
	options := &driver.CreateCollectionOptions{}
	if opts != nil {
		if opts.Type == provdriver.CollectionTypeEdge {
			options.Type = driver.CollectionTypeEdge
		}
		if opts.WaitForSync != nil {
			options.WaitForSync = *opts.WaitForSync
		}
		options.WriteConcern = opts.WriteConcern
		options.ReplicationFactor = opts.ReplicationFactor
		options.Schema = toSchema(opts.Schema)
	}
	col, err := d.db.CreateCollection(ctx, name, options)
	if err != nil {
		return nil, wrap(err, createCollectionOverrides, "")
	}
	return &collection{col: col}, nil
}

func (d *database) Analyzer(ctx context.Context, name string) (provdriver.Analyzer, error) {
	a, err := d.db.Analyzer(ctx, name)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &analyzer{a: a}, nil
}

func (d *database) CreateAnalyzer(ctx context.Context, def provdriver.AnalyzerDefinition) (provdriver.Analyzer, error) {
	_, a, err := d.db.EnsureAnalyzer(ctx, driver.ArangoSearchAnalyzerDefinition{
		Name: def.Name,
		Type: driver.ArangoSearchAnalyzerType(def.Type),
		Properties: driver.ArangoSearchAnalyzerProperties{
			Delimiter: def.Properties.Delimiter,
		},
	})
	if err != nil {
		return nil, wrap(err, analyzerOverrides, "")
	}
	return &analyzer{a: a}, nil
}

func (d *database) View(ctx context.Context, name string) (provdriver.View, error) {
	v, err := d.db.View(ctx, name)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &view{v: v}, nil
}

func (d *database) CreateView(ctx context.Context, name string, props *provdriver.ViewProperties) (provdriver.View, error) {
	v, err := d.db.CreateArangoSearchView(ctx, name, toViewProperties(props))
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &view{v: v}, nil
}

func (d *database) Query(ctx context.Context, query string, bindVars map[string]any, opts *provdriver.QueryOptions) (provdriver.Cursor, error) {
	if opts != nil {
		ctx = driver.WithQueryCount(ctx, opts.Count)
		if opts.BatchSize > 0 {
			ctx = driver.WithQueryBatchSize(ctx, opts.BatchSize)
		}
	}
	cur, err := d.db.Query(ctx, query, bindVars)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &cursor{cur: cur}, nil
}

func (d *database) BeginTransaction(ctx context.Context, cols provdriver.TransactionCollections, opts *provdriver.TransactionOptions) (provdriver.Transaction, error) {
	options := &driver.BeginTransactionOptions{}
	if opts != nil {
		options.WaitForSync = opts.WaitForSync
		options.AllowImplicit = opts.AllowImplicit
	}
	id, err := d.db.BeginTransaction(ctx, driver.TransactionCollections{
		Read:      cols.Read,
		Write:     cols.Write,
		Exclusive: cols.Exclusive,
	}, options)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	return &transaction{db: d.db, id: id}, nil
}

type collection struct {
	col driver.Collection
}

func (c *collection) Name() string {
	return c.col.Name()
}

func (c *collection) Type() provdriver.CollectionType {
	props, err := c.col.Properties(context.Background())
	if err == nil && props.Type == driver.CollectionTypeEdge {
		return provdriver.CollectionTypeEdge
	}
	return provdriver.CollectionTypeDocument
}

func (c *collection) Properties(ctx context.Context) (provdriver.CollectionProperties, error) {
	props, err := c.col.Properties(ctx)
	if err != nil {
		return provdriver.CollectionProperties{}, wrap(err, nil, "")
	}
	result := provdriver.CollectionProperties{
		Name:              props.Name,
		Type:              provdriver.CollectionTypeDocument,
		WaitForSync:       props.WaitForSync,
		WriteConcern:      props.WriteConcern,
		ReplicationFactor: props.ReplicationFactor,
	}
	if props.Type == driver.CollectionTypeEdge {
		result.Type = provdriver.CollectionTypeEdge
	}
	if props.Schema != nil {
		result.Schema = &provdriver.CollectionSchema{
			Level:   string(props.Schema.Level),
			Message: props.Schema.Message,
		}
		if rule, ok := props.Schema.Rule.(map[string]any); ok {
			result.Schema.Rule = rule
		}
	}
	return result, nil
}

func (c *collection) SetProperties(ctx context.Context, opts provdriver.SetCollectionPropertiesOptions) error {
	return wrap(c.col.SetProperties(ctx, driver.SetCollectionPropertiesOptions{
		WaitForSync:       opts.WaitForSync,
		WriteConcern:      opts.WriteConcern,
		ReplicationFactor: opts.ReplicationFactor,
		Schema:            toSchema(opts.Schema),
	}), nil, "")
}

func (c *collection) Truncate(ctx context.Context) error {
	return wrap(c.col.Truncate(ctx), nil, "")
}

func (c *collection) Save(ctx context.Context, doc any) (provdriver.DocumentMeta, error) {
	meta, err := c.col.CreateDocument(ctx, doc)
	if err != nil {
		return provdriver.DocumentMeta{}, wrap(err, nil, "")
	}
	return provdriver.DocumentMeta{Key: meta.Key, ID: string(meta.ID), Rev: meta.Rev}, nil
}

func (c *collection) Import(ctx context.Context, docs []any, opts *provdriver.ImportOptions) (provdriver.ImportStatistics, error) {
	options := &driver.ImportDocumentOptions{}
	if opts != nil {
		options.OnDuplicate = driver.ImportOnDuplicate(opts.OnDuplicate)
		options.Complete = opts.Complete
	}
	var details []string
	stats, err := c.col.ImportDocuments(driver.WithImportDetails(ctx, &details), docs, options)
	if err != nil {
		return provdriver.ImportStatistics{}, wrap(err, nil, "")
	}
	return provdriver.ImportStatistics{
		Created: stats.Created,
		Errors:  stats.Errors,
		Empty:   stats.Empty,
		Updated: stats.Updated,
		Ignored: stats.Ignored,
		Details: details,
	}, nil
}

func (c *collection) EnsureGeoIndex(ctx context.Context, fields []string, geoJSON bool) (provdriver.Index, bool, error) {
	idx, created, err := c.col.EnsureGeoIndex(ctx, fields, &driver.EnsureGeoIndexOptions{GeoJSON: geoJSON})
	if err != nil {
		return provdriver.Index{}, false, wrap(err, nil, "")
	}
	return toIndex(idx), created, nil
}

func (c *collection) Indexes(ctx context.Context) ([]provdriver.Index, error) {
	idxs, err := c.col.Indexes(ctx)
	if err != nil {
		return nil, wrap(err, nil, "")
	}
	result := make([]provdriver.Index, 0, len(idxs))
	for _, idx := range idxs {
		result = append(result, toIndex(idx))
	}
	return result, nil
}

type analyzer struct {
	a driver.ArangoSearchAnalyzer
}

func (a *analyzer) Name() string {
	return a.a.Name()
}

func (a *analyzer) Definition() provdriver.AnalyzerDefinition {
	def := a.a.Definition()
	return provdriver.AnalyzerDefinition{
		Name: def.Name,
		Type: string(def.Type),
		Properties: provdriver.AnalyzerProperties{
			Delimiter: def.Properties.Delimiter,
		},
	}
}

func (a *analyzer) Remove(ctx context.Context, force bool) error {
	return wrap(a.a.Remove(ctx, force), analyzerOverrides, "")
}

type view struct {
	v driver.View
}

func (v *view) Name() string {
	return v.v.Name()
}

func (v *view) Properties(ctx context.Context) (provdriver.ViewProperties, error) {
	asv, err := v.v.ArangoSearchView()
	if err != nil {
		return provdriver.ViewProperties{}, wrap(err, nil, "")
	}
	props, err := asv.Properties(ctx)
	if err != nil {
		return provdriver.ViewProperties{}, wrap(err, nil, "")
	}
	return fromViewProperties(props), nil
}

type cursor struct {
	cur driver.Cursor
}

func (c *cursor) Count() int64 {
	return c.cur.Count()
}

func (c *cursor) HasMore() bool {
	return c.cur.HasMore()
}

func (c *cursor) ReadDocument(ctx context.Context, result any) error {
	_, err := c.cur.ReadDocument(ctx, result)
	return wrap(err, nil, "")
}

func (c *cursor) Close() error {
	return wrap(c.cur.Close(), nil, "")
}

type transaction struct {
	db driver.Database
	id driver.TransactionID
}

func (t *transaction) ID() string {
	return string(t.id)
}

func (t *transaction) Step(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(driver.WithTransactionID(ctx, t.id))
}

func (t *transaction) Commit(ctx context.Context) error {
	return wrap(t.db.CommitTransaction(ctx, t.id, nil), nil, "commit transaction %s", t.id)
}

func (t *transaction) Abort(ctx context.Context) error {
	return wrap(t.db.AbortTransaction(ctx, t.id, nil), nil, "abort transaction %s", t.id)
}

func toSchema(schema *provdriver.CollectionSchema) *driver.CollectionSchemaOptions {
	if schema == nil {
		return nil
	}
	return &driver.CollectionSchemaOptions{
		Rule:    schema.Rule,
		Level:   driver.CollectionSchemaLevel(schema.Level),
		Message: schema.Message,
	}
}

func toIndex(idx driver.Index) provdriver.Index {
	return provdriver.Index{
		ID:      idx.ID(),
		Type:    provdriver.IndexType(idx.Type()),
		Fields:  idx.Fields(),
		GeoJSON: idx.GeoJSON(),
	}
}

func toViewProperties(props *provdriver.ViewProperties) *driver.ArangoSearchViewProperties {
	if props == nil {
		return nil
	}
	result := &driver.ArangoSearchViewProperties{}
	if props.CleanupIntervalStep > 0 {
		result.CleanupIntervalStep = &props.CleanupIntervalStep
	}
	if props.CommitIntervalMsec > 0 {
		result.CommitInterval = &props.CommitIntervalMsec
	}
	if props.ConsolidationIntervalMsec > 0 {
		result.ConsolidationInterval = &props.ConsolidationIntervalMsec
	}
	if len(props.Links) > 0 {
		result.Links = driver.ArangoSearchLinks{}
		for name, link := range props.Links {
			result.Links[name] = toLink(link)
		}
	}
	return result
}

func toLink(link provdriver.ViewLink) driver.ArangoSearchElementProperties {
	result := driver.ArangoSearchElementProperties{
		Analyzers:          link.Analyzers,
		IncludeAllFields:   link.IncludeAllFields,
		TrackListPositions: link.TrackListPositions,
		StoreValues:        driver.ArangoSearchStoreValues(link.StoreValues),
	}
	if len(link.Fields) > 0 {
		result.Fields = driver.ArangoSearchFields{}
		for name, field := range link.Fields {
			result.Fields[name] = toLink(field)
		}
	}
	return result
}

func fromViewProperties(props driver.ArangoSearchViewProperties) provdriver.ViewProperties {
	result := provdriver.ViewProperties{Links: map[string]provdriver.ViewLink{}}
	if props.CleanupIntervalStep != nil {
		result.CleanupIntervalStep = *props.CleanupIntervalStep
	}
	if props.CommitInterval != nil {
		result.CommitIntervalMsec = *props.CommitInterval
	}
	if props.ConsolidationInterval != nil {
		result.ConsolidationIntervalMsec = *props.ConsolidationInterval
	}
	for name, link := range props.Links {
		result.Links[name] = fromLink(link)
	}
	return result
}

func fromLink(link driver.ArangoSearchElementProperties) provdriver.ViewLink {
	result := provdriver.ViewLink{
		Analyzers:          link.Analyzers,
		IncludeAllFields:   link.IncludeAllFields,
		TrackListPositions: link.TrackListPositions,
		StoreValues:        string(link.StoreValues),
	}
	if len(link.Fields) > 0 {
		result.Fields = map[string]provdriver.ViewLink{}
		for name, field := range link.Fields {
			result.Fields[name] = fromLink(field)
		}
	}
	return result
}
