// Package embedded is an in-process document server that implements the driver
// interfaces on top of a kv store. Servers are reached through embedded://<host> urls.
package embedded

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/internal/safe"
	"github.com/autom8ter/provision/kv"
	"github.com/autom8ter/provision/kv/kvutil"
	"github.com/autom8ter/provision/kv/registry"
	"github.com/autom8ter/provision/logging"
	"github.com/autom8ter/provision/util"
	"github.com/dgraph-io/ristretto"
	"github.com/gorilla/mux"
	"github.com/segmentio/ksuid"

	_ "github.com/autom8ter/provision/kv/badger"
	_ "github.com/autom8ter/provision/kv/tikv"
)

// Scheme is the url scheme embedded servers are registered under
const Scheme = "embedded"

func init() {
	driver.Register(Scheme, open)
}

var servers = safe.NewMap[*Server](nil)

// Register exposes the server as embedded://host
func Register(host string, srv *Server) {
	servers.Set(host, srv)
}

// Deregister removes the server registered under host
func Deregister(host string) {
	servers.Del(host)
}

func open(ctx context.Context, cfg driver.Config) (driver.Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid server url")
	}
	srv, ok := servers.Load(u.Host)
	if !ok {
		return nil, errors.New(errors.Unreachable, "getaddrinfo ENOTFOUND %s", u.Host)
	}
	return &client{srv: srv, creds: cfg.Credentials}, nil
}

// Config configures an embedded server
type Config struct {
	// Provider is the kv provider to store data in
	Provider string `json:"provider" validate:"required"`
	// Params are passed to the kv provider
	Params map[string]any `json:"params"`
	// RootPassword is the password of the root user
	RootPassword string `json:"rootPassword"`
	// Clustered makes the server report a cluster topology
	Clustered bool `json:"clustered"`
	Logger    logging.Logger `json:"-"`
}

// Server is an in-process document server
type Server struct {
	id     string
	cfg    Config
	kv     kv.DB
	logins *ristretto.Cache
	router *mux.Router
	logger logging.Logger
}

// New opens the kv store and bootstraps the _system database and the root user
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Provider == "" {
		cfg.Provider = "badger"
	}
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	db, err := registry.Open(cfg.Provider, cfg.Params)
	if err != nil {
		return nil, err
	}
	logins, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	s := &Server{
		id:     ksuid.New().String(),
		cfg:    cfg,
		kv:     db,
		logins: logins,
		logger: cfg.Logger,
	}
	s.router = s.routes()
	if err := s.bootstrap(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the unique id of the server
func (s *Server) ID() string {
	return s.id
}

// Close closes the underlying kv store
func (s *Server) Close(ctx context.Context) error {
	s.logins.Close()
	return s.kv.Close(ctx)
}

func (s *Server) bootstrap(ctx context.Context) error {
	hash, err := hashPassword(s.cfg.RootPassword)
	if err != nil {
		return err
	}
	return s.kv.Tx(false, func(tx kv.Tx) error {
		exists, err := getJSON(ctx, tx, databaseKey(driver.SystemDatabase), &databaseRecord{})
		if err != nil {
			return err
		}
		if !exists {
			if err := setJSON(ctx, tx, databaseKey(driver.SystemDatabase), databaseRecord{
				Name:    driver.SystemDatabase,
				Created: time.Now(),
			}); err != nil {
				return err
			}
		}
		var root userRecord
		if _, err := getJSON(ctx, tx, userKey(driver.RootUser), &root); err != nil {
			return err
		}
		root.User = driver.RootUser
		root.Active = true
		root.PasswordHash = hash
		s.logger.Debug(ctx, "bootstrapped embedded server", map[string]any{
			"server.id": s.id,
			"clustered": s.cfg.Clustered,
		})
		return setJSON(ctx, tx, userKey(driver.RootUser), root)
	})
}

type databaseRecord struct {
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

type userRecord struct {
	User         string         `json:"user"`
	PasswordHash []byte         `json:"passwordHash"`
	Active       bool           `json:"active"`
	Extra        map[string]any `json:"extra,omitempty"`
}

type grantRecord struct {
	Grant string `json:"grant"`
}

type collectionRecord struct {
	Name              string                   `json:"name"`
	Type              driver.CollectionType    `json:"type"`
	WaitForSync       bool                     `json:"waitForSync"`
	Schema            *driver.CollectionSchema `json:"schema,omitempty"`
	WriteConcern      int                      `json:"writeConcern,omitempty"`
	ReplicationFactor int                      `json:"replicationFactor,omitempty"`
}

type viewRecord struct {
	Name       string                `json:"name"`
	Properties driver.ViewProperties `json:"properties"`
}

func databaseKey(name string) []byte {
	return kvutil.Key("sys", "db", name)
}

func databasesPrefix() []byte {
	return kvutil.Prefix("sys", "db")
}

func userKey(name string) []byte {
	return kvutil.Key("sys", "user", name)
}

func usersPrefix() []byte {
	return kvutil.Prefix("sys", "user")
}

func grantKey(user, db string) []byte {
	return kvutil.Key("sys", "grant", user, db)
}

func grantsPrefix(user string) []byte {
	return kvutil.Prefix("sys", "grant", user)
}

func databasePrefix(db string) []byte {
	return kvutil.Prefix("db", db)
}

func collectionKey(db, name string) []byte {
	return kvutil.Key("db", db, "col", name)
}

func collectionsPrefix(db string) []byte {
	return kvutil.Prefix("db", db, "col")
}

func documentKey(db, col, key string) []byte {
	return kvutil.Key("db", db, "doc", col, key)
}

func documentsPrefix(db, col string) []byte {
	return kvutil.Prefix("db", db, "doc", col)
}

func indexKey(db, col, id string) []byte {
	return kvutil.Key("db", db, "idx", col, id)
}

func indexesPrefix(db, col string) []byte {
	return kvutil.Prefix("db", db, "idx", col)
}

func analyzerKey(db, name string) []byte {
	return kvutil.Key("db", db, "analyzer", name)
}

func viewKey(db, name string) []byte {
	return kvutil.Key("db", db, "view", name)
}

func viewsPrefix(db string) []byte {
	return kvutil.Prefix("db", db, "view")
}

func getJSON(ctx context.Context, tx kv.Getter, key []byte, v any) (bool, error) {
	bits, err := tx.Get(ctx, key)
	if err != nil {
		return false, errors.Wrap(err, errors.Internal, "")
	}
	if bits == nil {
		return false, nil
	}
	if err := json.Unmarshal(bits, v); err != nil {
		return false, errors.Wrap(err, errors.Internal, "corrupt record %s", string(key))
	}
	return true, nil
}

func setJSON(ctx context.Context, tx kv.Mutator, key []byte, v any) error {
	bits, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.Validation, "")
	}
	return errors.Wrap(tx.Set(ctx, key, bits), errors.Internal, "")
}

// scan calls fn with the key and value of every entry under prefix
func scan(tx kv.Getter, prefix []byte, fn func(key, value []byte) error) error {
	iter, err := tx.NewIterator(kv.IterOpts{Prefix: prefix})
	if err != nil {
		return errors.Wrap(err, errors.Internal, "")
	}
	defer iter.Close()
	for iter.Valid() {
		value, err := iter.Value()
		if err != nil {
			return errors.Wrap(err, errors.Internal, "")
		}
		if err := fn(iter.Key(), value); err != nil {
			return err
		}
		if err := iter.Next(); err != nil {
			return errors.Wrap(err, errors.Internal, "")
		}
	}
	return nil
}

// view runs a read in the transaction bound to ctx or in a new read only transaction
func (s *Server) view(ctx context.Context, db string, fn func(kv.Tx) error) error {
	if t, ok := transactionFrom(ctx); ok && t.db.name == db {
		return t.run(fn)
	}
	return s.kv.Tx(true, fn)
}

// update runs a write against col in the transaction bound to ctx or in a new transaction
func (s *Server) update(ctx context.Context, db, col string, fn func(kv.Tx) error) error {
	if t, ok := transactionFrom(ctx); ok && t.db.name == db {
		if err := t.canWrite(col); err != nil {
			return err
		}
		return t.run(fn)
	}
	return s.kv.Tx(false, fn)
}
