package driver

// Credentials is a basic username/password pair
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// IsZero reports whether no credential was supplied
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// CollectionType is the kind of collection
type CollectionType string

const (
	CollectionTypeDocument CollectionType = "document"
	CollectionTypeEdge     CollectionType = "edge"
)

// CollectionSchema is a json schema rule documents must satisfy
type CollectionSchema struct {
	Rule    map[string]any `json:"rule,omitempty"`
	Level   string         `json:"level,omitempty"`
	Message string         `json:"message,omitempty"`
}

// CollectionOptions configure a new collection
type CollectionOptions struct {
	Type              CollectionType    `json:"type,omitempty"`
	WaitForSync       *bool             `json:"waitForSync,omitempty"`
	Schema            *CollectionSchema `json:"schema,omitempty"`
	WriteConcern      int               `json:"writeConcern,omitempty"`
	ReplicationFactor int               `json:"replicationFactor,omitempty"`
}

// CollectionProperties are the current settings of a collection
type CollectionProperties struct {
	Name              string            `json:"name"`
	Type              CollectionType    `json:"type"`
	WaitForSync       bool              `json:"waitForSync"`
	Schema            *CollectionSchema `json:"schema,omitempty"`
	WriteConcern      int               `json:"writeConcern,omitempty"`
	ReplicationFactor int               `json:"replicationFactor,omitempty"`
}

// SetCollectionPropertiesOptions changes the mutable properties of a collection. Zero values are left untouched.
type SetCollectionPropertiesOptions struct {
	WaitForSync       *bool             `json:"waitForSync,omitempty"`
	Schema            *CollectionSchema `json:"schema,omitempty"`
	WriteConcern      int               `json:"writeConcern,omitempty"`
	ReplicationFactor int               `json:"replicationFactor,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (s SetCollectionPropertiesOptions) IsEmpty() bool {
	return s.WaitForSync == nil && s.Schema == nil && s.WriteConcern == 0 && s.ReplicationFactor == 0
}

// DatabaseUser is a user created together with a database
type DatabaseUser struct {
	Username string         `json:"username"`
	Password string         `json:"passwd"`
	Active   *bool          `json:"active,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// CreateDatabaseOptions configure a new database
type CreateDatabaseOptions struct {
	Users []DatabaseUser `json:"users,omitempty"`
}

// ClusterHealth describes a clustered deployment
type ClusterHealth struct {
	ID      string   `json:"id"`
	Servers []string `json:"servers"`
}

// DocumentMeta identifies a stored document
type DocumentMeta struct {
	Key string `json:"_key"`
	ID  string `json:"_id"`
	Rev string `json:"_rev"`
}

// OnDuplicate controls how an import treats existing keys
type OnDuplicate string

const (
	OnDuplicateError   OnDuplicate = "error"
	OnDuplicateUpdate  OnDuplicate = "update"
	OnDuplicateReplace OnDuplicate = "replace"
	OnDuplicateIgnore  OnDuplicate = "ignore"
)

// ImportOptions configure a bulk import
type ImportOptions struct {
	OnDuplicate OnDuplicate `json:"onDuplicate,omitempty"`
	// Complete aborts the whole import on the first error
	Complete bool `json:"complete,omitempty"`
}

// ImportStatistics summarise a bulk import
type ImportStatistics struct {
	Created int64    `json:"created"`
	Errors  int64    `json:"errors"`
	Empty   int64    `json:"empty"`
	Updated int64    `json:"updated"`
	Ignored int64    `json:"ignored"`
	Details []string `json:"details,omitempty"`
}

// IndexType is the kind of index
type IndexType string

const (
	PrimaryIndex IndexType = "primary"
	EdgeIndex    IndexType = "edge"
	GeoIndex     IndexType = "geo"
)

// Index describes a collection index
type Index struct {
	ID      string    `json:"id"`
	Type    IndexType `json:"type"`
	Fields  []string  `json:"fields"`
	GeoJSON bool      `json:"geoJson,omitempty"`
}

// IsGeo reports whether the index is a geo index over exactly fields, in order
func (i Index) IsGeo(fields []string, geoJSON bool) bool {
	if i.Type != GeoIndex || i.GeoJSON != geoJSON || len(i.Fields) != len(fields) {
		return false
	}
	for n, f := range fields {
		if i.Fields[n] != f {
			return false
		}
	}
	return true
}

// AnalyzerTypeDelimiter splits text on a fixed delimiter
const AnalyzerTypeDelimiter = "delimiter"

// AnalyzerProperties are type specific analyzer settings
type AnalyzerProperties struct {
	Delimiter string `json:"delimiter,omitempty"`
}

// AnalyzerDefinition describes a text analyzer
type AnalyzerDefinition struct {
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Properties AnalyzerProperties `json:"properties"`
}

// ViewLink configures how a collection (or a field) is indexed by a view
type ViewLink struct {
	Analyzers          []string            `json:"analyzers,omitempty"`
	Fields             map[string]ViewLink `json:"fields,omitempty"`
	IncludeAllFields   *bool               `json:"includeAllFields,omitempty"`
	StoreValues        string              `json:"storeValues,omitempty"`
	TrackListPositions *bool               `json:"trackListPositions,omitempty"`
}

// ViewProperties configure a search view
type ViewProperties struct {
	Links                     map[string]ViewLink `json:"links,omitempty"`
	CleanupIntervalStep       int64               `json:"cleanupIntervalStep,omitempty"`
	CommitIntervalMsec        int64               `json:"commitIntervalMsec,omitempty"`
	ConsolidationIntervalMsec int64               `json:"consolidationIntervalMsec,omitempty"`
}

// QueryOptions configure a query
type QueryOptions struct {
	// Count asks the server for the total row count
	Count     bool `json:"count,omitempty"`
	BatchSize int  `json:"batchSize,omitempty"`
}

// TransactionCollections declares the collections a transaction touches
type TransactionCollections struct {
	Read      []string `json:"read,omitempty"`
	Write     []string `json:"write,omitempty"`
	Exclusive []string `json:"exclusive,omitempty"`
}

// TransactionOptions configure a transaction
type TransactionOptions struct {
	WaitForSync   bool `json:"waitForSync,omitempty"`
	AllowImplicit bool `json:"allowImplicit,omitempty"`
}
