package provision

import (
	"encoding/json"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/logging"
	"github.com/autom8ter/provision/util"
)

// Config configures an Ensure run
type Config struct {
	// URL locates the server, e.g. http://localhost:8529 or embedded://local
	URL string `json:"url" validate:"required"`
	// Name is the database to provision. Defaults to _system.
	Name string `json:"name"`
	// RootPassword is the administrator password. Without it the database cannot be created or dropped.
	RootPassword string `json:"rootPassword"`
	// Options are the descriptors applied in order
	Options []Descriptor `json:"options"`
	// Lenient skips descriptors of an unknown type instead of failing
	Lenient bool `json:"lenient"`
	// TruncateConcurrency bounds how many collections Truncate empties at once. Zero or one is sequential.
	TruncateConcurrency int            `json:"truncateConcurrency" validate:"gte=0"`
	Logger              logging.Logger `json:"-"`
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = driver.SystemDatabase
	}
	if c.Logger == nil {
		c.Logger = defaultLogger()
	}
}

// ToolsConfig configures an administrator Migrate run
type ToolsConfig struct {
	URL                 string         `json:"url" validate:"required"`
	RootPassword        string         `json:"rootPassword"`
	Lenient             bool           `json:"lenient"`
	TruncateConcurrency int            `json:"truncateConcurrency" validate:"gte=0"`
	Logger              logging.Logger `json:"-"`
}

func (c *ToolsConfig) setDefaults() {
	if c.Logger == nil {
		c.Logger = defaultLogger()
	}
}

func defaultLogger() logging.Logger {
	logger, err := logging.New("info", map[string]any{})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// ParseConfig reads an ensure document from yaml or json
func ParseConfig(content []byte) (Config, error) {
	var cfg Config
	bits, err := util.YAMLToJSON(content)
	if err != nil {
		return cfg, errors.Wrap(err, errors.Validation, "invalid config")
	}
	if err := json.Unmarshal(bits, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.Validation, "invalid config")
	}
	return cfg, nil
}
