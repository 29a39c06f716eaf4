package registry

import (
	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/internal/safe"
	"github.com/autom8ter/provision/kv"
)

// KVDBOpener opens a key value database
type KVDBOpener func(params map[string]any) (kv.DB, error)

var registeredOpeners = safe.NewMap[KVDBOpener](nil)

// Register registers a KVDBOpener opener by name
func Register(name string, opener KVDBOpener) {
	registeredOpeners.Set(name, opener)
}

// Providers returns the names of the registered providers
func Providers() []string {
	return registeredOpeners.Keys()
}

// Open opens a registered key value database
func Open(name string, params map[string]any) (kv.DB, error) {
	opener, ok := registeredOpeners.Load(name)
	if !ok {
		return nil, errors.New(errors.NotFound, "kv provider %s is not registered", name)
	}
	return opener(params)
}
