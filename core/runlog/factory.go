package runlog

import "github.com/homecharge/homecharge/core/factory"

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds a run-log backend factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates a Store from its configuration.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	return storeRegistry.Create(cfg)
}
