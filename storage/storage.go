// Package storage contains an extensible interface for providing persistence
// to the session core and other plugins.
//
// Stores provide simple create, read, update, merge, delete, and list
// operations over keyed documents. Models are represented as structs and
// should have a `PK() string` method.
//
// Examples:
//
//		registry.Register(storage.Plugin(memorystore.New()))
//
//	 func (m *MyPlugin) Init(ctx context.Context, r *portal.Registry) error {
//	   m.store = r.Get(storage.PluginName).(*storage.StoragePlugin)
//	 }
package storage

import "github.com/carebridge/portal"

// PluginName can be used to query the storage plugin.
const PluginName = "storage"

// Plugin wraps a storage implementation for registration.
func Plugin(impl Store) portal.Plugin {
	return &StoragePlugin{Store: impl}
}

// StoragePlugin exposes a Plugin interface for persisting data.
type StoragePlugin struct {
	Store
}

// From portal.Plugin.
func (p *StoragePlugin) Name() string {
	return PluginName
}

// InitModel can be called by a plugin or application to perform per model
// initialization. Stores that do not implement ModelInitializer should still
// function correctly, but may store data in a shared table.
func (p *StoragePlugin) InitModel(m Model) error {
	if i, ok := p.Store.(ModelInitializer); ok {
		return i.InitModel(m)
	}
	return nil
}
