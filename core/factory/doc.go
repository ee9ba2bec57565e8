// Package factory provides the generic registry used to instantiate pluggable
// modules (profile stores, metrics sinks, schedule publishers) from
// configuration. A module is a type string plus a map of raw settings;
// factories decode the settings into typed structs and return the concrete
// implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[store.ProfileStore]()
//	reg.Register("sqlite", func(conf map[string]any) (store.ProfileStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewSQLiteStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "profiles.db"}})
package factory
