// Package store provides durable ProfileStore backends. Importing it
// registers the "sqlite" and "redis" store types.
package store

import (
	"github.com/kilianp07/smartcharging/core/factory"
	corestore "github.com/kilianp07/smartcharging/core/store"
)

func init() {
	_ = corestore.Register("sqlite", func(conf map[string]any) (corestore.ProfileStore, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "profiles.db"
		}
		return NewSQLiteStore(c.Path)
	})

	_ = corestore.Register("redis", func(conf map[string]any) (corestore.ProfileStore, error) {
		var c RedisConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRedisStore(c)
	})
}
