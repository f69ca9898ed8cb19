package main

import (
	"fmt"

	"sociapi/crud"
	"sociapi/database"
	"sociapi/database/memstore"
)

// openStores opens the configured persistence and returns it as the
// stores bundle the crud services are built on. The returned func closes
// the underlying connection.
func openStores(cfg *Config) (crud.Stores, func() error, error) {
	switch cfg.Database.Driver {
	case "memory":
		m := memstore.New()
		profiles := m.Profiles()
		return crud.Stores{
			Users:    m.Users(),
			Profiles: profiles,
			Graph:    profiles,
			Requests: m.FollowRequests(),
			Posts:    m.Posts(),
			Comments: m.Comments(),
			Hashtags: m.Hashtags(),
			OAuths:   m.OAuths(),
		}, func() error { return nil }, nil
	case "postgres":
		db := database.NewDB(cfg.Database.ConnectionInfo())
		if err := database.Open(db, cfg.IsProd()); err != nil {
			return crud.Stores{}, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			database.Close(db)
			return crud.Stores{}, nil, fmt.Errorf("err migrating database: %w", err)
		}
		profiles := db.Profiles()
		return crud.Stores{
			Users:    db.Users(),
			Profiles: profiles,
			Graph:    profiles,
			Requests: db.FollowRequests(),
			Posts:    db.Posts(),
			Comments: db.Comments(),
			Hashtags: db.Hashtags(),
			OAuths:   db.OAuths(),
		}, func() error { return database.Close(db) }, nil
	}
	return crud.Stores{}, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
