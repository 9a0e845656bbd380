package store

import "iris.app/engage/core/db"

// NewStores wires the persistent tiers over one connection pool.
func NewStores(database *db.DB) Stores {
	return Stores{
		Profiles: NewProfileStore(database),
		TurnLog:  NewTurnLogStore(database),
	}
}
