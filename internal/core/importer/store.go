package importer

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store lookups when nothing matches.
var ErrNotFound = errors.New("not found")

// Store is the persistence the commit phase needs. Lookups match names
// and address parts case-insensitively after trimming whitespace.
type Store interface {
	// FindHouse looks a house up by its natural key.
	FindHouse(ctx context.Context, ownerID, address1, city, state string) (House, error)
	// ListHouses returns every house the owner has.
	ListHouses(ctx context.Context, ownerID string) ([]House, error)
	CreateHouse(ctx context.Context, h House) (House, error)

	FindRoom(ctx context.Context, houseID, name string) (Room, error)
	CreateRoom(ctx context.Context, r Room) (Room, error)

	// FindItem returns the first item in the room matching on name, brand
	// and model. Empty brand or model only match empty values.
	FindItem(ctx context.Context, roomID, name, brand, model string) (Item, error)
	CreateItem(ctx context.Context, it Item) (Item, error)
	// UpdateItem overwrites the importable fields of an existing item and
	// leaves IsImported as it was.
	UpdateItem(ctx context.Context, id string, fields ItemFields) error
}
