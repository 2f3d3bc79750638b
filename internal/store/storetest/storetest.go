// Package storetest holds the behavior every importer.Store must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) importer.Store

// Run exercises s against the store contract and a full import.
func Run(t *testing.T, newStore Factory) {
	t.Run("HouseNaturalKey", func(t *testing.T) { testHouseNaturalKey(t, newStore(t)) })
	t.Run("ListHousesByOwner", func(t *testing.T) { testListHouses(t, newStore(t)) })
	t.Run("RoomNaturalKey", func(t *testing.T) { testRoomNaturalKey(t, newStore(t)) })
	t.Run("ItemMatching", func(t *testing.T) { testItemMatching(t, newStore(t)) })
	t.Run("UpdateItemKeepsImportedFlag", func(t *testing.T) { testUpdateItem(t, newStore(t)) })
	t.Run("ImportRoundTrip", func(t *testing.T) { testImportRoundTrip(t, newStore(t)) })
}

func seedHouse(t *testing.T, s importer.Store, owner string) importer.House {
	t.Helper()
	h, err := s.CreateHouse(context.Background(), importer.House{OwnerID: owner, HouseFields: importer.HouseFields{
		Name: "Main", Address1: "1 Elm St", City: "Springfield", State: "IL", Zip: "62701",
	}})
	require.NoError(t, err)
	require.NotEmpty(t, h.ID)
	return h
}

func testHouseNaturalKey(t *testing.T, s importer.Store) {
	ctx := context.Background()
	h := seedHouse(t, s, "owner-1")

	got, err := s.FindHouse(ctx, "owner-1", "  1 ELM st ", "springfield", "il")
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = s.FindHouse(ctx, "owner-2", "1 Elm St", "Springfield", "IL")
	assert.ErrorIs(t, err, importer.ErrNotFound)

	_, err = s.FindHouse(ctx, "owner-1", "1 Elm St", "Shelbyville", "IL")
	assert.ErrorIs(t, err, importer.ErrNotFound)
}

func testListHouses(t *testing.T, s importer.Store) {
	ctx := context.Background()
	a := seedHouse(t, s, "owner-1")
	seedHouse(t, s, "owner-2")

	houses, err := s.ListHouses(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []importer.House{a}, houses)

	none, err := s.ListHouses(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testRoomNaturalKey(t *testing.T, s importer.Store) {
	ctx := context.Background()
	h := seedHouse(t, s, "owner-1")

	r, err := s.CreateRoom(ctx, importer.Room{HouseID: h.ID, RoomFields: importer.RoomFields{Name: "Kitchen", Floor: "1"}})
	require.NoError(t, err)

	got, err := s.FindRoom(ctx, h.ID, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = s.FindRoom(ctx, h.ID, "Pantry")
	assert.ErrorIs(t, err, importer.ErrNotFound)
}

func testItemMatching(t *testing.T, s importer.Store) {
	ctx := context.Background()
	h := seedHouse(t, s, "owner-1")
	r, err := s.CreateRoom(ctx, importer.Room{HouseID: h.ID, RoomFields: importer.RoomFields{Name: "Den"}})
	require.NoError(t, err)

	lamp, err := s.CreateItem(ctx, importer.Item{RoomID: r.ID, ItemFields: importer.ItemFields{
		Name: "Lamp", Brand: "IKEA", Price: 20.5,
	}})
	require.NoError(t, err)

	got, err := s.FindItem(ctx, r.ID, "lamp", "ikea", "")
	require.NoError(t, err)
	assert.Equal(t, lamp, got)

	_, err = s.FindItem(ctx, r.ID, "Lamp", "IKEA", "Hektar")
	assert.ErrorIs(t, err, importer.ErrNotFound, "empty model only matches empty model")

	_, err = s.FindItem(ctx, r.ID, "Lamp", "", "")
	assert.ErrorIs(t, err, importer.ErrNotFound)
}

func testUpdateItem(t *testing.T, s importer.Store) {
	ctx := context.Background()
	h := seedHouse(t, s, "owner-1")
	r, err := s.CreateRoom(ctx, importer.Room{HouseID: h.ID, RoomFields: importer.RoomFields{Name: "Den"}})
	require.NoError(t, err)
	it, err := s.CreateItem(ctx, importer.Item{RoomID: r.ID, IsImported: true, ItemFields: importer.ItemFields{Name: "Lamp"}})
	require.NoError(t, err)

	fields := importer.ItemFields{Name: "Lamp", Brand: "IKEA", Price: 12, Condition: "good"}
	require.NoError(t, s.UpdateItem(ctx, it.ID, fields))

	got, err := s.FindItem(ctx, r.ID, "Lamp", "IKEA", "")
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)
	assert.Equal(t, fields, got.ItemFields)
	assert.True(t, got.IsImported)
}

func testImportRoundTrip(t *testing.T, s importer.Store) {
	ctx := context.Background()
	rows := []importer.RawRow{
		{"House Name": "Main", "House Address": "1 Elm St", "City": "Springfield", "State": "IL", "Room Name": "Den", "Item Name": "Lamp", "Brand": "IKEA"},
		{"House Name": "Main", "House Address": "1 Elm St", "City": "Springfield", "State": "IL", "Room Name": "Den", "Item Name": "Sofa", "Price": "$899"},
		{"House Name": "Main", "House Address": "1 Elm St", "City": "Springfield", "State": "IL", "Room Name": "Kitchen", "Item Name": "Kettle"},
	}
	opts := importer.Options{CreateMissingHouses: true, CreateMissingRooms: true}
	exec := importer.NewExecutor(s)

	first, err := exec.Commit(ctx, "owner-1", importer.BuildPreview(rows, nil), opts)
	require.NoError(t, err)
	assert.Equal(t, importer.CreatedCounts{Houses: 1, Rooms: 2, Items: 3}, first.Created)

	opts.UpdateExisting = true
	second, err := exec.Commit(ctx, "owner-1", importer.BuildPreview(rows, nil), opts)
	require.NoError(t, err)
	assert.Equal(t, importer.CreatedCounts{}, second.Created)
	assert.Equal(t, 3, second.Updated.Items)
	assert.Equal(t, 0, second.Skipped.Items)
}
