// Package postgres implements the inventory store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

var _ importer.Store = (*Store)(nil)

// DBTX is the subset of pgxpool.Pool the store uses. pgx.Tx satisfies it
// too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DBTX = (*pgxpool.Pool)(nil)

// Store reads and writes houses, rooms and items.
type Store struct {
	db DBTX
}

// New returns a Store over db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

const houseColumns = `id, owner_id, name, address1, address2, city, state, zip`

func scanHouse(row pgx.Row) (importer.House, error) {
	var h importer.House
	err := row.Scan(&h.ID, &h.OwnerID, &h.Name, &h.Address1, &h.Address2, &h.City, &h.State, &h.Zip)
	return h, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return importer.ErrNotFound
	}
	return err
}

// FindHouse looks a house up by its natural key.
func (s *Store) FindHouse(ctx context.Context, ownerID, address1, city, state string) (importer.House, error) {
	h, err := scanHouse(s.db.QueryRow(ctx, `
		SELECT `+houseColumns+`
		FROM houses
		WHERE owner_id = $1
		  AND lower(btrim(address1)) = lower(btrim($2))
		  AND lower(btrim(city)) = lower(btrim($3))
		  AND lower(btrim(state)) = lower(btrim($4))
		ORDER BY created_at, id
		LIMIT 1`,
		ownerID, address1, city, state))
	if err != nil {
		return importer.House{}, notFound(err)
	}
	return h, nil
}

// ListHouses returns the owner's houses in creation order.
func (s *Store) ListHouses(ctx context.Context, ownerID string) ([]importer.House, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+houseColumns+`
		FROM houses
		WHERE owner_id = $1
		ORDER BY created_at, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	houses := make([]importer.House, 0)
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		houses = append(houses, h)
	}
	return houses, rows.Err()
}

// CreateHouse stores h, assigning an ID when it has none.
func (s *Store) CreateHouse(ctx context.Context, h importer.House) (importer.House, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO houses (`+houseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.ID, h.OwnerID, h.Name, h.Address1, h.Address2, h.City, h.State, h.Zip)
	if err != nil {
		return importer.House{}, fmt.Errorf("insert house: %w", err)
	}
	return h, nil
}

// FindRoom looks a room up by house and name.
func (s *Store) FindRoom(ctx context.Context, houseID, name string) (importer.Room, error) {
	var r importer.Room
	err := s.db.QueryRow(ctx, `
		SELECT id, house_id, name, floor, notes
		FROM rooms
		WHERE house_id = $1 AND lower(btrim(name)) = lower(btrim($2))
		ORDER BY created_at, id
		LIMIT 1`,
		houseID, name).Scan(&r.ID, &r.HouseID, &r.Name, &r.Floor, &r.Notes)
	if err != nil {
		return importer.Room{}, notFound(err)
	}
	return r, nil
}

// CreateRoom stores r, assigning an ID when it has none.
func (s *Store) CreateRoom(ctx context.Context, r importer.Room) (importer.Room, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO rooms (id, house_id, name, floor, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.HouseID, r.Name, r.Floor, r.Notes)
	if err != nil {
		return importer.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return r, nil
}

// FindItem looks an item up by room, name, brand and model.
func (s *Store) FindItem(ctx context.Context, roomID, name, brand, model string) (importer.Item, error) {
	var it importer.Item
	err := s.db.QueryRow(ctx, `
		SELECT id, room_id, name, category, brand, model, serial_number,
		       price::float8, status, condition, notes, is_imported
		FROM items
		WHERE room_id = $1
		  AND lower(btrim(name)) = lower(btrim($2))
		  AND lower(btrim(brand)) = lower(btrim($3))
		  AND lower(btrim(model)) = lower(btrim($4))
		ORDER BY created_at, id
		LIMIT 1`,
		roomID, name, brand, model).Scan(
		&it.ID, &it.RoomID, &it.Name, &it.Category, &it.Brand, &it.Model, &it.SerialNumber,
		&it.Price, &it.Status, &it.Condition, &it.Notes, &it.IsImported)
	if err != nil {
		return importer.Item{}, notFound(err)
	}
	return it, nil
}

// CreateItem stores it, assigning an ID when it has none.
func (s *Store) CreateItem(ctx context.Context, it importer.Item) (importer.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO items (id, room_id, name, category, brand, model, serial_number,
		                   price, status, condition, notes, is_imported)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		it.ID, it.RoomID, it.Name, it.Category, it.Brand, it.Model, it.SerialNumber,
		it.Price, it.Status, it.Condition, it.Notes, it.IsImported)
	if err != nil {
		return importer.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return it, nil
}

// UpdateItem overwrites an item's importable fields.
func (s *Store) UpdateItem(ctx context.Context, id string, f importer.ItemFields) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE items
		SET name = $2, category = $3, brand = $4, model = $5, serial_number = $6,
		    price = $7, status = $8, condition = $9, notes = $10, updated_at = now()
		WHERE id = $1`,
		id, f.Name, f.Category, f.Brand, f.Model, f.SerialNumber,
		f.Price, f.Status, f.Condition, f.Notes)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return importer.ErrNotFound
	}
	return nil
}

// Ping checks connectivity; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}
