// Package sqlite implements the inventory store on an embedded SQLite
// database, for single-node installs and the import CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/store/migrations"
)

var _ importer.Store = (*Store)(nil)

type houseRow struct {
	ID       string `db:"id"`
	OwnerID  string `db:"owner_id"`
	Name     string `db:"name"`
	Address1 string `db:"address1"`
	Address2 string `db:"address2"`
	City     string `db:"city"`
	State    string `db:"state"`
	Zip      string `db:"zip"`
}

func (r houseRow) house() importer.House {
	return importer.House{ID: r.ID, OwnerID: r.OwnerID, HouseFields: importer.HouseFields{
		Name: r.Name, Address1: r.Address1, Address2: r.Address2, City: r.City, State: r.State, Zip: r.Zip,
	}}
}

type roomRow struct {
	ID      string `db:"id"`
	HouseID string `db:"house_id"`
	Name    string `db:"name"`
	Floor   string `db:"floor"`
	Notes   string `db:"notes"`
}

type itemRow struct {
	ID           string  `db:"id"`
	RoomID       string  `db:"room_id"`
	Name         string  `db:"name"`
	Category     string  `db:"category"`
	Brand        string  `db:"brand"`
	Model        string  `db:"model"`
	SerialNumber string  `db:"serial_number"`
	Price        float64 `db:"price"`
	Status       string  `db:"status"`
	Condition    string  `db:"condition"`
	Notes        string  `db:"notes"`
	IsImported   bool    `db:"is_imported"`
}

func (r itemRow) item() importer.Item {
	return importer.Item{ID: r.ID, RoomID: r.RoomID, IsImported: r.IsImported, ItemFields: importer.ItemFields{
		Name: r.Name, Category: r.Category, Brand: r.Brand, Model: r.Model, SerialNumber: r.SerialNumber,
		Price: r.Price, Status: r.Status, Condition: r.Condition, Notes: r.Notes,
	}}
}

var (
	houseCols = []string{"id", "owner_id", "name", "address1", "address2", "city", "state", "zip"}
	roomCols  = []string{"id", "house_id", "name", "floor", "notes"}
	itemCols  = []string{"id", "room_id", "name", "category", "brand", "model", "serial_number",
		"price", "status", "condition", "notes", "is_imported"}
)

// Store is an importer.Store backed by SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrations.SQLite(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// nocase compares a column to a value ignoring case and surrounding space.
func nocase(sb *sqlbuilder.SelectBuilder, col, val string) string {
	return fmt.Sprintf("lower(trim(%s)) = lower(trim(%s))", col, sb.Var(val))
}

func (s *Store) get(ctx context.Context, dest any, sb *sqlbuilder.SelectBuilder) error {
	query, args := sb.Build()
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return importer.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) insert(ctx context.Context, table string, cols []string, values ...any) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(values...)
	query, args := ib.Build()
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// FindHouse returns the owner's oldest house at the given address, city
// and state, compared without case. It returns importer.ErrNotFound when
// none matches.
func (s *Store) FindHouse(ctx context.Context, ownerID, address1, city, state string) (importer.House, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(houseCols...).From("houses")
	sb.Where(
		sb.Equal("owner_id", ownerID),
		nocase(sb, "address1", address1),
		nocase(sb, "city", city),
		nocase(sb, "state", state),
	)
	sb.OrderBy("rowid").Limit(1)

	var row houseRow
	if err := s.get(ctx, &row, sb); err != nil {
		return importer.House{}, err
	}
	return row.house(), nil
}

// ListHouses returns the owner's houses in creation order.
func (s *Store) ListHouses(ctx context.Context, ownerID string) ([]importer.House, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(houseCols...).From("houses")
	sb.Where(sb.Equal("owner_id", ownerID))
	sb.OrderBy("rowid")

	query, args := sb.Build()
	var rows []houseRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	houses := make([]importer.House, 0, len(rows))
	for _, r := range rows {
		houses = append(houses, r.house())
	}
	return houses, nil
}

// CreateHouse stores h, assigning an ID when it has none.
func (s *Store) CreateHouse(ctx context.Context, h importer.House) (importer.House, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	err := s.insert(ctx, "houses", houseCols,
		h.ID, h.OwnerID, h.Name, h.Address1, h.Address2, h.City, h.State, h.Zip)
	if err != nil {
		return importer.House{}, fmt.Errorf("insert house: %w", err)
	}
	return h, nil
}

// FindRoom returns the room named name in the house, ignoring case.
func (s *Store) FindRoom(ctx context.Context, houseID, name string) (importer.Room, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(roomCols...).From("rooms")
	sb.Where(sb.Equal("house_id", houseID), nocase(sb, "name", name))
	sb.OrderBy("rowid").Limit(1)

	var row roomRow
	if err := s.get(ctx, &row, sb); err != nil {
		return importer.Room{}, err
	}
	return importer.Room{ID: row.ID, HouseID: row.HouseID, RoomFields: importer.RoomFields{
		Name: row.Name, Floor: row.Floor, Notes: row.Notes,
	}}, nil
}

// CreateRoom stores r, assigning an ID when it has none.
func (s *Store) CreateRoom(ctx context.Context, r importer.Room) (importer.Room, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.insert(ctx, "rooms", roomCols, r.ID, r.HouseID, r.Name, r.Floor, r.Notes); err != nil {
		return importer.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return r, nil
}

// FindItem returns the first item in the room with the same name, brand
// and model. Empty brand or model only matches empty.
func (s *Store) FindItem(ctx context.Context, roomID, name, brand, model string) (importer.Item, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(itemCols...).From("items")
	sb.Where(
		sb.Equal("room_id", roomID),
		nocase(sb, "name", name),
		nocase(sb, "brand", brand),
		nocase(sb, "model", model),
	)
	sb.OrderBy("rowid").Limit(1)

	var row itemRow
	if err := s.get(ctx, &row, sb); err != nil {
		return importer.Item{}, err
	}
	return row.item(), nil
}

// CreateItem stores it, assigning an ID when it has none.
func (s *Store) CreateItem(ctx context.Context, it importer.Item) (importer.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	err := s.insert(ctx, "items", itemCols,
		it.ID, it.RoomID, it.Name, it.Category, it.Brand, it.Model, it.SerialNumber,
		it.Price, it.Status, it.Condition, it.Notes, it.IsImported)
	if err != nil {
		return importer.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return it, nil
}

// UpdateItem overwrites the importable fields of item id. IsImported is
// left as stored.
func (s *Store) UpdateItem(ctx context.Context, id string, f importer.ItemFields) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("items")
	ub.Set(
		ub.Assign("name", f.Name),
		ub.Assign("category", f.Category),
		ub.Assign("brand", f.Brand),
		ub.Assign("model", f.Model),
		ub.Assign("serial_number", f.SerialNumber),
		ub.Assign("price", f.Price),
		ub.Assign("status", f.Status),
		ub.Assign("condition", f.Condition),
		ub.Assign("notes", f.Notes),
		ub.Assign("updated_at", time.Now().UTC().Format(time.RFC3339Nano)),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return importer.ErrNotFound
	}
	return nil
}
