// Package memory provides an in-memory inventory store used by tests, the
// CLI dry-run mode and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

var _ importer.Store = (*Store)(nil)

// Op names a store operation for fault injection.
type Op string

const (
	OpFindHouse   Op = "FindHouse"
	OpListHouses  Op = "ListHouses"
	OpCreateHouse Op = "CreateHouse"
	OpFindRoom    Op = "FindRoom"
	OpCreateRoom  Op = "CreateRoom"
	OpFindItem    Op = "FindItem"
	OpCreateItem  Op = "CreateItem"
	OpUpdateItem  Op = "UpdateItem"
)

// FaultFunc may return an error to make the named operation fail. subject
// is the most specific name the operation carries (address, room or item
// name, item id).
type FaultFunc func(op Op, subject string) error

// Store keeps houses, rooms and items in maps guarded by one mutex.
type Store struct {
	mu     sync.RWMutex
	houses map[string]importer.House
	rooms  map[string]importer.Room
	items  map[string]importer.Item
	order  map[string]int // insertion sequence, for stable lookups
	seq    int
	fault  FaultFunc
	calls  map[Op]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		houses: make(map[string]importer.House),
		rooms:  make(map[string]importer.Room),
		items:  make(map[string]importer.Item),
		order:  make(map[string]int),
		calls:  make(map[Op]int),
	}
}

// SetFault installs a fault injector. Pass nil to clear it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Calls returns how many times op has been invoked.
func (s *Store) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// enter records the call and consults the fault injector. Callers hold mu.
func (s *Store) enter(op Op, subject string) error {
	s.calls[op]++
	if s.fault != nil {
		if err := s.fault(op, subject); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *Store) nextID(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	s.seq++
	s.order[id] = s.seq
	return id
}

func same(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// FindHouse returns the owner's oldest house at the given address, city
// and state, compared without case. It returns importer.ErrNotFound when
// none matches.
func (s *Store) FindHouse(_ context.Context, ownerID, address1, city, state string) (importer.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFindHouse, address1); err != nil {
		return importer.House{}, err
	}
	var best importer.House
	found := false
	for _, h := range s.houses {
		if h.OwnerID == ownerID && same(h.Address1, address1) && same(h.City, city) && same(h.State, state) {
			if !found || s.order[h.ID] < s.order[best.ID] {
				best, found = h, true
			}
		}
	}
	if !found {
		return importer.House{}, importer.ErrNotFound
	}
	return best, nil
}

// ListHouses returns the owner's houses in creation order.
func (s *Store) ListHouses(_ context.Context, ownerID string) ([]importer.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListHouses, ownerID); err != nil {
		return nil, err
	}
	out := make([]importer.House, 0)
	for _, h := range s.houses {
		if h.OwnerID == ownerID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

// CreateHouse stores h, assigning an ID when it has none.
func (s *Store) CreateHouse(_ context.Context, h importer.House) (importer.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateHouse, h.Address1); err != nil {
		return importer.House{}, err
	}
	h.ID = s.nextID(h.ID)
	s.houses[h.ID] = h
	return h, nil
}

// FindRoom returns the room named name in the house, ignoring case.
func (s *Store) FindRoom(_ context.Context, houseID, name string) (importer.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFindRoom, name); err != nil {
		return importer.Room{}, err
	}
	var best importer.Room
	found := false
	for _, r := range s.rooms {
		if r.HouseID == houseID && same(r.Name, name) {
			if !found || s.order[r.ID] < s.order[best.ID] {
				best, found = r, true
			}
		}
	}
	if !found {
		return importer.Room{}, importer.ErrNotFound
	}
	return best, nil
}

// CreateRoom stores r, assigning an ID when it has none.
func (s *Store) CreateRoom(_ context.Context, r importer.Room) (importer.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateRoom, r.Name); err != nil {
		return importer.Room{}, err
	}
	if _, ok := s.houses[r.HouseID]; !ok {
		return importer.Room{}, fmt.Errorf("create room %q: house %s does not exist", r.Name, r.HouseID)
	}
	r.ID = s.nextID(r.ID)
	s.rooms[r.ID] = r
	return r, nil
}

// FindItem returns the first item in the room with the same name, brand
// and model. Empty brand or model only matches empty.
func (s *Store) FindItem(_ context.Context, roomID, name, brand, model string) (importer.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFindItem, name); err != nil {
		return importer.Item{}, err
	}
	var best importer.Item
	found := false
	for _, it := range s.items {
		if it.RoomID == roomID && same(it.Name, name) && same(it.Brand, brand) && same(it.Model, model) {
			if !found || s.order[it.ID] < s.order[best.ID] {
				best, found = it, true
			}
		}
	}
	if !found {
		return importer.Item{}, importer.ErrNotFound
	}
	return best, nil
}

// CreateItem stores it, assigning an ID when it has none.
func (s *Store) CreateItem(_ context.Context, it importer.Item) (importer.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateItem, it.Name); err != nil {
		return importer.Item{}, err
	}
	if _, ok := s.rooms[it.RoomID]; !ok {
		return importer.Item{}, fmt.Errorf("create item %q: room %s does not exist", it.Name, it.RoomID)
	}
	it.ID = s.nextID(it.ID)
	s.items[it.ID] = it
	return it, nil
}

// UpdateItem overwrites the importable fields of item id. IsImported is
// left as stored.
func (s *Store) UpdateItem(_ context.Context, id string, fields importer.ItemFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateItem, id); err != nil {
		return err
	}
	it, ok := s.items[id]
	if !ok {
		return importer.ErrNotFound
	}
	it.ItemFields = fields
	s.items[id] = it
	return nil
}

// Houses returns a snapshot of every house in insertion order.
func (s *Store) Houses() []importer.House {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s, s.houses, func(h importer.House) string { return h.ID })
}

// Rooms returns a snapshot of every room in insertion order.
func (s *Store) Rooms() []importer.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s, s.rooms, func(r importer.Room) string { return r.ID })
}

// Items returns a snapshot of every item in insertion order.
func (s *Store) Items() []importer.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s, s.items, func(it importer.Item) string { return it.ID })
}

func sorted[T any](s *Store, m map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[id(out[i])] < s.order[id(out[j])] })
	return out
}
