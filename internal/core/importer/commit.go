package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Outcome labels what happened to one candidate during commit.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeMatched    Outcome = "matched"
	OutcomeUpdated    Outcome = "updated"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeFailed     Outcome = "failed"
)

// Observer is told about every candidate outcome. Metrics hang off it.
type Observer interface {
	Observe(kind EntityKind, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) Observe(EntityKind, Outcome) {}

// Executor runs the commit phase: houses, then rooms, then items, one
// storage call at a time. A failure on one candidate is logged and counted
// and the run moves on; there is no transaction around the batch.
type Executor struct {
	store    Store
	logger   *slog.Logger
	observer Observer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for per-row failures.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewExecutor creates an Executor over store.
func NewExecutor(store Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    store,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state of one commit. The key maps are built once per level
// and are the only source of identifiers for the rest of the run.
type run struct {
	*Executor
	ctx     context.Context
	ownerID string
	opts    Options
	houses  map[HouseKey]string
	rooms   map[RoomKey]string
	result  *Result
}

// Commit applies a preview for ownerID. The caller is responsible for not
// committing a preview with errors; Commit does not re-validate it.
//
// Cancelling ctx does not stop a commit that has started. Only a missing
// owner or preview is reported as an error.
func (e *Executor) Commit(ctx context.Context, ownerID string, p *Preview, opts Options) (*Result, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("commit: owner id is required")
	}
	if p == nil {
		return nil, errors.New("commit: preview is required")
	}

	r := &run{
		Executor: e,
		ctx:      context.WithoutCancel(ctx),
		ownerID:  ownerID,
		opts:     opts,
		houses:   make(map[HouseKey]string, len(p.Houses)),
		rooms:    make(map[RoomKey]string, len(p.Rooms)),
		result:   &Result{},
	}
	if opts.CollectDiagnostics {
		r.result.Diagnostics = []Diagnostic{}
	}

	r.resolveHouses(p.Houses)
	r.resolveRooms(p.Rooms)
	r.applyItems(p.Items)

	r.result.Summary = Summary(r.result)
	return r.result, nil
}

// attempt runs one storage step for a candidate. A returned error is
// logged, observed as a failure and noted as a diagnostic; the caller only
// learns whether the step succeeded.
func (r *run) attempt(kind EntityKind, row int, fn func() error) bool {
	err := fn()
	if err == nil {
		return true
	}
	r.logger.Warn("import row failed",
		"owner_id", r.ownerID,
		"entity", string(kind),
		"row", row,
		"error", err,
	)
	r.observer.Observe(kind, OutcomeFailed)
	r.diagnose(row, kind, ReasonStorage, err.Error())
	return false
}

func (r *run) diagnose(row int, kind EntityKind, reason Reason, msg string) {
	if !r.opts.CollectDiagnostics {
		return
	}
	r.result.Diagnostics = append(r.result.Diagnostics, Diagnostic{
		Row:     row,
		Entity:  kind,
		Reason:  reason,
		Message: msg,
	})
}

// resolveHouses fills the house map. With CreateMissingHouses it looks up
// each candidate by natural key and creates the missing ones. Without it
// the map comes straight from the owner's existing houses and the
// candidates are ignored.
func (r *run) resolveHouses(candidates []HouseCandidate) {
	if !r.opts.CreateMissingHouses {
		r.attempt(EntityHouse, 0, func() error {
			existing, err := r.store.ListHouses(r.ctx, r.ownerID)
			if err != nil {
				return fmt.Errorf("list houses: %w", err)
			}
			for _, h := range existing {
				if _, taken := r.houses[h.Key().fold()]; !taken {
					r.houses[h.Key().fold()] = h.ID
				}
			}
			return nil
		})
		return
	}

	for _, c := range candidates {
		r.attempt(EntityHouse, c.Row, func() error {
			found, err := r.store.FindHouse(r.ctx, r.ownerID, c.Address1, c.City, c.State)
			switch {
			case err == nil:
				r.houses[c.Key.fold()] = found.ID
				r.observer.Observe(EntityHouse, OutcomeMatched)
				return nil
			case !errors.Is(err, ErrNotFound):
				return fmt.Errorf("find house %s: %w", c.Key, err)
			}

			created, err := r.store.CreateHouse(r.ctx, House{OwnerID: r.ownerID, HouseFields: c.HouseFields})
			if err != nil {
				return fmt.Errorf("create house %s: %w", c.Key, err)
			}
			r.houses[c.Key.fold()] = created.ID
			r.result.Created.Houses++
			r.observer.Observe(EntityHouse, OutcomeCreated)
			return nil
		})
	}
}

// resolveRooms fills the room map. It must run after resolveHouses. Rooms
// whose house did not resolve are dropped.
func (r *run) resolveRooms(candidates []RoomCandidate) {
	for _, c := range candidates {
		houseID, ok := r.houses[c.Key.House.fold()]
		if !ok {
			r.observer.Observe(EntityRoom, OutcomeUnresolved)
			r.diagnose(c.Row, EntityRoom, ReasonUnresolvedHouse,
				fmt.Sprintf("house %q was not found", c.Key.House.String()))
			continue
		}

		r.attempt(EntityRoom, c.Row, func() error {
			found, err := r.store.FindRoom(r.ctx, houseID, c.Name)
			switch {
			case err == nil:
				r.rooms[c.Key.fold()] = found.ID
				r.observer.Observe(EntityRoom, OutcomeMatched)
				return nil
			case !errors.Is(err, ErrNotFound):
				return fmt.Errorf("find room %s: %w", c.Key, err)
			}

			if !r.opts.CreateMissingRooms {
				r.observer.Observe(EntityRoom, OutcomeUnresolved)
				r.diagnose(c.Row, EntityRoom, ReasonUnresolvedRoom,
					fmt.Sprintf("room %q does not exist", c.Key.String()))
				return nil
			}

			created, err := r.store.CreateRoom(r.ctx, Room{HouseID: houseID, RoomFields: c.RoomFields})
			if err != nil {
				return fmt.Errorf("create room %s: %w", c.Key, err)
			}
			r.rooms[c.Key.fold()] = created.ID
			r.result.Created.Rooms++
			r.observer.Observe(EntityRoom, OutcomeCreated)
			return nil
		})
	}
}

// applyItems runs the conflict policy for every item candidate.
func (r *run) applyItems(candidates []ItemCandidate) {
	for _, c := range candidates {
		roomID, ok := r.rooms[c.RoomKey.fold()]
		if !ok {
			r.result.Skipped.Items++
			r.observer.Observe(EntityItem, OutcomeUnresolved)
			r.diagnose(c.Row, EntityItem, ReasonUnresolvedRoom,
				fmt.Sprintf("room %q could not be resolved", c.RoomKey.String()))
			continue
		}

		if !r.attempt(EntityItem, c.Row, func() error { return r.applyItem(roomID, c) }) {
			r.result.Skipped.Items++
		}
	}
}

func (r *run) applyItem(roomID string, c ItemCandidate) error {
	existing, err := r.store.FindItem(r.ctx, roomID, c.Name, c.Brand, c.Model)
	matched := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("find item %q: %w", c.Name, err)
	}

	switch Decide(matched, r.opts.UpdateExisting, r.opts.SkipDuplicates) {
	case DecisionUpdate:
		if err := r.store.UpdateItem(r.ctx, existing.ID, c.ItemFields); err != nil {
			return fmt.Errorf("update item %s: %w", existing.ID, err)
		}
		r.result.Updated.Items++
		r.observer.Observe(EntityItem, OutcomeUpdated)

	case DecisionSkip:
		r.result.Skipped.Items++
		r.observer.Observe(EntityItem, OutcomeSkipped)
		r.diagnose(c.Row, EntityItem, ReasonDuplicate,
			fmt.Sprintf("item %q already exists", c.Name))

	case DecisionDuplicate:
		fields := c.ItemFields
		fields.Name += DuplicateSuffix
		if _, err := r.store.CreateItem(r.ctx, Item{RoomID: roomID, ItemFields: fields, IsImported: true}); err != nil {
			return fmt.Errorf("create duplicate item %q: %w", fields.Name, err)
		}
		r.result.Created.Items++
		r.observer.Observe(EntityItem, OutcomeDuplicate)

	default:
		if _, err := r.store.CreateItem(r.ctx, Item{RoomID: roomID, ItemFields: c.ItemFields, IsImported: true}); err != nil {
			return fmt.Errorf("create item %q: %w", c.Name, err)
		}
		r.result.Created.Items++
		r.observer.Observe(EntityItem, OutcomeCreated)
	}
	return nil
}
