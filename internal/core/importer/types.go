package importer

import "strings"

// RawRow is one parsed input row: a column header or property name mapped
// to a string or number.
type RawRow map[string]any

// HouseKey identifies a house within one import run. It is built from the
// house name and first address line as they appear in the input.
type HouseKey struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// IsZero reports whether the row carried no house identity at all.
func (k HouseKey) IsZero() bool { return k.Name == "" && k.Address == "" }

func (k HouseKey) String() string {
	switch {
	case k.Name == "":
		return k.Address
	case k.Address == "":
		return k.Name
	}
	return k.Name + " (" + k.Address + ")"
}

// fold returns the key the commit maps resolve on. Letter case and
// surrounding space do not distinguish houses.
func (k HouseKey) fold() HouseKey {
	return HouseKey{Name: foldKey(k.Name), Address: foldKey(k.Address)}
}

func foldKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// RoomKey identifies a room within one import run.
type RoomKey struct {
	House HouseKey `json:"house"`
	Name  string   `json:"name"`
}

// IsZero reports whether the row carried no room name.
func (k RoomKey) IsZero() bool { return k.Name == "" }

func (k RoomKey) String() string {
	if k.House.IsZero() {
		return k.Name
	}
	return k.House.String() + " / " + k.Name
}

func (k RoomKey) fold() RoomKey {
	return RoomKey{House: k.House.fold(), Name: foldKey(k.Name)}
}

// HouseFields are the importable attributes of a house.
type HouseFields struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip,omitempty"`
}

// House is a persisted house. Its natural key is
// (OwnerID, Address1, City, State).
type House struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	HouseFields
}

// Key returns the in-run key this persisted house answers to.
func (h House) Key() HouseKey {
	return HouseKey{Name: h.Name, Address: h.Address1}
}

// RoomFields are the importable attributes of a room.
type RoomFields struct {
	Name  string `json:"name"`
	Floor string `json:"floor,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Room is a persisted room. Its natural key is (HouseID, Name).
type Room struct {
	ID      string `json:"id"`
	HouseID string `json:"houseId"`
	RoomFields
}

// ItemFields are the importable attributes of an item. UpdateItem writes
// all of them onto an existing item.
type ItemFields struct {
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	Model        string  `json:"model,omitempty"`
	SerialNumber string  `json:"serialNumber,omitempty"`
	Price        float64 `json:"price"`
	Status       string  `json:"status,omitempty"`
	Condition    string  `json:"condition,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// Item is a persisted item. (RoomID, Name, Brand, Model) is used to detect
// likely duplicates and is not unique.
type Item struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
	ItemFields
	IsImported bool `json:"isImported"`
}

// Row is a normalized input row.
type Row struct {
	Number   int
	House    HouseFields
	Room     RoomFields
	Item     ItemFields
	HouseKey HouseKey
	RoomKey  RoomKey

	// PriceText is the raw price cell; PriceValid is false when it was
	// present but could not be parsed.
	PriceText  string
	PriceValid bool
}

// HouseCandidate is a deduplicated house in a preview.
type HouseCandidate struct {
	Row int      `json:"row"`
	Key HouseKey `json:"key"`
	HouseFields
}

// RoomCandidate is a deduplicated room in a preview.
type RoomCandidate struct {
	Row int     `json:"row"`
	Key RoomKey `json:"key"`
	RoomFields
}

// ItemCandidate is one item per valid input row.
type ItemCandidate struct {
	Row      int      `json:"row"`
	HouseKey HouseKey `json:"houseKey"`
	RoomKey  RoomKey  `json:"roomKey"`
	ItemFields
}

// Preview is the side-effect free result of deduplicating and validating
// an import. Callers must not commit a preview whose Errors is non-empty.
type Preview struct {
	Houses   []HouseCandidate `json:"houses"`
	Rooms    []RoomCandidate  `json:"rooms"`
	Items    []ItemCandidate  `json:"items"`
	Errors   []string         `json:"errors"`
	Warnings []string         `json:"warnings"`
}

// HasErrors reports whether commit must be blocked.
func (p *Preview) HasErrors() bool { return len(p.Errors) > 0 }

// Options are the user-chosen commit policies.
type Options struct {
	UpdateExisting      bool `json:"updateExisting"`
	SkipDuplicates      bool `json:"skipDuplicates"`
	CreateMissingHouses bool `json:"createMissingHouses"`
	CreateMissingRooms  bool `json:"createMissingRooms"`

	// CollectDiagnostics itemizes rows that were dropped or skipped at
	// commit time in Result.Diagnostics. Counters are unaffected.
	CollectDiagnostics bool `json:"diagnostics"`
}

// CreatedCounts counts entities persisted as new.
type CreatedCounts struct {
	Houses int `json:"houses"`
	Rooms  int `json:"rooms"`
	Items  int `json:"items"`
}

// UpdatedCounts counts existing entities overwritten in place.
type UpdatedCounts struct {
	Items int `json:"items"`
}

// SkippedCounts counts item rows that produced no write.
type SkippedCounts struct {
	Items int `json:"items"`
}

// Result is the authoritative report of what a commit actually did.
type Result struct {
	Created     CreatedCounts `json:"created"`
	Updated     UpdatedCounts `json:"updated"`
	Skipped     SkippedCounts `json:"skipped"`
	Summary     string        `json:"summary"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
}

// EntityKind names the level of the hierarchy a diagnostic refers to.
type EntityKind string

const (
	EntityHouse EntityKind = "house"
	EntityRoom  EntityKind = "room"
	EntityItem  EntityKind = "item"
)

// Reason explains why a row was not written.
type Reason string

const (
	ReasonUnresolvedHouse Reason = "unresolved_house"
	ReasonUnresolvedRoom  Reason = "unresolved_room"
	ReasonDuplicate       Reason = "duplicate"
	ReasonStorage         Reason = "storage_error"
)

// Diagnostic describes one row that was dropped or skipped during commit.
type Diagnostic struct {
	Row     int        `json:"row"`
	Entity  EntityKind `json:"entity"`
	Reason  Reason     `json:"reason"`
	Message string     `json:"message"`
}
