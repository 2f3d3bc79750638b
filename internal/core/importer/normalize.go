package importer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Field is a canonical import column.
type Field string

const (
	FieldName         Field = "name"
	FieldCategory     Field = "category"
	FieldBrand        Field = "brand"
	FieldModel        Field = "model"
	FieldSerialNumber Field = "serialNumber"
	FieldPrice        Field = "price"
	FieldStatus       Field = "status"
	FieldCondition    Field = "condition"
	FieldNotes        Field = "notes"

	FieldHouseName    Field = "houseName"
	FieldHouseAddress Field = "houseAddress"
	FieldAddress2     Field = "address2"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldZip          Field = "zip"

	FieldRoomName  Field = "roomName"
	FieldRoomFloor Field = "roomFloor"
	FieldRoomNotes Field = "roomNotes"
)

// ErrMissingName is returned for rows without an item name.
var ErrMissingName = errors.New("item name is required")

// defaultAliases lists, per field, the headers and property names tried in
// order. Spreadsheet headers come first, then camelCase property names.
// Matching folds case, spaces and punctuation, so "Item Name", "item_name"
// and "itemName" are the same header.
var defaultAliases = map[Field][]string{
	FieldName:         {"Item Name", "Item", "Name", "itemName", "name"},
	FieldCategory:     {"Category", "Item Category", "category"},
	FieldBrand:        {"Brand", "Manufacturer", "Make", "brand"},
	FieldModel:        {"Model", "Model Number", "Model No", "model"},
	FieldSerialNumber: {"Serial Number", "Serial", "Serial No", "serialNumber"},
	FieldPrice:        {"Price", "Purchase Price", "Value", "Cost", "price", "purchasePrice"},
	FieldStatus:       {"Status", "status"},
	FieldCondition:    {"Condition", "condition"},
	FieldNotes:        {"Notes", "Item Notes", "Description", "notes"},

	FieldHouseName:    {"House Name", "House", "Property", "houseName"},
	FieldHouseAddress: {"House Address", "Address", "Address 1", "Address Line 1", "Street", "houseAddress", "address1"},
	FieldAddress2:     {"Address 2", "Address Line 2", "Unit", "address2"},
	FieldCity:         {"City", "House City", "city"},
	FieldState:        {"State", "House State", "Province", "state"},
	FieldZip:          {"Zip", "Zip Code", "Postal Code", "zipCode", "zip"},

	FieldRoomName:  {"Room Name", "Room", "Location", "roomName"},
	FieldRoomFloor: {"Floor", "Room Floor", "roomFloor"},
	FieldRoomNotes: {"Room Notes", "Room Description", "roomNotes"},
}

// Fields returns every canonical field name, sorted.
func Fields() []Field {
	out := make([]Field, 0, len(defaultAliases))
	for f := range defaultAliases {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Normalizer converts raw rows into canonical Rows.
type Normalizer struct {
	aliases        map[Field][]string // folded
	normalizeState bool
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer) error

// WithAliases adds extra headers per field, keyed by canonical field name.
// Extra headers are tried before the built-in ones.
func WithAliases(extra map[string][]string) NormalizerOption {
	return func(n *Normalizer) error {
		for name, headers := range extra {
			f := Field(name)
			if _, ok := n.aliases[f]; !ok {
				return fmt.Errorf("unknown import field %q", name)
			}
			folded := make([]string, 0, len(headers)+len(n.aliases[f]))
			for _, h := range headers {
				if k := foldHeader(h); k != "" {
					folded = append(folded, k)
				}
			}
			n.aliases[f] = append(folded, n.aliases[f]...)
		}
		return nil
	}
}

// WithStateNormalization rewrites full US state names to postal codes
// before house keys are built and houses are matched.
func WithStateNormalization(on bool) NormalizerOption {
	return func(n *Normalizer) error {
		n.normalizeState = on
		return nil
	}
}

// NewNormalizer builds a Normalizer from the default alias table.
func NewNormalizer(opts ...NormalizerOption) (*Normalizer, error) {
	n := &Normalizer{aliases: make(map[Field][]string, len(defaultAliases))}
	for f, headers := range defaultAliases {
		folded := make([]string, 0, len(headers))
		seen := make(map[string]bool, len(headers))
		for _, h := range headers {
			k := foldHeader(h)
			if !seen[k] {
				seen[k] = true
				folded = append(folded, k)
			}
		}
		n.aliases[f] = folded
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// DefaultNormalizer returns a Normalizer with built-in aliases only.
func DefaultNormalizer() *Normalizer {
	n, _ := NewNormalizer()
	return n
}

// Normalize converts one raw row. number is the 1-based row number used in
// messages. It returns ErrMissingName when no item name is present.
func (n *Normalizer) Normalize(number int, raw RawRow) (Row, error) {
	// Headers that fold together keep the first non-blank value in
	// header order.
	headers := make([]string, 0, len(raw))
	for k := range raw {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	cells := make(map[string]any, len(raw))
	for _, k := range headers {
		fk := foldHeader(k)
		if prev, dup := cells[fk]; dup && !isBlank(prev) {
			continue
		}
		cells[fk] = raw[k]
	}

	get := func(f Field) string {
		for _, alias := range n.aliases[f] {
			if v, ok := cells[alias]; ok {
				if s := cellString(v); s != "" {
					return s
				}
			}
		}
		return ""
	}

	row := Row{Number: number}
	row.Item = ItemFields{
		Name:         get(FieldName),
		Category:     get(FieldCategory),
		Brand:        get(FieldBrand),
		Model:        get(FieldModel),
		SerialNumber: get(FieldSerialNumber),
		Status:       get(FieldStatus),
		Condition:    get(FieldCondition),
		Notes:        get(FieldNotes),
	}
	row.House = HouseFields{
		Name:     get(FieldHouseName),
		Address1: get(FieldHouseAddress),
		Address2: get(FieldAddress2),
		City:     get(FieldCity),
		State:    get(FieldState),
		Zip:      get(FieldZip),
	}
	if n.normalizeState {
		row.House.State = NormalizeUSState(row.House.State)
	}
	row.Room = RoomFields{
		Name:  get(FieldRoomName),
		Floor: get(FieldRoomFloor),
		Notes: get(FieldRoomNotes),
	}

	row.HouseKey = HouseKey{Name: row.House.Name, Address: row.House.Address1}
	row.RoomKey = RoomKey{House: row.HouseKey, Name: row.Room.Name}

	row.PriceText = get(FieldPrice)
	row.PriceValid = true
	if row.PriceText != "" {
		row.Item.Price, row.PriceValid = priceValue(n.priceCell(cells))
	}

	if row.Item.Name == "" {
		return row, ErrMissingName
	}
	return row, nil
}

// priceCell returns the untouched price value so numeric JSON input is not
// round-tripped through a string.
func (n *Normalizer) priceCell(cells map[string]any) any {
	for _, alias := range n.aliases[FieldPrice] {
		if v, ok := cells[alias]; ok && !isBlank(v) {
			return v
		}
	}
	return nil
}

// IsEmpty reports whether every cell of the row is blank.
func IsEmpty(raw RawRow) bool {
	for _, v := range raw {
		if !isBlank(v) {
			return false
		}
	}
	return true
}

func isBlank(v any) bool {
	return cellString(v) == ""
}

// foldHeader lowercases a header and drops everything but letters and
// digits.
func foldHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
