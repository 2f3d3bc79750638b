package importer

import (
	"errors"
	"fmt"
	"strconv"
)

// BuildPreview normalizes, deduplicates and validates raw rows without
// touching storage. Row numbers in messages are 1-based positions in rows.
//
// Houses and rooms are deduplicated by key, first occurrence wins. Every
// valid row contributes exactly one item. A row without an item name is
// recorded in Errors and contributes nothing. Corrected values are
// recorded in Warnings and the row is kept.
func BuildPreview(rows []RawRow, n *Normalizer) *Preview {
	if n == nil {
		n = DefaultNormalizer()
	}

	p := &Preview{
		Houses:   []HouseCandidate{},
		Rooms:    []RoomCandidate{},
		Items:    make([]ItemCandidate, 0, len(rows)),
		Errors:   []string{},
		Warnings: []string{},
	}

	seenHouses := make(map[HouseKey]bool)
	seenRooms := make(map[RoomKey]bool)

	for i, raw := range rows {
		number := i + 1
		if IsEmpty(raw) {
			continue
		}

		row, err := n.Normalize(number, raw)
		if err != nil {
			p.Errors = append(p.Errors, rowMessage(number, rowError(err)))
			continue
		}

		p.Warnings = append(p.Warnings, checkRow(&row)...)

		if !row.HouseKey.IsZero() && !seenHouses[row.HouseKey] {
			seenHouses[row.HouseKey] = true
			p.Houses = append(p.Houses, HouseCandidate{Row: number, Key: row.HouseKey, HouseFields: row.House})
		}

		if !row.RoomKey.IsZero() && !row.HouseKey.IsZero() && !seenRooms[row.RoomKey] {
			seenRooms[row.RoomKey] = true
			p.Rooms = append(p.Rooms, RoomCandidate{Row: number, Key: row.RoomKey, RoomFields: row.Room})
		}

		p.Items = append(p.Items, ItemCandidate{
			Row:        number,
			HouseKey:   row.HouseKey,
			RoomKey:    row.RoomKey,
			ItemFields: row.Item,
		})
	}

	return p
}

// checkRow corrects out-of-range values in place and returns one warning
// per correction.
func checkRow(row *Row) []string {
	var warnings []string

	switch {
	case !row.PriceValid:
		warnings = append(warnings, rowMessage(row.Number,
			fmt.Sprintf("price %q is not a number and was set to 0", row.PriceText)))
		row.Item.Price = 0
	case row.Item.Price < 0:
		warnings = append(warnings, rowMessage(row.Number,
			fmt.Sprintf("negative price %s was set to 0", strconv.FormatFloat(row.Item.Price, 'f', -1, 64))))
		row.Item.Price = 0
	}

	if row.HouseKey.IsZero() {
		warnings = append(warnings, rowMessage(row.Number,
			"no house name or address given; the item cannot be placed"))
	} else if row.RoomKey.IsZero() {
		warnings = append(warnings, rowMessage(row.Number,
			"no room given; the item cannot be placed"))
	}

	return warnings
}

func rowError(err error) string {
	if errors.Is(err, ErrMissingName) {
		return "Item name is required"
	}
	return err.Error()
}

func rowMessage(number int, msg string) string {
	return fmt.Sprintf("Row %d: %s", number, msg)
}
