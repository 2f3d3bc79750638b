package importer

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalize_HeaderStyles(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRow
	}{
		{
			name: "spreadsheet headers",
			raw: RawRow{
				"Item Name": "Lamp", "Brand": "IKEA", "Model": "Hektar", "Serial Number": "SN-1",
				"House Name": "Main", "House Address": "1 Elm St", "City": "Springfield", "State": "IL",
				"Room Name": "Den",
			},
		},
		{
			name: "camelCase properties",
			raw: RawRow{
				"name": "Lamp", "brand": "IKEA", "model": "Hektar", "serialNumber": "SN-1",
				"houseName": "Main", "houseAddress": "1 Elm St", "city": "Springfield", "state": "IL",
				"roomName": "Den",
			},
		},
		{
			name: "loose casing and punctuation",
			raw: RawRow{
				"  ITEM_NAME ": "Lamp", "brand ": "IKEA", "model-number": "Hektar", "serial no": "SN-1",
				"house": "Main", "address line 1": "1 Elm St", "CITY": "Springfield", "state": "IL",
				"room": "Den",
			},
		},
	}

	want := HouseKey{Name: "Main", Address: "1 Elm St"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := DefaultNormalizer().Normalize(4, tt.raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if row.Number != 4 {
				t.Errorf("Number = %d, want 4", row.Number)
			}
			if row.Item.Name != "Lamp" || row.Item.Brand != "IKEA" || row.Item.Model != "Hektar" || row.Item.SerialNumber != "SN-1" {
				t.Errorf("Item = %+v", row.Item)
			}
			if row.HouseKey != want {
				t.Errorf("HouseKey = %+v, want %+v", row.HouseKey, want)
			}
			if row.RoomKey != (RoomKey{House: want, Name: "Den"}) {
				t.Errorf("RoomKey = %+v", row.RoomKey)
			}
			if row.House.City != "Springfield" || row.House.State != "IL" {
				t.Errorf("House = %+v", row.House)
			}
		})
	}
}

func TestNormalize_AliasOrder(t *testing.T) {
	row, err := DefaultNormalizer().Normalize(1, RawRow{"Item Name": "", "name": "Lamp"})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if row.Item.Name != "Lamp" {
		t.Errorf("Name = %q, want fallback to camelCase alias", row.Item.Name)
	}

	row, err = DefaultNormalizer().Normalize(1, RawRow{"Item Name": "Desk Lamp", "name": "Lamp"})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if row.Item.Name != "Desk Lamp" {
		t.Errorf("Name = %q, want first alias to win", row.Item.Name)
	}
}

func TestNormalize_FoldedHeaderCollision(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRow
		want string
	}{
		{"first header wins", RawRow{"Item Name": "Lamp", "item_name": "Desk"}, "Lamp"},
		{"blank first header", RawRow{"Item Name": " ", "item_name": "Desk"}, "Desk"},
		{"blank second header", RawRow{"ITEM NAME": "Lamp", "item name": ""}, "Lamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				row, err := DefaultNormalizer().Normalize(1, tt.raw)
				if err != nil {
					t.Fatalf("Normalize() error = %v", err)
				}
				if row.Item.Name != tt.want {
					t.Fatalf("run %d: Name = %q, want %q", i, row.Item.Name, tt.want)
				}
			}
		})
	}
}

func TestNormalize_MissingName(t *testing.T) {
	_, err := DefaultNormalizer().Normalize(1, RawRow{"Brand": "IKEA"})
	if !errors.Is(err, ErrMissingName) {
		t.Errorf("Normalize() error = %v, want ErrMissingName", err)
	}
}

func TestNormalize_Prices(t *testing.T) {
	tests := []struct {
		name      string
		price     any
		want      float64
		wantValid bool
	}{
		{"float", 12.5, 12.5, true},
		{"int", 3, 3, true},
		{"json number", json.Number("19.99"), 19.99, true},
		{"currency text", "$1,299.00", 1299, true},
		{"excel wrapped", `="45"`, 45, true},
		{"negative", -50, -50, true},
		{"garbage", "n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := DefaultNormalizer().Normalize(1, RawRow{"name": "Lamp", "price": tt.price})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if row.Item.Price != tt.want || row.PriceValid != tt.wantValid {
				t.Errorf("Price = %v (valid %v), want %v (valid %v)", row.Item.Price, row.PriceValid, tt.want, tt.wantValid)
			}
		})
	}
}

func TestNormalize_NoPrice(t *testing.T) {
	row, err := DefaultNormalizer().Normalize(1, RawRow{"name": "Lamp"})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if row.Item.Price != 0 || !row.PriceValid || row.PriceText != "" {
		t.Errorf("row = %+v, want zero valid price", row)
	}
}

func TestNormalize_StateNormalization(t *testing.T) {
	raw := RawRow{"name": "Lamp", "House Address": "1 Elm St", "State": "new  york"}

	off := DefaultNormalizer()
	row, _ := off.Normalize(1, raw)
	if row.House.State != "new  york" {
		t.Errorf("State = %q, want untouched", row.House.State)
	}

	on, err := NewNormalizer(WithStateNormalization(true))
	if err != nil {
		t.Fatal(err)
	}
	row, _ = on.Normalize(1, raw)
	if row.House.State != "NY" {
		t.Errorf("State = %q, want NY", row.House.State)
	}
}

func TestNewNormalizer_ExtraAliases(t *testing.T) {
	n, err := NewNormalizer(WithAliases(map[string][]string{
		"name":     {"Article"},
		"roomName": {"Zone"},
	}))
	if err != nil {
		t.Fatalf("NewNormalizer() error = %v", err)
	}

	row, err := n.Normalize(1, RawRow{"Article": "Vase", "Item Name": "ignored", "zone": "Hall", "House": "Main"})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if row.Item.Name != "Vase" {
		t.Errorf("Name = %q, want extra alias to take priority", row.Item.Name)
	}
	if row.Room.Name != "Hall" {
		t.Errorf("Room = %q, want Hall", row.Room.Name)
	}
}

func TestNewNormalizer_UnknownField(t *testing.T) {
	_, err := NewNormalizer(WithAliases(map[string][]string{"colour": {"Color"}}))
	if err == nil {
		t.Fatal("NewNormalizer() expected error for unknown field")
	}
}

func TestFields(t *testing.T) {
	fields := Fields()
	if len(fields) != len(defaultAliases) {
		t.Fatalf("Fields() length = %d, want %d", len(fields), len(defaultAliases))
	}
	for i := 1; i < len(fields); i++ {
		if fields[i-1] >= fields[i] {
			t.Errorf("Fields() not sorted at %d: %q >= %q", i, fields[i-1], fields[i])
		}
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		raw  RawRow
		want bool
	}{
		{RawRow{}, true},
		{RawRow{"a": "", "b": "  ", "c": nil}, true},
		{RawRow{"a": `=""`}, true},
		{RawRow{"a": 0}, false},
		{RawRow{"a": "x"}, false},
	}
	for _, tt := range tests {
		if got := IsEmpty(tt.raw); got != tt.want {
			t.Errorf("IsEmpty(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
