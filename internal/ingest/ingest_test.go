package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

// =============================================================================
// CSV
// =============================================================================

func TestDecodeCSV(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []importer.RawRow
	}{
		{
			name:  "basic",
			input: []byte("Item Name,Price\nLamp,12.50\nSofa,899\n"),
			want: []importer.RawRow{
				{"Item Name": "Lamp", "Price": "12.50"},
				{"Item Name": "Sofa", "Price": "899"},
			},
		},
		{
			name:  "utf-8 bom",
			input: append([]byte{0xEF, 0xBB, 0xBF}, []byte("Item Name\nLamp\n")...),
			want:  []importer.RawRow{{"Item Name": "Lamp"}},
		},
		{
			name:  "excel formula wrappers and padding",
			input: []byte("Item Name , Serial Number\n  Lamp ,\"=\"\"00123\"\"\"\n"),
			want:  []importer.RawRow{{"Item Name": "Lamp", "Serial Number": "00123"}},
		},
		{
			name:  "short and long rows",
			input: []byte("Item Name,Brand\nLamp\nSofa,IKEA,extra\n"),
			want: []importer.RawRow{
				{"Item Name": "Lamp"},
				{"Item Name": "Sofa", "Brand": "IKEA"},
			},
		},
		{
			name:  "blank header column dropped",
			input: []byte("Item Name,,Brand\nLamp,ignored,IKEA\n"),
			want:  []importer.RawRow{{"Item Name": "Lamp", "Brand": "IKEA"}},
		},
		{
			name:  "invalid utf-8 replaced",
			input: []byte("Item Name\nLamp\xff\n"),
			want:  []importer.RawRow{{"Item Name": "Lamp�"}},
		},
		{
			name:  "header only",
			input: []byte("Item Name,Price\n"),
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCSV(bytes.NewReader(tt.input), Limits{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeCSV_UTF16(t *testing.T) {
	// "Item Name\nLamp\n" as UTF-16LE with BOM, the way Excel saves
	// "Unicode Text".
	text := "Item Name\nLamp\n"
	input := []byte{0xFF, 0xFE}
	for _, r := range text {
		input = append(input, byte(r), 0)
	}

	got, err := DecodeCSV(bytes.NewReader(input), Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []importer.RawRow{{"Item Name": "Lamp"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDecodeCSV_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		limits Limits
		want   error
	}{
		{"empty file", "", Limits{}, ErrNoHeader},
		{"only bom", "\xEF\xBB\xBF", Limits{}, ErrNoHeader},
		{"blank header", ",,\nLamp,,\n", Limits{}, ErrNoHeader},
		{"too many rows", "Item Name\na\nb\nc\n", Limits{MaxRows: 2}, ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tt.input), tt.limits)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeCSV_AtRowLimit(t *testing.T) {
	rows, err := DecodeCSV(strings.NewReader("Item Name\na\nb\n"), Limits{MaxRows: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("len(rows) = %d, want 2", len(rows))
	}
}

// =============================================================================
// JSON
// =============================================================================

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []importer.RawRow
	}{
		{
			name:  "array",
			input: `[{"name":"Lamp","price":12.5},{"name":"Sofa"}]`,
			want: []importer.RawRow{
				{"name": "Lamp", "price": json.Number("12.5")},
				{"name": "Sofa"},
			},
		},
		{
			name:  "wrapped",
			input: ` {"rows":[{"Item Name":"Lamp"}]}`,
			want:  []importer.RawRow{{"Item Name": "Lamp"}},
		},
		{
			name:  "null entries become empty rows",
			input: `[null,{"name":"Lamp"}]`,
			want:  []importer.RawRow{{}, {"name": "Lamp"}},
		},
		{
			name:  "bom",
			input: "\xEF\xBB\xBF[]",
			want:  []importer.RawRow{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON(strings.NewReader(tt.input), Limits{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		limits Limits
		want   error
	}{
		{"not json", "name,price", Limits{}, nil},
		{"object without rows", `{"items":[]}`, Limits{}, nil},
		{"scalar rows", `[1,2]`, Limits{}, nil},
		{"too many rows", `[{},{},{}]`, Limits{MaxRows: 2}, ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON(strings.NewReader(tt.input), tt.limits)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// =============================================================================
// Registry
// =============================================================================

func TestDetect(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
		wantErr     bool
	}{
		{"items.csv", "", "csv", false},
		{"ITEMS.CSV", "", "csv", false},
		{"items.json", "", "json", false},
		{"upload", "application/json; charset=utf-8", "json", false},
		{"upload", "text/csv", "csv", false},
		{"items.xlsx", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"|"+tt.contentType, func(t *testing.T) {
			f, err := Detect(tt.filename, tt.contentType)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Key != tt.want {
				t.Errorf("format = %q, want %q", f.Key, tt.want)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	got := Formats()
	want := []string{"csv", "json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Formats() = %v, want %v", got, want)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Register(Format{Key: "csv"})
}

func TestDecode_FeedsPreview(t *testing.T) {
	input := "House Name,House Address,Room,Item Name,Price\nMain,1 Elm St,Den,Lamp,-5\nMain,1 Elm St,Den,,3\n"
	rows, err := Decode("items.csv", "", strings.NewReader(input), Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := importer.BuildPreview(rows, nil)
	if len(p.Items) != 1 || len(p.Errors) != 1 || len(p.Warnings) != 1 {
		t.Errorf("items=%d errors=%d warnings=%d, want 1/1/1", len(p.Items), len(p.Errors), len(p.Warnings))
	}
	if p.Errors[0] != "Row 2: Item name is required" {
		t.Errorf("error = %q", p.Errors[0])
	}
}
