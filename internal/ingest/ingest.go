// Package ingest turns uploaded files into raw rows for the importer.
//
// Decoders are registered by format key. CSV and JSON are built in; both
// strip byte order marks and replace invalid UTF-8 before parsing.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrTooManyRows       = errors.New("too many rows")
	ErrNoHeader          = errors.New("file has no header row")
)

// Limits bound what a decoder accepts. Zero means unlimited.
type Limits struct {
	MaxRows int
}

func (l Limits) check(n int) error {
	if l.MaxRows > 0 && n > l.MaxRows {
		return fmt.Errorf("%w: more than %d data rows", ErrTooManyRows, l.MaxRows)
	}
	return nil
}

// Decoder reads every row from r.
type Decoder interface {
	Decode(r io.Reader, limits Limits) ([]importer.RawRow, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.Reader, limits Limits) ([]importer.RawRow, error)

func (f DecoderFunc) Decode(r io.Reader, limits Limits) ([]importer.RawRow, error) {
	return f(r, limits)
}

// Format describes a registered decoder.
type Format struct {
	Key          string
	Extensions   []string
	ContentTypes []string
	Decoder      Decoder
}

var (
	registry   = make(map[string]Format)
	registryMu sync.RWMutex
)

// Register adds a format. Panics if the key is taken.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[f.Key]; exists {
		panic(fmt.Sprintf("ingest format already registered: %s", f.Key))
	}
	registry[f.Key] = f
}

// Get returns a format by key.
func Get(key string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[strings.ToLower(key)]
	return f, ok
}

// Formats returns the registered format keys, sorted.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Detect picks a format from the file name, falling back to the content
// type.
func Detect(filename, contentType string) (Format, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		for _, f := range registry {
			for _, e := range f.Extensions {
				if e == ext {
					return f, nil
				}
			}
		}
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		for _, f := range registry {
			for _, ct := range f.ContentTypes {
				if ct == mt {
					return f, nil
				}
			}
		}
	}

	return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
}

// Decode detects the format and decodes r.
func Decode(filename, contentType string, r io.Reader, limits Limits) ([]importer.RawRow, error) {
	f, err := Detect(filename, contentType)
	if err != nil {
		return nil, err
	}
	return f.Decoder.Decode(r, limits)
}

// textReader strips a UTF-8 or UTF-16 byte order mark (decoding UTF-16 as
// Excel writes it) and replaces invalid UTF-8 with U+FFFD.
func textReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

func init() {
	Register(Format{
		Key:          "csv",
		Extensions:   []string{".csv", ".txt"},
		ContentTypes: []string{"text/csv", "application/csv", "text/plain", "application/vnd.ms-excel"},
		Decoder:      DecoderFunc(DecodeCSV),
	})
	Register(Format{
		Key:          "json",
		Extensions:   []string{".json"},
		ContentTypes: []string{"application/json"},
		Decoder:      DecoderFunc(DecodeJSON),
	})
}
