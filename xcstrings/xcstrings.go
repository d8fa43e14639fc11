// Package xcstrings reads and writes Apple String Catalog (.xcstrings)
// files: a JSON document with a source language and an ordered mapping of
// entry key to per-language localization units.
//
// Entry order from the input file is preserved through a parse/save round
// trip so progress reporting and output diffs stay deterministic. Units
// carrying variation or substitution sub-structures (plural forms, device
// variants) are preserved byte-for-byte but never modified.
package xcstrings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Localization unit states as stored in the "state" field.
const (
	StateNew        = "new"
	StateTranslated = "translated"
	StateError      = "error"
)

// DefaultVersion is the catalog format version written by Xcode.
const DefaultVersion = "1.0"

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Catalog is a parsed .xcstrings document.
type Catalog struct {
	// SourceLanguage is the language of the authoritative text.
	SourceLanguage string
	// Version is the catalog format version ("1.0").
	Version string

	entries []*Entry
	byKey   map[string]*Entry
}

// Entry is one translatable string, identified by its key, with
// per-language localization units.
type Entry struct {
	Key             string
	Comment         string
	ExtractionState string
	Localizations   map[string]*Localization
}

// Localization is one language's translation state for one entry.
type Localization struct {
	StringUnit *StringUnit
	// Variations and Substitutions hold plural/device sub-structures
	// verbatim. Units carrying them are unsupported: never translated,
	// never rewritten.
	Variations    json.RawMessage
	Substitutions json.RawMessage
}

// StringUnit is the translated value and its state.
type StringUnit struct {
	State string `json:"state"`
	Value string `json:"value"`
}

// HasTranslation reports whether a completed translation is present.
// A unit in "error" or "new" state does not count, so it is retried on
// the next run.
func (l *Localization) HasTranslation() bool {
	return l != nil && l.StringUnit != nil && l.StringUnit.State == StateTranslated
}

// IsSupportedFormat reports whether the unit contains only a single string
// value, with no pluralization or device-variant sub-structure.
func (l *Localization) IsSupportedFormat() bool {
	return l == nil || (len(l.Variations) == 0 && len(l.Substitutions) == 0)
}

// ---------------------------------------------------------------------------
// Catalog construction and access
// ---------------------------------------------------------------------------

// New creates an empty catalog for the given source language.
func New(sourceLanguage string) *Catalog {
	return &Catalog{
		SourceLanguage: sourceLanguage,
		Version:        DefaultVersion,
		byKey:          make(map[string]*Entry),
	}
}

// Entries returns the catalog entries in file order. The returned slice is
// shared with the catalog and must not be reordered by the caller.
func (c *Catalog) Entries() []*Entry {
	return c.entries
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Get returns the entry for key, or nil if absent.
func (c *Catalog) Get(key string) *Entry {
	return c.byKey[key]
}

// Add appends an entry, preserving insertion order. Adding a key that
// already exists replaces the stored entry in place.
func (c *Catalog) Add(e *Entry) {
	if old, ok := c.byKey[e.Key]; ok {
		*old = *e
		return
	}
	c.entries = append(c.entries, e)
	c.byKey[e.Key] = e
}

// Unit returns the localization unit for lang, or nil if absent.
func (e *Entry) Unit(lang string) *Localization {
	return e.Localizations[lang]
}

// SetUnit replaces the localization unit for lang wholesale. Units for
// other languages are untouched.
func (e *Entry) SetUnit(lang string, l *Localization) {
	if e.Localizations == nil {
		e.Localizations = make(map[string]*Localization)
	}
	e.Localizations[lang] = l
}

// SourceText resolves the text to translate for this entry: the explicit
// source-language unit when it has a non-empty value, otherwise the entry
// key itself.
func (e *Entry) SourceText(sourceLang string) string {
	if unit := e.Localizations[sourceLang]; unit != nil && unit.StringUnit != nil && unit.StringUnit.Value != "" {
		return unit.StringUnit.Value
	}
	return e.Key
}

// ---------------------------------------------------------------------------
// JSON decoding (order-preserving)
// ---------------------------------------------------------------------------

// entryJSON is the wire shape of one entry value.
type entryJSON struct {
	Comment         string                   `json:"comment,omitempty"`
	ExtractionState string                   `json:"extractionState,omitempty"`
	Localizations   map[string]*Localization `json:"localizations,omitempty"`
}

// locJSON is the wire shape of one localization unit.
type locJSON struct {
	StringUnit    *StringUnit     `json:"stringUnit,omitempty"`
	Variations    json.RawMessage `json:"variations,omitempty"`
	Substitutions json.RawMessage `json:"substitutions,omitempty"`
}

// UnmarshalJSON decodes a localization unit, capturing unsupported
// sub-structures verbatim.
func (l *Localization) UnmarshalJSON(data []byte) error {
	var raw locJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.StringUnit = raw.StringUnit
	l.Variations = raw.Variations
	l.Substitutions = raw.Substitutions
	return nil
}

// MarshalJSON encodes a localization unit, round-tripping unsupported
// sub-structures untouched.
func (l *Localization) MarshalJSON() ([]byte, error) {
	return json.Marshal(locJSON{
		StringUnit:    l.StringUnit,
		Variations:    l.Variations,
		Substitutions: l.Substitutions,
	})
}

// Parse decodes a .xcstrings document, preserving entry order.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		SourceLanguage string          `json:"sourceLanguage"`
		Version        string          `json:"version"`
		Strings        json.RawMessage `json:"strings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if doc.SourceLanguage == "" {
		return nil, fmt.Errorf("parsing catalog: missing sourceLanguage")
	}

	c := New(doc.SourceLanguage)
	if doc.Version != "" {
		c.Version = doc.Version
	}
	if len(doc.Strings) == 0 {
		return c, nil
	}

	// encoding/json maps do not keep key order, so walk the "strings"
	// object token by token instead.
	dec := json.NewDecoder(bytes.NewReader(doc.Strings))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing strings: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing strings: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing strings: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parsing strings: non-string key %v", keyTok)
		}

		var raw entryJSON
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing entry %q: %w", key, err)
		}

		c.Add(&Entry{
			Key:             key,
			Comment:         raw.Comment,
			ExtractionState: raw.ExtractionState,
			Localizations:   raw.Localizations,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parsing strings: %w", err)
	}
	return c, nil
}

// ParseFile reads and decodes a .xcstrings file.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// JSON encoding (order-preserving)
// ---------------------------------------------------------------------------

// MarshalJSON encodes the catalog with entries in insertion order.
// Languages within an entry are emitted in sorted order, matching Xcode.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteString(`{"sourceLanguage":`)
	if err := encodeInline(enc, &buf, c.SourceLanguage); err != nil {
		return nil, err
	}

	buf.WriteString(`,"strings":{`)
	for i, e := range c.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeInline(enc, &buf, e.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeInline(enc, &buf, entryJSON{
			Comment:         e.Comment,
			ExtractionState: e.ExtractionState,
			Localizations:   e.Localizations,
		}); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	version := c.Version
	if version == "" {
		version = DefaultVersion
	}
	buf.WriteString(`,"version":`)
	if err := encodeInline(enc, &buf, version); err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// encodeInline writes one JSON value without the trailing newline that
// json.Encoder appends.
func encodeInline(enc *json.Encoder, buf *bytes.Buffer, v any) error {
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// WriteTo writes the catalog as indented JSON.
func (c *Catalog) WriteTo(w io.Writer) (int64, error) {
	compact, err := c.MarshalJSON()
	if err != nil {
		return 0, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return 0, err
	}
	out.WriteByte('\n')
	return out.WriteTo(w)
}

// Save writes the catalog to path atomically (temp file + rename).
func (c *Catalog) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".xcstrings-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := c.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Backup copies the file at path to path+".backup". Missing originals are
// not an error (nothing to back up yet).
func Backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := os.WriteFile(path+".backup", data, 0644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}
