// Package formatmapper implements the format-mapper collaborator the match
// predicate's format-veto rule depends on: mapping a source's raw,
// source-declared format tag to a canonical target format.
package formatmapper

import "strings"

// canonicalFormats maps common raw format tags, case-folded, to the
// canonical format the dedup engine's format-veto rule compares against.
// Sources that use nonstandard tags register an override with WithOverride
// rather than growing this table.
var canonicalFormats = map[string]string{
	"book":        "book",
	"monograph":   "book",
	"print":       "book",
	"hardcover":   "book",
	"paperback":   "book",
	"ebook":       "ebook",
	"e-book":      "ebook",
	"electronic":  "ebook",
	"audiobook":   "audiobook",
	"audio book":  "audiobook",
	"talkingbook": "audiobook",
	"serial":      "serial",
	"journal":     "serial",
	"periodical":  "serial",
	"article":     "article",
	"chapter":     "chapter",
	"map":         "map",
	"score":       "score",
	"video":       "video",
	"dvd":         "video",
}

// Mapper resolves a (source_id, raw format) pair to a canonical format tag.
// The zero value is ready to use with the default canonicalFormats table.
type Mapper struct {
	overrides map[string]map[string]string
}

// New creates a Mapper backed by the default canonical-format table.
func New() *Mapper {
	return &Mapper{}
}

// WithOverride registers a per-source override: for sourceID, rawFormat
// (case-insensitive) maps to canonical instead of whatever the default
// table would produce.
func (m *Mapper) WithOverride(sourceID, rawFormat, canonical string) *Mapper {
	if m.overrides == nil {
		m.overrides = make(map[string]map[string]string)
	}
	if m.overrides[sourceID] == nil {
		m.overrides[sourceID] = make(map[string]string)
	}
	m.overrides[sourceID][strings.ToLower(rawFormat)] = canonical
	return m
}

// Map returns the canonical format for sourceID's rawFormat. Formats
// neither overridden nor present in the default table map to their
// lower-cased, trimmed selves, so an unrecognized but self-consistent tag
// still participates in equality comparisons rather than vanishing.
func (m *Mapper) Map(sourceID, rawFormat string) string {
	key := strings.ToLower(strings.TrimSpace(rawFormat))
	if key == "" {
		return ""
	}

	if overrides, ok := m.overrides[sourceID]; ok {
		if canonical, ok := overrides[key]; ok {
			return canonical
		}
	}

	if canonical, ok := canonicalFormats[key]; ok {
		return canonical
	}

	return key
}
