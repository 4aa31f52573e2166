// Package domain contains the core entities of the bibliographic dedup engine.
package domain

import "time"

// Record is a bibliographic unit harvested from a catalog source.
//
// title_keys, isbn_keys, and id_keys are candidate-generation indexes kept in
// sync with the parsed metadata (see the dedup package's UpdateCandidateKeys).
// They are nil, not empty, when the record has no keys for that category.
type Record struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	Format        string    `json:"format"`
	OAIID         string    `json:"oai_id,omitempty"`
	Deleted       bool      `json:"deleted"`
	Raw           []byte    `json:"raw"`
	TitleKeys     []string  `json:"title_keys,omitempty"`
	ISBNKeys      []string  `json:"isbn_keys,omitempty"`
	IDKeys        []string  `json:"id_keys,omitempty"`
	HostRecordID  string    `json:"host_record_id,omitempty"`
	LinkingID     string    `json:"linking_id,omitempty"`
	DedupID       string    `json:"dedup_id,omitempty"`
	UpdateNeeded  bool      `json:"update_needed"`
	Updated       time.Time `json:"updated"`
}

// IsComponentPart reports whether this record is a sub-unit of a host record.
func (r *Record) IsComponentPart() bool {
	return r.HostRecordID != ""
}

// Touch stamps Updated with the current time. Call whenever the dedup engine
// mutates a record's grouping state.
func (r *Record) Touch() {
	r.Updated = time.Now()
}

// DedupGroup is a persistent equivalence class of Record ids believed to
// describe the same work.
//
// Invariant: either Deleted is true and Ids is empty, or Deleted is false
// and len(Ids) >= 2. Ids preserves insertion order.
type DedupGroup struct {
	ID      string    `json:"id"`
	Ids     []string  `json:"ids"`
	Deleted bool      `json:"deleted"`
	Changed time.Time `json:"changed"`
}

// Touch stamps Changed with the current time.
func (g *DedupGroup) Touch() {
	g.Changed = time.Now()
}

// Contains reports whether id is a member of the group.
func (g *DedupGroup) Contains(id string) bool {
	for _, existing := range g.Ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Add appends id to the group if it is not already present.
func (g *DedupGroup) Add(id string) {
	if !g.Contains(id) {
		g.Ids = append(g.Ids, id)
	}
}

// Remove deletes id from the group, preserving the order of the rest.
func (g *DedupGroup) Remove(id string) {
	for i, existing := range g.Ids {
		if existing == id {
			g.Ids = append(g.Ids[:i], g.Ids[i+1:]...)
			return
		}
	}
}
