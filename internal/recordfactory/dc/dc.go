// Package dc parses Dublin Core bibliographic records serialized as JSON
// into MetadataView implementations.
package dc

import (
	"encoding/json/v2"
	"fmt"
	"strconv"
	"strings"

	"github.com/catalogmerge/dedupengine/internal/domain"
	"github.com/catalogmerge/dedupengine/internal/normalize"
)

// record mirrors the qualified Dublin Core element set as harvested over
// OAI-PMH: mostly repeatable string elements.
type record struct {
	Title       []string `json:"title"`
	Creator     []string `json:"creator"`
	Identifier  []string `json:"identifier"`
	Type        []string `json:"type"`
	Date        []string `json:"date"`
	Format      []string `json:"format"`
	Extent      string   `json:"extent"`
	Relation    []string `json:"relation"`
	Source      []string `json:"source"`
}

// Parser parses Dublin Core JSON payloads.
type Parser struct{}

// Parse decodes a Dublin Core JSON record.
func (Parser) Parse(raw []byte) (domain.MetadataView, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("dc: parse record: %w", err)
	}
	return &View{r: &r}, nil
}

// View is a MetadataView backed by a parsed Dublin Core record.
type View struct {
	r *record
}

// Title returns the first dc:title element.
func (v *View) Title(normalized bool) string {
	if len(v.r.Title) == 0 {
		return ""
	}
	if normalized {
		return normalize.Normalize(v.r.Title[0])
	}
	return v.r.Title[0]
}

// FullTitle returns every dc:title element joined for display.
func (v *View) FullTitle() string {
	return strings.Join(v.r.Title, " : ")
}

// ISBNs returns identifiers prefixed "ISBN:" or "urn:isbn:".
func (v *View) ISBNs() []string {
	return v.identifiersWithScheme("isbn")
}

// ISSNs returns identifiers prefixed "ISSN:" or "urn:issn:".
func (v *View) ISSNs() []string {
	return v.identifiersWithScheme("issn")
}

func (v *View) identifiersWithScheme(scheme string) []string {
	var out []string
	prefixes := []string{scheme + ":", "urn:" + scheme + ":"}
	for _, id := range v.r.Identifier {
		lower := strings.ToLower(id)
		for _, prefix := range prefixes {
			if strings.HasPrefix(lower, prefix) {
				out = append(out, strings.TrimSpace(id[len(prefix):]))
				break
			}
		}
	}
	return out
}

// UniqueIDs returns identifiers that don't carry an ISBN/ISSN scheme.
func (v *View) UniqueIDs() []string {
	var out []string
	for _, id := range v.r.Identifier {
		lower := strings.ToLower(id)
		if strings.Contains(lower, "isbn") || strings.Contains(lower, "issn") {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Format returns the first dc:type element, the closest Dublin Core
// analog to a format tag.
func (v *View) Format() string {
	if len(v.r.Type) == 0 {
		return ""
	}
	return v.r.Type[0]
}

// PublicationYear extracts a four-digit year from the first dc:date.
func (v *View) PublicationYear() (int, bool) {
	if len(v.r.Date) == 0 {
		return 0, false
	}
	digits := firstDigitRun(v.r.Date[0], 4)
	if digits == "" {
		return 0, false
	}
	year, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return year, true
}

// PageCount extracts a leading page number from dc:extent (e.g. "342 p.").
func (v *View) PageCount() (int, bool) {
	digits := firstDigitRun(v.r.Extent, 0)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SeriesISSN is not represented in the flat Dublin Core element set used
// by this harvester; series relationships arrive only as dc:relation
// free text, which is not a stable ISSN.
func (v *View) SeriesISSN() string { return "" }

// SeriesNumbering is likewise not represented; see SeriesISSN.
func (v *View) SeriesNumbering() string { return "" }

// MainAuthor returns the first dc:creator element.
func (v *View) MainAuthor() string {
	if len(v.r.Creator) == 0 {
		return ""
	}
	return v.r.Creator[0]
}

// firstDigitRun scans s for the first maximal run of digits. If want > 0
// it requires the run to have exactly that many digits.
func firstDigitRun(s string, want int) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			run := s[start:i]
			if want == 0 || len(run) == want {
				return run
			}
			start = -1
		}
	}
	if start != -1 {
		run := s[start:]
		if want == 0 || len(run) == want {
			return run
		}
	}
	return ""
}
