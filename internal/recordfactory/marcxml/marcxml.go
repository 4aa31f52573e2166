// Package marcxml parses MARCXML bibliographic records into MetadataView
// implementations.
package marcxml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/catalogmerge/dedupengine/internal/domain"
	"github.com/catalogmerge/dedupengine/internal/normalize"
)

type subfield struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

type datafield struct {
	Tag       string     `xml:"tag,attr"`
	Subfields []subfield `xml:",any"`
}

type record struct {
	XMLName     xml.Name    `xml:"record"`
	Datafields  []datafield `xml:"datafield"`
	Controlfields []struct {
		Tag  string `xml:"tag,attr"`
		Text string `xml:",chardata"`
	} `xml:"controlfield"`
}

func (d datafield) subfield(code string) string {
	for _, sf := range d.Subfields {
		if sf.Code == code {
			return strings.TrimSpace(sf.Text)
		}
	}
	return ""
}

func (d datafield) subfields(code string) []string {
	var out []string
	for _, sf := range d.Subfields {
		if sf.Code == code {
			if v := strings.TrimSpace(sf.Text); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Parser parses MARCXML <record> payloads.
type Parser struct{}

// Parse decodes a single MARCXML <record> element.
func (Parser) Parse(raw []byte) (domain.MetadataView, error) {
	var r record
	if err := xml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("marcxml: parse record: %w", err)
	}
	return &View{r: &r}, nil
}

// View is a MetadataView backed by a parsed MARCXML record.
type View struct {
	r *record
}

func (v *View) fieldsByTag(tag string) []datafield {
	var out []datafield
	for _, df := range v.r.Datafields {
		if df.Tag == tag {
			out = append(out, df)
		}
	}
	return out
}

var isbnDigits = regexp.MustCompile(`[0-9Xx]+`)

// Title returns subfield 245$a. When normalized is true it is passed
// through normalize.Normalize.
func (v *View) Title(normalized bool) string {
	for _, df := range v.fieldsByTag("245") {
		if title := df.subfield("a"); title != "" {
			if normalized {
				return normalize.Normalize(title)
			}
			return title
		}
	}
	return ""
}

// FullTitle returns 245$a plus subtitle ($b) and statement of
// responsibility ($c), for display only.
func (v *View) FullTitle() string {
	for _, df := range v.fieldsByTag("245") {
		var parts []string
		if a := df.subfield("a"); a != "" {
			parts = append(parts, a)
		}
		if b := df.subfield("b"); b != "" {
			parts = append(parts, b)
		}
		if c := df.subfield("c"); c != "" {
			parts = append(parts, c)
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

// ISBNs returns normalized digit strings from every 020$a field.
func (v *View) ISBNs() []string {
	var out []string
	for _, df := range v.fieldsByTag("020") {
		if raw := df.subfield("a"); raw != "" {
			if isbn := isbnDigits.FindString(raw); isbn != "" {
				out = append(out, strings.ToUpper(isbn))
			}
		}
	}
	return out
}

// ISSNs returns every 022$a field.
func (v *View) ISSNs() []string {
	var out []string
	for _, df := range v.fieldsByTag("022") {
		if raw := df.subfield("a"); raw != "" {
			out = append(out, strings.ToUpper(strings.TrimSpace(raw)))
		}
	}
	return out
}

// UniqueIDs returns 001 control fields and 035$a system control numbers.
func (v *View) UniqueIDs() []string {
	var out []string
	for _, cf := range v.r.Controlfields {
		if cf.Tag == "001" {
			if id := strings.TrimSpace(cf.Text); id != "" {
				out = append(out, id)
			}
		}
	}
	for _, df := range v.fieldsByTag("035") {
		out = append(out, df.subfields("a")...)
	}
	return out
}

// Format always returns the empty string: this parser reads no format tag
// from the MARCXML payload.
func (v *View) Format() string { return "" }

// PublicationYear extracts a four-digit year from 260$c or 264$c.
func (v *View) PublicationYear() (int, bool) {
	for _, tag := range []string{"260", "264"} {
		for _, df := range v.fieldsByTag(tag) {
			if c := df.subfield("c"); c != "" {
				if year, ok := extractYear(c); ok {
					return year, true
				}
			}
		}
	}
	return 0, false
}

var yearPattern = regexp.MustCompile(`\d{4}`)

func extractYear(s string) (int, bool) {
	match := yearPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return year, true
}

var pageCountPattern = regexp.MustCompile(`\d+`)

// PageCount extracts the leading page number from 300$a (e.g. "342 p.").
func (v *View) PageCount() (int, bool) {
	for _, df := range v.fieldsByTag("300") {
		if a := df.subfield("a"); a != "" {
			if match := pageCountPattern.FindString(a); match != "" {
				if n, err := strconv.Atoi(match); err == nil {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// SeriesISSN returns 490$x, the ISSN of a traced series statement.
func (v *View) SeriesISSN() string {
	for _, df := range v.fieldsByTag("490") {
		if x := df.subfield("x"); x != "" {
			return strings.ToUpper(strings.TrimSpace(x))
		}
	}
	return ""
}

// SeriesNumbering returns 490$v, the volume/numbering within the series.
func (v *View) SeriesNumbering() string {
	for _, df := range v.fieldsByTag("490") {
		if val := df.subfield("v"); val != "" {
			return val
		}
	}
	return ""
}

// MainAuthor returns 100$a, the main entry personal name, falling back to
// the first 700$a added entry if there is no 100 field.
func (v *View) MainAuthor() string {
	for _, df := range v.fieldsByTag("100") {
		if a := df.subfield("a"); a != "" {
			return a
		}
	}
	for _, df := range v.fieldsByTag("700") {
		if a := df.subfield("a"); a != "" {
			return a
		}
	}
	return ""
}
