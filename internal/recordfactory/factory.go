// Package recordfactory implements the record factory collaborator: given
// a format tag and a Record's raw payload, it builds the read-only
// domain.MetadataView the dedup engine's candidate generator and match
// predicate consult. Concrete parsers live in the marcxml and dc
// subpackages and are dispatched to by format tag.
package recordfactory

import (
	"fmt"

	"github.com/catalogmerge/dedupengine/internal/domain"
	"github.com/catalogmerge/dedupengine/internal/recordfactory/dc"
	"github.com/catalogmerge/dedupengine/internal/recordfactory/marcxml"
)

// Parser builds a MetadataView from a raw payload for one format.
type Parser interface {
	Parse(raw []byte) (domain.MetadataView, error)
}

// Factory dispatches raw payloads to a format-specific Parser.
type Factory struct {
	parsers map[string]Parser
}

// New creates a Factory pre-registered with the marcxml and dc parsers,
// the two formats the engine's harvested sources are known to use.
func New() *Factory {
	f := &Factory{parsers: make(map[string]Parser)}
	f.Register("marcxml", marcxml.Parser{})
	f.Register("dc", dc.Parser{})
	return f
}

// Register adds or replaces the Parser used for a format tag.
func (f *Factory) Register(format string, p Parser) {
	f.parsers[format] = p
}

// CreateRecord builds a MetadataView for a raw payload of the given format.
// oaiID and sourceID are accepted per the collaborator contract but are not
// passed to the Parser, whose Parse method takes only the raw payload.
func (f *Factory) CreateRecord(format string, raw []byte, oaiID, sourceID string) (domain.MetadataView, error) {
	parser, ok := f.parsers[format]
	if !ok {
		return nil, fmt.Errorf("recordfactory: no parser registered for format %q", format)
	}
	return parser.Parse(raw)
}
