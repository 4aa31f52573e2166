package providers

import (
	"github.com/samber/do/v2"

	"github.com/catalogmerge/dedupengine/internal/formatmapper"
	"github.com/catalogmerge/dedupengine/internal/recordfactory"
)

// ProvideRecordFactory provides the record factory dispatching raw payloads
// to the marcxml and dc parsers by format tag.
func ProvideRecordFactory(i do.Injector) (*recordfactory.Factory, error) {
	return recordfactory.New(), nil
}

// ProvideFormatMapper provides the format mapper the match predicate's
// format-veto rule consults.
func ProvideFormatMapper(i do.Injector) (*formatmapper.Mapper, error) {
	return formatmapper.New(), nil
}
