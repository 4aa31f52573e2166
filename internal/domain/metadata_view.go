package domain

// MetadataView is a derived, read-only projection built on demand from a
// Record's raw payload. Implementations are supplied by a format-specific
// record factory (see internal/recordfactory) and are otherwise opaque to
// the dedup engine.
type MetadataView interface {
	// Title returns the primary title. When normalized is true the result
	// has already been passed through the string-utility's normalization.
	Title(normalized bool) string
	// FullTitle returns the title plus subtitle/statement-of-responsibility,
	// used only for display and logging, never for matching.
	FullTitle() string
	// ISBNs returns all ISBNs attached to the record, in any normalized form
	// the record factory considers canonical (e.g. ISBN-13 without hyphens).
	ISBNs() []string
	// ISSNs returns all ISSNs attached to the record.
	ISSNs() []string
	// UniqueIDs returns other stable identifiers, such as national
	// bibliographic numbers, that are expected to be globally unique.
	UniqueIDs() []string
	// Format returns the source-declared format tag.
	Format() string
	// PublicationYear returns the year of publication and whether it was
	// present in the metadata.
	PublicationYear() (int, bool)
	// PageCount returns the page count and whether it was present.
	PageCount() (int, bool)
	// SeriesISSN returns the ISSN of the series this record belongs to, if any.
	SeriesISSN() string
	// SeriesNumbering returns the record's position within its series, if any.
	SeriesNumbering() string
	// MainAuthor returns the primary author's name in "Surname, Given" form
	// when the source provides enough structure to build it.
	MainAuthor() string
}
