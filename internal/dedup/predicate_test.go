package dedup

import (
	"testing"

	"github.com/catalogmerge/dedupengine/internal/domain"
	"github.com/catalogmerge/dedupengine/internal/formatmapper"
	"github.com/stretchr/testify/require"
)

// fakeView is a minimal domain.MetadataView test double letting each
// predicate rule be exercised in isolation, without a record factory.
type fakeView struct {
	title           string
	isbns           []string
	issns           []string
	uniqueIDs       []string
	format          string
	year            int
	yearOK          bool
	pages           int
	pagesOK         bool
	seriesISSN      string
	seriesNumbering string
	mainAuthor      string
}

func (v fakeView) Title(bool) string          { return v.title }
func (v fakeView) FullTitle() string          { return v.title }
func (v fakeView) ISBNs() []string            { return v.isbns }
func (v fakeView) ISSNs() []string            { return v.issns }
func (v fakeView) UniqueIDs() []string        { return v.uniqueIDs }
func (v fakeView) Format() string             { return v.format }
func (v fakeView) PublicationYear() (int, bool) { return v.year, v.yearOK }
func (v fakeView) PageCount() (int, bool)     { return v.pages, v.pagesOK }
func (v fakeView) SeriesISSN() string         { return v.seriesISSN }
func (v fakeView) SeriesNumbering() string    { return v.seriesNumbering }
func (v fakeView) MainAuthor() string         { return v.mainAuthor }

func baseView() fakeView {
	return fakeView{
		title:      "Moby Dick",
		format:     "book",
		year:       1851,
		yearOK:     true,
		pages:      500,
		pagesOK:    true,
		mainAuthor: "Melville, Herman",
	}
}

func testEngine() *Engine {
	return &Engine{formatMapper: formatmapper.New()}
}

func rec(id, sourceID string) *domain.Record {
	return &domain.Record{ID: id, SourceID: sourceID}
}

func TestMatch_ISBNShortCircuitsOtherwiseDivergentRecords(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.isbns = []string{"9780142437247"}
	b := fakeView{title: "Something Else Entirely", format: "ebook", isbns: []string{"9780142437247"}}

	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_UniqueIDShortCircuits(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.uniqueIDs = []string{"oclc123"}
	b := fakeView{title: "Different Title", format: "ebook", uniqueIDs: []string{"oclc123"}}

	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_DisjointISSNsVeto(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.issns = []string{"0028-0836"}
	b := baseView()
	b.issns = []string{"1476-4687"}

	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_SharedISSNDoesNotVeto(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.issns = []string{"0028-0836"}
	b := baseView()
	b.issns = []string{"0028-0836"}

	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_FormatVetoUsesMappedMaterialFormat(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.format = "book"
	b := baseView()
	b.format = "audiobook"

	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b),
		"book and audiobook map to different canonical formats and must veto")
}

func TestMatch_SameCanonicalFormatAcrossDispatchTagsDoesNotVeto(t *testing.T) {
	// The record-factory dispatch tags ("marcxml" vs "dc") must never feed
	// the veto; only the material format from the view does. Two records
	// parsed by different factories but describing the same book format
	// must not be vetoed on that basis alone.
	e := testEngine()
	a := baseView()
	a.format = "hardcover"
	b := baseView()
	b.format = "paperback"
	ra, rb := rec("a", "src-a"), rec("b", "src-b")
	ra.Format, rb.Format = "marcxml", "dc"

	require.True(t, e.match(ra, rb, a, b))
}

func TestMatch_IdenticalRawFormatNeverVetoesEvenUnderOverride(t *testing.T) {
	// The veto only fires when the raw material formats themselves differ.
	// Two records sharing an identical raw format tag must never be vetoed
	// on format grounds, even if a per-source override would map that same
	// tag to different canonical targets for their two sources.
	e := &Engine{formatMapper: formatmapper.New().
		WithOverride("src-a", "large-print", "book").
		WithOverride("src-b", "large-print", "ebook")}
	a := baseView()
	a.format = "large-print"
	b := baseView()
	b.format = "large-print"

	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_YearMismatchVetoes(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.year, a.yearOK = 1851, true
	b := baseView()
	b.year, b.yearOK = 1999, true

	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_PageCountBoundary(t *testing.T) {
	e := testEngine()

	within := baseView()
	within.pages, within.pagesOK = 500, true
	otherWithin := baseView()
	otherWithin.pages, otherWithin.pagesOK = 510, true
	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), within, otherWithin),
		"page count difference of exactly 10 must not veto")

	beyond := baseView()
	beyond.pages, beyond.pagesOK = 500, true
	otherBeyond := baseView()
	otherBeyond.pages, otherBeyond.pagesOK = 511, true
	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), beyond, otherBeyond),
		"page count difference of 11 must veto")
}

func TestMatch_SeriesMismatchVetoes(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.seriesISSN = "1234-5678"
	b := baseView()
	b.seriesISSN = "8765-4321"

	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))

	c := baseView()
	c.seriesISSN = "1234-5678"
	c.seriesNumbering = "3"
	d := baseView()
	d.seriesISSN = "1234-5678"
	d.seriesNumbering = "4"

	require.False(t, e.match(rec("c", "src-a"), rec("d", "src-b"), c, d))
}

func TestMatch_TitleRatioBoundary(t *testing.T) {
	e := testEngine()

	// 10-character titles differing by one edit: ratio is exactly
	// 100*1/10 = 10.00, at the veto threshold, so the gate must fail.
	atThreshold := baseView()
	atThreshold.title = "0123456789"
	otherAtThreshold := baseView()
	otherAtThreshold.title = "012345678X"
	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), atThreshold, otherAtThreshold),
		"title ratio of exactly 10.00 must veto")

	// 11-character titles differing by one edit: ratio is 100*1/11 = 9.09,
	// just under the threshold, so the gate must pass.
	underThreshold := baseView()
	underThreshold.title = "01234567890"
	otherUnderThreshold := baseView()
	otherUnderThreshold.title = "0123456789X"
	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), underThreshold, otherUnderThreshold),
		"title ratio just under 10.00 must pass")
}

func TestMatch_MissingTitleVetoes(t *testing.T) {
	e := testEngine()
	a := baseView()
	a.title = ""
	b := baseView()

	require.False(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b))
}

func TestMatch_AuthorGate(t *testing.T) {
	e := testEngine()

	a := baseView()
	a.mainAuthor = "Melville, Herman"
	b := baseView()
	b.mainAuthor = "Melville, H."
	require.True(t, e.match(rec("a", "src-a"), rec("b", "src-b"), a, b),
		"AuthorMatch tolerates a full given name vs an initial")

	c := baseView()
	c.mainAuthor = "Melville, Herman"
	d := baseView()
	d.mainAuthor = "Someone Entirely Different"
	require.False(t, e.match(rec("c", "src-a"), rec("d", "src-b"), c, d))

	e1 := baseView()
	e1.mainAuthor = ""
	f := baseView()
	f.mainAuthor = ""
	require.True(t, e.match(rec("e", "src-a"), rec("f", "src-b"), e1, f),
		"neither side declaring an author skips the gate")

	g := baseView()
	g.mainAuthor = "Melville, Herman"
	h := baseView()
	h.mainAuthor = ""
	require.False(t, e.match(rec("g", "src-a"), rec("h", "src-b"), g, h),
		"one side declaring an author and the other not must veto")
}
