package dedup_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/catalogmerge/dedupengine/internal/dedup"
	"github.com/catalogmerge/dedupengine/internal/domain"
	"github.com/catalogmerge/dedupengine/internal/formatmapper"
	"github.com/catalogmerge/dedupengine/internal/recordfactory"
	"github.com/catalogmerge/dedupengine/internal/store"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T) (*dedup.Engine, *store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "dedup-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil)
	require.NoError(t, err)

	e := dedup.NewEngine(s, recordfactory.New(), formatmapper.New(), dedup.Config{}, nil)

	cleanup := func() {
		e.Stop()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return e, s, cleanup
}

func dcRecord(id, sourceID string, title, creator, isbn, pubType, date string) *domain.Record {
	var identifiers string
	if isbn != "" {
		identifiers = fmt.Sprintf(`"urn:isbn:%s"`, isbn)
	}
	raw := fmt.Sprintf(`{
		"title": [%q],
		"creator": [%q],
		"identifier": [%s],
		"type": [%q],
		"date": [%q]
	}`, title, creator, identifiers, pubType, date)

	return &domain.Record{
		ID:       id,
		SourceID: sourceID,
		Format:   "dc",
		OAIID:    id,
		Raw:      []byte(raw),
		Updated:  time.Now(),
	}
}

func mustInsert(t *testing.T, s *store.Store, r *domain.Record) {
	t.Helper()
	require.NoError(t, s.Records.Insert(context.Background(), r.ID, r))
}

func TestUpdateCandidateKeys_PopulatesAndClearsSets(t *testing.T) {
	e, _, cleanup := setupEngine(t)
	defer cleanup()

	r := dcRecord("r1", "src-a", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")

	view, err := e.UpdateCandidateKeys(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Equal(t, []string{"9780142437247"}, r.ISBNKeys)
	require.Nil(t, r.IDKeys)
	require.Len(t, r.TitleKeys, 1)

	bare := &domain.Record{ID: "r2", SourceID: "src-a", Format: "dc", Raw: []byte(`{}`)}
	_, err = e.UpdateCandidateKeys(context.Background(), bare)
	require.NoError(t, err)
	require.Nil(t, bare.ISBNKeys)
	require.Nil(t, bare.IDKeys)
	require.Nil(t, bare.TitleKeys)
}

func TestDedup_ISBNMatchCreatesGroup(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	a := dcRecord("a1", "src-a", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	b := dcRecord("b1", "src-b", "Moby-Dick", "Herman Melville", "9780142437247", "Text", "1851")
	mustInsert(t, s, a)
	mustInsert(t, s, b)

	matchedA, err := e.Dedup(ctx, a)
	require.NoError(t, err)
	require.False(t, matchedA, "first record has nothing to match yet")

	matchedB, err := e.Dedup(ctx, b)
	require.NoError(t, err)
	require.True(t, matchedB)

	freshA, err := s.Records.Get(ctx, "a1")
	require.NoError(t, err)
	freshB, err := s.Records.Get(ctx, "b1")
	require.NoError(t, err)
	require.NotEmpty(t, freshA.DedupID)
	require.Equal(t, freshA.DedupID, freshB.DedupID)

	g, err := s.Groups.Get(ctx, freshA.DedupID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1", "b1"}, g.Ids)
	require.False(t, g.Deleted)
}

func TestDedup_SameSourceNeverMatches(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	a := dcRecord("a1", "src-a", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	b := dcRecord("b1", "src-a", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	mustInsert(t, s, a)
	mustInsert(t, s, b)

	_, err := e.Dedup(ctx, a)
	require.NoError(t, err)
	matched, err := e.Dedup(ctx, b)
	require.NoError(t, err)
	require.False(t, matched)
}

func TestDedup_ISSNVetoBlocksOtherwiseMatchingRecords(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	araw := `{"title":["Nature"],"creator":["Various"],"identifier":["urn:issn:0028-0836"],"type":["Journal"],"date":["2020"]}`
	braw := `{"title":["Nature"],"creator":["Various"],"identifier":["urn:issn:1476-4687"],"type":["Journal"],"date":["2020"]}`

	a := &domain.Record{ID: "a1", SourceID: "src-a", Format: "dc", Raw: []byte(araw)}
	b := &domain.Record{ID: "b1", SourceID: "src-b", Format: "dc", Raw: []byte(braw)}
	mustInsert(t, s, a)
	mustInsert(t, s, b)

	_, err := e.Dedup(ctx, a)
	require.NoError(t, err)
	matched, err := e.Dedup(ctx, b)
	require.NoError(t, err)
	require.False(t, matched, "disjoint ISSNs must veto the match regardless of shared title")
}

func TestDedup_TitleAuthorMatchWithoutSharedIdentifier(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	a := dcRecord("a1", "src-a", "The Great Gatsby", "Fitzgerald, F. Scott", "", "Text", "1925")
	b := dcRecord("b1", "src-b", "The Great Gatsby", "Fitzgerald, F. Scott", "", "Text", "1925")
	mustInsert(t, s, a)
	mustInsert(t, s, b)

	_, err := e.Dedup(ctx, a)
	require.NoError(t, err)
	matched, err := e.Dedup(ctx, b)
	require.NoError(t, err)
	require.True(t, matched)
}

func TestDedup_GroupShrinksToSingletonOnDivergence(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	a := dcRecord("a1", "src-a", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	b := dcRecord("b1", "src-b", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	mustInsert(t, s, a)
	mustInsert(t, s, b)

	_, err := e.Dedup(ctx, a)
	require.NoError(t, err)
	_, err = e.Dedup(ctx, b)
	require.NoError(t, err)

	freshA, err := s.Records.Get(ctx, "a1")
	require.NoError(t, err)
	groupID := freshA.DedupID
	require.NotEmpty(t, groupID)

	// b1 changes so it no longer shares an ISBN or title with a1; re-dedup
	// with the same ISBN removed should drop it back out of the group.
	freshB, err := s.Records.Get(ctx, "b1")
	require.NoError(t, err)
	freshB.Raw = []byte(`{"title":["Something Else Entirely"],"creator":["Nobody"],"identifier":[],"type":["Text"],"date":["1999"]}`)
	require.NoError(t, s.Records.Save(ctx, freshB.ID, freshB))

	matched, err := e.Dedup(ctx, freshB)
	require.NoError(t, err)
	require.False(t, matched)

	updatedB, err := s.Records.Get(ctx, "b1")
	require.NoError(t, err)
	require.Empty(t, updatedB.DedupID)

	updatedA, err := s.Records.Get(ctx, "a1")
	require.NoError(t, err)
	require.Empty(t, updatedA.DedupID, "singleton group must clear the remaining member's dedup id")

	g, err := s.Groups.Get(ctx, groupID)
	require.NoError(t, err)
	require.True(t, g.Deleted)
}

func TestCheckDedupRecord_ExpelsDanglingAndConflictingMembers(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	a := dcRecord("a1", "src-a", "T", "C", "111", "Text", "2000")
	a.DedupID = "dg-1"
	b := dcRecord("b1", "src-b", "T", "C", "111", "Text", "2000")
	b.DedupID = "dg-1"
	c := dcRecord("c1", "src-b", "T", "C", "111", "Text", "2000")
	c.DedupID = "dg-1"
	mustInsert(t, s, a)
	mustInsert(t, s, b)
	mustInsert(t, s, c)

	g := &domain.DedupGroup{ID: "dg-1", Ids: []string{"a1", "b1", "c1", "missing1"}}
	require.NoError(t, s.Groups.Insert(ctx, g.ID, g))

	repairs, err := e.CheckDedupRecord(ctx, g)
	require.NoError(t, err)
	require.Len(t, repairs, 2, "missing1 (dangling) and either b1 or c1 (same-source conflict) must be expelled")

	fresh, err := s.Groups.Get(ctx, "dg-1")
	require.NoError(t, err)
	require.Len(t, fresh.Ids, 2)
	require.Contains(t, fresh.Ids, "a1")
}

func TestEngine_EnqueueAndWorkerPool(t *testing.T) {
	e, s, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	a := dcRecord("a1", "src-a", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	b := dcRecord("b1", "src-b", "Moby Dick", "Melville, Herman", "9780142437247", "Text", "1851")
	mustInsert(t, s, a)
	mustInsert(t, s, b)

	e.Start()
	require.NoError(t, e.Enqueue("a1"))
	require.NoError(t, e.Enqueue("b1"))

	require.Eventually(t, func() bool {
		rec, err := s.Records.Get(ctx, "b1")
		return err == nil && rec.DedupID != ""
	}, 2*time.Second, 10*time.Millisecond)
}
