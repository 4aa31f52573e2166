package dedup

import (
	"context"
	"iter"

	"github.com/catalogmerge/dedupengine/internal/domain"
	errs "github.com/catalogmerge/dedupengine/internal/errors"
	"github.com/catalogmerge/dedupengine/internal/store"
)

// candidateCategory pairs a secondary index name with the subject's keys
// for that index, in the priority order the generator examines them.
type candidateCategory struct {
	index string
	keys  []string
}

// Candidates produces a bounded, filtered, lazily-streamed sequence of
// candidate Records for subject. Consumers may stop iterating early; a
// match found on the first candidate never triggers a lookup of the rest.
func (e *Engine) Candidates(ctx context.Context, subject *domain.Record) iter.Seq2[*domain.Record, error] {
	categories := []candidateCategory{
		{index: "isbn_keys", keys: subject.ISBNKeys},
		{index: "id_keys", keys: subject.IDKeys},
		{index: "title_keys", keys: subject.TitleKeys},
	}

	return func(yield func(*domain.Record, error) bool) {
		for _, cat := range categories {
			for _, key := range cat.keys {
				if key == "" {
					continue
				}
				if !e.runProbe(ctx, subject, cat.index, key, yield) {
					return
				}
			}
		}
	}
}

// runProbe drives one (index, key) probe, applying the budget guard and
// per-candidate filters, yielding accepted candidates. It returns false if
// the consumer asked to stop.
func (e *Engine) runProbe(ctx context.Context, subject *domain.Record, index, key string, yield func(*domain.Record, error) bool) bool {
	limit := e.probeGuard.Limit(index, key)
	processed := 0
	tripped := false

	for c, err := range e.store.Records.Find(ctx, index, key) {
		if err := ctx.Err(); err != nil {
			return yield(nil, err)
		}
		if err != nil {
			return yield(nil, errs.Store(err))
		}
		// The subject is posted under its own keys; it is not a candidate
		// and does not count toward the probe's budget.
		if c.ID == subject.ID {
			continue
		}

		processed++
		if processed > limit {
			tripped = true
			break
		}

		accept, err := e.acceptCandidate(ctx, subject, index, c)
		if err != nil {
			return yield(nil, err)
		}
		if !accept {
			continue
		}

		if !yield(c, nil) {
			return false
		}
	}

	if tripped {
		e.probeGuard.Trip(index, key)
		if e.logger != nil {
			e.logger.Debug("too many candidates", "index", index, "key", key, "limit", limit)
		}
	}

	return true
}

// acceptCandidate applies the in-stream filtering rules: same-source and
// tombstoned candidates are dropped outright; lower-priority categories
// drop anything a higher-priority category would already have caught;
// and a candidate already grouped with one of the subject's own source is
// dropped to protect invariant 3.
func (e *Engine) acceptCandidate(ctx context.Context, subject *domain.Record, index string, c *domain.Record) (bool, error) {
	if c.Deleted || c.SourceID == subject.SourceID {
		return false, nil
	}

	if index == "id_keys" || index == "title_keys" {
		if sharesAny(subject.ISBNKeys, c.ISBNKeys) {
			return false, nil
		}
	}
	if index == "title_keys" {
		if sharesAny(subject.IDKeys, c.IDKeys) {
			return false, nil
		}
	}

	if c.DedupID != "" && c.DedupID != subject.DedupID {
		conflict, err := e.groupContainsSource(ctx, c.DedupID, subject.SourceID, "")
		if err != nil {
			return false, err
		}
		if conflict {
			return false, nil
		}
	}

	return true, nil
}

// groupContainsSource reports whether any member of group groupID (other
// than excludeID) has the given source id. A missing group is a dangling
// reference: logged and treated as containing nothing, not propagated.
func (e *Engine) groupContainsSource(ctx context.Context, groupID, sourceID, excludeID string) (bool, error) {
	g, err := e.store.Groups.Get(ctx, groupID)
	if errs.Is(err, store.ErrNotFound) {
		if e.logger != nil {
			e.logger.Error("dangling reference", "dedup_id", groupID)
		}
		return false, nil
	}
	if err != nil {
		return false, errs.Store(err)
	}
	return e.groupHasSource(ctx, g, sourceID, excludeID)
}

func (e *Engine) groupHasSource(ctx context.Context, g *domain.DedupGroup, sourceID, excludeID string) (bool, error) {
	for _, id := range g.Ids {
		if id == excludeID {
			continue
		}
		rec, err := e.store.Records.Get(ctx, id)
		if errs.Is(err, store.ErrNotFound) {
			if e.logger != nil {
				e.logger.Error("dangling reference", "group_id", g.ID, "record_id", id)
			}
			continue
		}
		if err != nil {
			return false, errs.Store(err)
		}
		if rec.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

// sharesAny reports whether a and b have any element in common.
func sharesAny(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
