package dedup

import (
	"context"
	"sort"

	"github.com/catalogmerge/dedupengine/internal/domain"
	errs "github.com/catalogmerge/dedupengine/internal/errors"
	"github.com/catalogmerge/dedupengine/internal/normalize"
	"github.com/catalogmerge/dedupengine/internal/store"
)

// Cascade runs the component-part cascader for a host record H that has
// just been placed into a dedup group. It compares H's own component parts
// (chapters, articles, tracks — anything with HostRecordID == H.LinkingID
// within H's source) against the equivalent sequence of each other-source
// group member in turn, and marks each pair a duplicate when the two
// sequences match position-for-position, all or nothing. It stops at the
// first member whose sequence matches and returns the number of component
// pairs matched.
func (e *Engine) Cascade(ctx context.Context, H *domain.Record) (int, error) {
	if H.LinkingID == "" {
		if e.logger != nil {
			e.logger.Error("cascade requested for host without linking id", "record_id", H.ID)
		}
		return 0, errs.MissingLinkingID("host record has no linking id")
	}
	if H.DedupID == "" {
		return 0, nil
	}

	hostComponents, err := e.sortedComponents(ctx, H.SourceID, H.LinkingID)
	if err != nil {
		return 0, err
	}
	if len(hostComponents) == 0 {
		return 0, nil
	}

	g, err := e.store.Groups.Get(ctx, H.DedupID)
	if errs.Is(err, store.ErrNotFound) {
		if e.logger != nil {
			e.logger.Error("dangling reference", "dedup_id", H.DedupID)
		}
		return 0, nil
	}
	if err != nil {
		return 0, errs.Store(err)
	}

	matched := 0
	for _, memberID := range g.Ids {
		if memberID == H.ID {
			continue
		}
		M, err := e.store.Records.Get(ctx, memberID)
		if errs.Is(err, store.ErrNotFound) {
			if e.logger != nil {
				e.logger.Error("dangling reference", "group_id", g.ID, "record_id", memberID)
			}
			continue
		}
		if err != nil {
			return matched, errs.Store(err)
		}
		if M.SourceID == H.SourceID || M.LinkingID == "" {
			continue
		}

		memberComponents, err := e.sortedComponents(ctx, M.SourceID, M.LinkingID)
		if err != nil {
			return matched, err
		}
		if len(memberComponents) != len(hostComponents) || len(memberComponents) == 0 {
			continue
		}

		if !e.componentsMatch(hostComponents, memberComponents) {
			continue
		}

		for i := range hostComponents {
			if _, err := e.markDuplicates(ctx, hostComponents[i], memberComponents[i], 0); err != nil {
				if e.logger != nil {
					e.logger.Error("cascade markDuplicates failed",
						"a", hostComponents[i].ID, "b", memberComponents[i].ID, "error", err)
				}
				continue
			}
			matched++
		}

		// A full positional match is decisive: cascade into this one host
		// and stop, rather than transitively merging every other matching
		// host's components into the same groups.
		return matched, nil
	}

	return matched, nil
}

// componentsMatch reports whether every position in two equal-length,
// sorted component sequences satisfies the match predicate. All-or-nothing:
// a single non-matching position fails the whole cascade.
func (e *Engine) componentsMatch(a, b []*domain.Record) bool {
	for i := range a {
		am, err := e.factory.CreateRecord(a[i].Format, a[i].Raw, a[i].OAIID, a[i].SourceID)
		if err != nil {
			return false
		}
		bm, err := e.factory.CreateRecord(b[i].Format, b[i].Raw, b[i].OAIID, b[i].SourceID)
		if err != nil {
			return false
		}
		if !e.match(a[i], b[i], am, bm) {
			return false
		}
	}
	return true
}

// sortedComponents fetches every live component part whose HostRecordID
// links it to the given (sourceID, linkingID) host, ordered by
// normalize.IDSortKey of the component ids (numeric-aware id sort).
func (e *Engine) sortedComponents(ctx context.Context, sourceID, linkingID string) ([]*domain.Record, error) {
	key := store.HostComponentKey(sourceID, linkingID)

	var out []*domain.Record
	for rec, err := range e.store.Records.Find(ctx, "host_component", key) {
		if err != nil {
			return nil, errs.Store(err)
		}
		if rec.Deleted {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return normalize.IDSortKey(out[i].ID) < normalize.IDSortKey(out[j].ID)
	})

	return out, nil
}
