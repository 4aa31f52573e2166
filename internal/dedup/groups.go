package dedup

import (
	"context"

	"github.com/catalogmerge/dedupengine/internal/domain"
	errs "github.com/catalogmerge/dedupengine/internal/errors"
	"github.com/catalogmerge/dedupengine/internal/id"
	"github.com/catalogmerge/dedupengine/internal/store"
)

// maxLeaveRecursionDepth bounds leave's re-dedup of remaining group
// members. The original implementation's recursion has no documented
// bound; §9's open question asks for one. A group shrinking repeatedly
// enough to need more than eight rounds of re-evaluation is treated as a
// sign the data needs attention, not something to chase to a fixed point.
const maxLeaveRecursionDepth = 8

// Dedup drives the full flow for one subject Record: refresh its
// candidate keys, search for a match, and either join/grow/create a group
// or detach it from its current one.
func (e *Engine) Dedup(ctx context.Context, R *domain.Record) (bool, error) {
	return e.dedup(ctx, R, 0)
}

func (e *Engine) dedup(ctx context.Context, R *domain.Record, depth int) (bool, error) {
	Rm, err := e.UpdateCandidateKeys(ctx, R)
	if err != nil {
		return false, err
	}
	if err := e.store.Records.Save(ctx, R.ID, R); err != nil {
		return false, errs.Store(err)
	}

	for C, err := range e.Candidates(ctx, R) {
		if err != nil {
			if isFatal(err) {
				return false, err
			}
			if e.logger != nil {
				e.logger.Error("candidate generation failed", "record_id", R.ID, "error", err)
			}
			continue
		}

		Cm, err := e.factory.CreateRecord(C.Format, C.Raw, C.OAIID, C.SourceID)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("record factory failed", "record_id", C.ID, "error", err)
			}
			continue
		}

		if !e.match(R, C, Rm, Cm) {
			continue
		}

		if C.DedupID != "" && C.DedupID == R.DedupID {
			// Already co-grouped with R: re-running dedup on a settled
			// record must be idempotent, so nothing is mutated here.
			return true, nil
		}

		matched, err := e.markDuplicates(ctx, R, C, depth)
		if err != nil {
			if isFatal(err) {
				return false, err
			}
			if e.logger != nil {
				e.logger.Error("markDuplicates failed", "record_id", R.ID, "candidate_id", C.ID, "error", err)
			}
			continue
		}
		if matched {
			return true, nil
		}
	}

	if R.DedupID != "" || R.UpdateNeeded {
		if R.DedupID != "" {
			if err := e.leave(ctx, R.DedupID, R.ID, depth); err != nil {
				return false, err
			}
		}
		R.DedupID = ""
		R.UpdateNeeded = false
		R.Touch()
		if err := e.store.Records.Save(ctx, R.ID, R); err != nil {
			return false, errs.Store(err)
		}
	}

	return false, nil
}

// markDuplicates resolves the post-match state for a pair known to
// satisfy the match predicate: join B into A's group, join A into B's
// group, or create a fresh group, then persists both records and (for
// non-component-part A) runs the cascader.
func (e *Engine) markDuplicates(ctx context.Context, A, B *domain.Record, depth int) (bool, error) {
	var groupID string

	err := e.groupLocks.withLocks([]string{A.DedupID, B.DedupID}, func() error {
		switch {
		case B.DedupID != "":
			g, err := e.store.Groups.Get(ctx, B.DedupID)
			if err != nil {
				return errs.Store(err)
			}
			conflict, err := e.groupHasSource(ctx, g, A.SourceID, A.ID)
			if err != nil {
				return err
			}
			if conflict {
				return errs.InvariantRepair("candidate's source already represented in target group")
			}

			oldGroupID := A.DedupID
			g.Add(A.ID)
			g.Touch()
			if err := e.store.Groups.Save(ctx, g.ID, g); err != nil {
				return errs.Store(err)
			}
			if oldGroupID != "" && oldGroupID != g.ID {
				if _, _, err := e.leaveLocked(ctx, oldGroupID, A.ID, depth); err != nil {
					return err
				}
			}
			A.DedupID = g.ID
			groupID = g.ID

		case A.DedupID != "":
			g, err := e.store.Groups.Get(ctx, A.DedupID)
			if err != nil {
				return errs.Store(err)
			}
			conflict, err := e.groupHasSource(ctx, g, B.SourceID, B.ID)
			if err != nil {
				return err
			}
			if conflict {
				return errs.InvariantRepair("candidate's source already represented in target group")
			}

			g.Add(B.ID)
			g.Touch()
			if err := e.store.Groups.Save(ctx, g.ID, g); err != nil {
				return errs.Store(err)
			}
			B.DedupID = g.ID
			groupID = g.ID

		default:
			newID := id.MustGenerate("dg")
			g := &domain.DedupGroup{ID: newID, Ids: []string{A.ID, B.ID}}
			g.Touch()
			if err := e.store.Groups.Insert(ctx, g.ID, g); err != nil {
				return errs.Store(err)
			}
			A.DedupID = g.ID
			B.DedupID = g.ID
			groupID = g.ID
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	A.UpdateNeeded = false
	A.Touch()
	B.UpdateNeeded = false
	B.Touch()
	if err := e.store.Records.Save(ctx, A.ID, A); err != nil {
		return false, errs.Store(err)
	}
	if err := e.store.Records.Save(ctx, B.ID, B); err != nil {
		return false, errs.Store(err)
	}

	if e.logger != nil {
		e.logger.Info("records matched",
			"group_id", groupID,
			"a", A.ID,
			"b", B.ID,
		)
	}

	if A.HostRecordID == "" {
		if _, err := e.Cascade(ctx, A); err != nil && e.logger != nil {
			e.logger.Error("cascade failed", "record_id", A.ID, "error", err)
		}
	}

	return true, nil
}

// leave acquires groupID's lock, detaches memberID from it, and — if the
// group is still live — re-dedups its remaining members outside the lock
// to avoid deadlocking against their own group-mutation locks.
func (e *Engine) leave(ctx context.Context, groupID, memberID string, depth int) error {
	var remaining []string
	var stillLive bool

	err := e.groupLocks.withLocks([]string{groupID}, func() error {
		live, members, err := e.leaveLocked(ctx, groupID, memberID, depth)
		stillLive, remaining = live, members
		return err
	})
	if err != nil {
		return err
	}

	if !stillLive || depth >= maxLeaveRecursionDepth {
		return nil
	}

	for _, otherID := range remaining {
		rec, err := e.store.Records.Get(ctx, otherID)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("dangling reference", "group_id", groupID, "record_id", otherID)
			}
			continue
		}
		if _, err := e.dedup(ctx, rec, depth+1); err != nil && e.logger != nil {
			e.logger.Error("re-dedup after leave failed", "record_id", otherID, "error", err)
		}
	}

	return nil
}

// leaveLocked performs the actual group mutation for leave/markDuplicates,
// assuming the caller already holds groupID's lock. It returns whether
// the group is still live and, if so, its remaining member ids.
func (e *Engine) leaveLocked(ctx context.Context, groupID, memberID string, depth int) (bool, []string, error) {
	g, err := e.store.Groups.Get(ctx, groupID)
	if errs.Is(err, store.ErrNotFound) {
		if e.logger != nil {
			e.logger.Error("dangling reference", "dedup_id", groupID)
		}
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errs.Store(err)
	}
	if !g.Contains(memberID) {
		return !g.Deleted, append([]string{}, g.Ids...), nil
	}

	g.Remove(memberID)

	var remaining []string
	switch len(g.Ids) {
	case 0:
		g.Deleted = true
	case 1:
		other := g.Ids[0]
		if rec, err := e.store.Records.Get(ctx, other); err == nil {
			rec.DedupID = ""
			rec.Touch()
			if err := e.store.Records.Save(ctx, rec.ID, rec); err != nil {
				return false, nil, errs.Store(err)
			}
		} else if !errs.Is(err, store.ErrNotFound) {
			return false, nil, errs.Store(err)
		}
		g.Ids = nil
		g.Deleted = true
	default:
		remaining = append([]string{}, g.Ids...)
	}

	g.Touch()
	if err := e.store.Groups.Save(ctx, g.ID, g); err != nil {
		return false, nil, errs.Store(err)
	}

	return !g.Deleted, remaining, nil
}

// isFatal reports whether err must abort the calling Dedup call rather
// than be recovered locally with logging.
func isFatal(err error) bool {
	var derr *errs.Error
	if errs.As(err, &derr) {
		return derr.Code.Fatal()
	}
	return true
}
