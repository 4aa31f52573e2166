// Package dedup implements the bibliographic dedup engine: candidate
// generation, the match predicate, dedup-group lifecycle management, and
// the component-part cascader, all coordinated by Engine's worker pool.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/catalogmerge/dedupengine/internal/domain"
	errs "github.com/catalogmerge/dedupengine/internal/errors"
	"github.com/catalogmerge/dedupengine/internal/formatmapper"
	"github.com/catalogmerge/dedupengine/internal/normalize"
	"github.com/catalogmerge/dedupengine/internal/recordfactory"
	"github.com/catalogmerge/dedupengine/internal/store"
)

// Engine coordinates dedup work against a document store: a bounded pool
// of workers consumes enqueued record ids, running each through Dedup.
type Engine struct {
	store        *store.Store
	factory      *recordfactory.Factory
	formatMapper *formatmapper.Mapper
	logger       *slog.Logger

	probeGuard *ProbeGuard
	groupLocks *groupMutex

	workers int
	queue   chan string

	ctx    context.Context //nolint:containedctx // context needed for worker lifecycle management
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config carries the tunables NewEngine needs beyond its collaborators.
type Config struct {
	// Workers is the number of concurrent dedup workers. Defaults to 4 if
	// zero or negative.
	Workers int
	// QueueSize bounds the pending-record backlog. Defaults to 1024 if
	// zero or negative.
	QueueSize int
	// ProbeGuardCapacity bounds the too-many-candidates registry. Defaults
	// to probeGuardCapacity if zero or negative.
	ProbeGuardCapacity int
}

// NewEngine wires an Engine against the given document store, record
// factory, and format mapper.
func NewEngine(
	s *store.Store,
	factory *recordfactory.Factory,
	mapper *formatmapper.Mapper,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.ProbeGuardCapacity <= 0 {
		cfg.ProbeGuardCapacity = probeGuardCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:        s,
		factory:      factory,
		formatMapper: mapper,
		logger:       logger,
		probeGuard:   NewProbeGuard(cfg.ProbeGuardCapacity),
		groupLocks:   newGroupMutex(),
		workers:      cfg.Workers,
		queue:        make(chan string, cfg.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker pool.
func (e *Engine) Start() {
	if e.logger != nil {
		e.logger.Info("starting dedup workers", "workers", e.workers)
	}
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
}

// Stop cancels outstanding work and waits for every worker to exit.
func (e *Engine) Stop() {
	if e.logger != nil {
		e.logger.Info("stopping dedup engine")
	}
	e.cancel()
	e.wg.Wait()
	if e.logger != nil {
		e.logger.Info("dedup engine stopped")
	}
}

// Enqueue schedules recordID for dedup processing. It blocks if the queue
// is full and returns an error if the engine has been stopped first.
func (e *Engine) Enqueue(recordID string) error {
	select {
	case <-e.ctx.Done():
		return fmt.Errorf("dedup engine stopped")
	default:
	}
	select {
	case e.queue <- recordID:
		return nil
	case <-e.ctx.Done():
		return fmt.Errorf("dedup engine stopped")
	}
}

func (e *Engine) worker(workerID int) {
	defer e.wg.Done()
	if e.logger != nil {
		e.logger.Debug("dedup worker started", "worker_id", workerID)
	}

	for {
		select {
		case <-e.ctx.Done():
			if e.logger != nil {
				e.logger.Debug("dedup worker stopping", "worker_id", workerID)
			}
			return
		case recordID := <-e.queue:
			e.processRecord(workerID, recordID)
		}
	}
}

func (e *Engine) processRecord(workerID int, recordID string) {
	rec, err := e.store.Records.Get(e.ctx, recordID)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("dedup worker: fetch record failed", "worker_id", workerID, "record_id", recordID, "error", err)
		}
		return
	}

	matched, err := e.Dedup(e.ctx, rec)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("dedup worker: dedup failed", "worker_id", workerID, "record_id", recordID, "error", err)
		}
		return
	}

	if e.logger != nil {
		e.logger.Debug("dedup worker: processed record", "worker_id", workerID, "record_id", recordID, "matched", matched)
	}
}

// UpdateCandidateKeys recomputes a record's isbn/id/title candidate-key
// sets from its parsed metadata, builds and returns the corresponding
// MetadataView, and updates R in place. Per invariant 4, empty sets are
// stored as nil, not an empty slice.
func (e *Engine) UpdateCandidateKeys(ctx context.Context, R *domain.Record) (domain.MetadataView, error) {
	view, err := e.factory.CreateRecord(R.Format, R.Raw, R.OAIID, R.SourceID)
	if err != nil {
		return nil, fmt.Errorf("build metadata view: %w", err)
	}

	R.ISBNKeys = nonEmpty(view.ISBNs())
	R.IDKeys = nonEmpty(view.UniqueIDs())
	if title := normalize.TitleKey(view.Title(false)); title != "" {
		R.TitleKeys = []string{title}
	} else {
		R.TitleKeys = nil
	}

	return view, nil
}

func nonEmpty(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CheckDedupRecord audits a dedup group against invariants 2 and 3
// (every member id must resolve to a live record pointing back at the
// group, and no two members may share a source id), expelling any member
// that fails the check. It returns one repair line per expulsion, in the
// form "expelled <id>: <reason>", and persists the repaired group.
func (e *Engine) CheckDedupRecord(ctx context.Context, g *domain.DedupGroup) ([]string, error) {
	var repairs []string
	kept := make([]string, 0, len(g.Ids))
	bySource := make(map[string]string, len(g.Ids))

	for _, memberID := range g.Ids {
		rec, err := e.store.Records.Get(ctx, memberID)
		if errs.Is(err, store.ErrNotFound) {
			repairs = append(repairs, fmt.Sprintf("expelled %s: record missing", memberID))
			continue
		}
		if err != nil {
			return repairs, errs.Store(err)
		}
		if rec.DedupID != g.ID {
			repairs = append(repairs, fmt.Sprintf("expelled %s: back-link mismatch (has %q)", memberID, rec.DedupID))
			continue
		}
		if other, ok := bySource[rec.SourceID]; ok {
			repairs = append(repairs, fmt.Sprintf("expelled %s: source %q already represented by %s", memberID, rec.SourceID, other))
			continue
		}
		bySource[rec.SourceID] = memberID
		kept = append(kept, memberID)
	}

	if len(repairs) == 0 {
		return nil, nil
	}

	g.Ids = kept
	if len(g.Ids) < 2 {
		for _, memberID := range g.Ids {
			if rec, err := e.store.Records.Get(ctx, memberID); err == nil {
				rec.DedupID = ""
				rec.Touch()
				if err := e.store.Records.Save(ctx, rec.ID, rec); err != nil {
					return repairs, errs.Store(err)
				}
			}
		}
		g.Ids = nil
		g.Deleted = true
	}
	g.Touch()
	if err := e.store.Groups.Save(ctx, g.ID, g); err != nil {
		return repairs, errs.Store(err)
	}

	if e.logger != nil {
		e.logger.Warn("repaired dedup group", "group_id", g.ID, "repairs", repairs)
	}

	return repairs, nil
}
