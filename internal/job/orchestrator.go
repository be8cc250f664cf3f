package job

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/EnzoMH/cradcrawl-enrich/internal/enrich"
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

// Enricher is the per-organization work the orchestrator fans out.
type Enricher interface {
	EnrichByID(ctx context.Context, id string) model.Outcome
}

const (
	defaultConcurrency = 3
	maxConcurrency     = 10
)

// Orchestrator fans batch enrichment out over a bounded worker pool
// and tracks each run as a Job in its registry.
type Orchestrator struct {
	enricher Enricher
	store    store.Store
	registry *Registry
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(enricher Enricher, st store.Store, registry *Registry) *Orchestrator {
	return &Orchestrator{
		enricher: enricher,
		store:    st,
		registry: registry,
		now:      time.Now,
	}
}

// Registry exposes the job registry for status queries.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Start registers a new job for the given organization ids and begins
// running it in the background. The returned Job can be polled via
// Snapshot or waited on via Done.
func (o *Orchestrator) Start(ctx context.Context, name, requester string, targetIDs []string, concurrency int) *Job {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	j := newJob(name, requester, targetIDs, concurrency)
	o.registry.add(j)

	go o.run(ctx, j)
	return j
}

// Run executes a job synchronously and returns its final snapshot.
func (o *Orchestrator) Run(ctx context.Context, name, requester string, targetIDs []string, concurrency int) model.JobSnapshot {
	j := o.Start(ctx, name, requester, targetIDs, concurrency)
	<-j.Done()
	return j.Snapshot()
}

func (o *Orchestrator) run(ctx context.Context, j *Job) {
	log := zap.L().With(zap.String("job_id", j.id), zap.String("job", j.name))
	j.markRunning(o.now())

	if len(j.targetIDs) == 0 {
		log.Info("no targets, nothing to do")
		o.finish(ctx, j, model.JobStatusCompleted, log)
		return
	}

	log.Info("starting batch enrichment",
		zap.Int("targets", len(j.targetIDs)),
		zap.Int("concurrency", j.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	// Items already dispatched run on a context that survives the stop
	// path, so a cooperative stop lets them finish; only dispatch
	// watches ctx.
	workCtx := context.WithoutCancel(ctx)

	canceled := false
dispatch:
	for _, id := range j.targetIDs {
		select {
		case <-gctx.Done():
			canceled = true
			break dispatch
		case <-j.stop:
			break dispatch
		default:
		}

		g.Go(func() error {
			if j.Stopping() {
				// Queued behind the pool limit when the stop arrived.
				return nil
			}
			outcome := o.enricher.EnrichByID(workCtx, id)
			j.record(outcome)
			if outcome.Status != model.OutcomeSuccess {
				zap.L().Warn("enrichment item failed",
					zap.String("job_id", j.id),
					zap.String("org_id", id),
					zap.String("error", outcome.Error),
				)
			}
			return nil // don't abort the batch on individual failures
		})
	}
	_ = g.Wait()

	status := model.JobStatusCompleted
	switch {
	case j.Stopping():
		status = model.JobStatusStopped
	case canceled || ctx.Err() != nil:
		status = model.JobStatusFailed
	}
	o.finish(ctx, j, status, log)
}

func (o *Orchestrator) finish(ctx context.Context, j *Job, status model.JobStatus, log *zap.Logger) {
	j.finish(status, o.now())
	o.registry.markEnded(j.id)

	snap := j.Snapshot()
	log.Info("batch enrichment finished",
		zap.String("status", string(snap.Status)),
		zap.Int("processed", snap.Processed),
		zap.Int("succeeded", snap.Succeeded),
		zap.Int("failed", snap.Failed),
	)

	if o.store != nil {
		// Persist with a fresh context so a canceled batch still leaves
		// an audit record.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.store.SaveJobSummary(pctx, snap); err != nil {
			log.Warn("failed to persist job summary", zap.Error(err))
		}
	}
}

// StartAuto picks the most incomplete organizations up to limit and
// starts a batch over them.
func (o *Orchestrator) StartAuto(ctx context.Context, requester string, limit, concurrency int) (*Job, error) {
	candidates, err := enrich.ListCandidates(ctx, o.store, store.CandidateFilter{Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "auto enrich: list candidates")
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Org.ID
	}
	return o.Start(ctx, "auto-enrich", requester, ids, concurrency), nil
}
