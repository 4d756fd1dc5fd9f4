// Package pipeline orchestrates the prospecting stages: search, upsert,
// ads verification, AI scoring and deep diagnostic.
package pipeline

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/niche"
	"github.com/sells-group/prospect-cli/internal/quota"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/telemetry"
)

var (
	// ErrInvalidRequest is matched by every request validation failure.
	ErrInvalidRequest = eris.New("pipeline: invalid request")
	// ErrSearchFailed means every area of the search stage failed.
	ErrSearchFailed = eris.New("pipeline: search failed for every area")
	// ErrNotResumable means the run already reached a terminal status.
	ErrNotResumable = eris.New("pipeline: run is not resumable")
)

// Deps are the collaborators of an Orchestrator. Pacers, Now and Retry are
// optional.
type Deps struct {
	Store     store.Store
	Quota     *quota.Validator
	Catalog   *niche.Catalog
	Searcher  Searcher
	Ads       AdsDetector
	Scorer    Scorer
	Diagnoser Diagnoser
	Pacers    PacerFactory
	Now       func() time.Time
	Retry     *resilience.Policy
}

// Orchestrator runs pipelines. It is safe for concurrent use; each run is
// processed sequentially on the calling goroutine.
type Orchestrator struct {
	cfg       config.PipelineConfig
	store     store.Store
	quota     *quota.Validator
	catalog   *niche.Catalog
	searcher  Searcher
	ads       AdsDetector
	scorer    Scorer
	diagnoser Diagnoser
	pacers    PacerFactory
	now       func() time.Time
	retry     resilience.Policy
}

// Default stage timeouts, used when the configuration leaves them unset.
const (
	DefaultSearchTimeout     = 2 * time.Minute
	DefaultCallTimeout       = 2 * time.Minute
	DefaultDiagnosticTimeout = 10 * time.Minute
)

// New creates an Orchestrator.
func New(cfg config.PipelineConfig, d Deps) *Orchestrator {
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultCallTimeout
	}
	if cfg.DiagnosticTimeout <= 0 {
		cfg.DiagnosticTimeout = DefaultDiagnosticTimeout
	}
	o := &Orchestrator{
		cfg:       cfg,
		store:     d.Store,
		quota:     d.Quota,
		catalog:   d.Catalog,
		searcher:  d.Searcher,
		ads:       d.Ads,
		scorer:    d.Scorer,
		diagnoser: d.Diagnoser,
		pacers:    d.Pacers,
		now:       d.Now,
		retry:     resilience.DefaultPolicy(),
	}
	if o.quota == nil {
		o.quota = quota.NewValidator(quota.DefaultLimits())
	}
	if o.catalog == nil {
		o.catalog = niche.Default()
	}
	if o.pacers == nil {
		o.pacers = LocalPacers()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if d.Retry != nil {
		o.retry = *d.Retry
	}
	return o
}

// Limits returns the request ceilings Run enforces.
func (o *Orchestrator) Limits() quota.Limits {
	return o.quota.Limits()
}

// Result is the response of a run: the persisted record, its stats and
// errors, and the leads it touched sorted by AI final score.
type Result struct {
	Run    *model.Run         `json:"run"`
	Stats  model.RunStats     `json:"stats"`
	Errors []model.StageError `json:"errors"`
	Leads  []model.Lead       `json:"leads"`
}

func newResult(run *model.Run) *Result {
	errs := run.Errors
	if errs == nil {
		errs = []model.StageError{}
	}
	return &Result{Run: run, Stats: run.Stats, Errors: errs, Leads: []model.Lead{}}
}

// Run validates and executes a new pipeline for tenant. A quota or
// validation failure returns before anything is persisted or called. When
// every search area fails the returned Result carries the failed run along
// with an error matching ErrSearchFailed.
func (o *Orchestrator) Run(ctx context.Context, tenant string, req Request) (*Result, error) {
	if tenant == "" {
		tenant = o.cfg.DefaultTenant
	}
	run, err := o.newRun(tenant, req)
	if err != nil {
		return nil, err
	}
	if err := o.quota.Check(len(run.Areas), run.MaxPerArea); err != nil {
		telemetry.QuotaRejects.Inc()
		return nil, err
	}

	run.Status = model.RunStatusPending
	if err := o.store.CreateRun(ctx, run); err != nil {
		telemetry.RunsTotal.WithLabelValues(string(model.RunStatusFailed)).Inc()
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	run.Status = model.RunStatusProcessing
	if err := o.checkpoint(ctx, run); err != nil {
		return o.fail(ctx, run, err)
	}

	zap.L().Info("pipeline: run started",
		zap.String("run_id", run.ID),
		zap.String("tenant", run.TenantID),
		zap.String("category", run.Category),
		zap.Int("areas", len(run.Areas)),
		zap.Int("max_per_area", run.MaxPerArea),
	)
	return o.execute(ctx, run)
}

// Resume continues a processing run from its first unfinished stage.
func (o *Orchestrator) Resume(ctx context.Context, tenant, runID string) (*Result, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load run")
	}
	if tenant != "" && run.TenantID != tenant {
		return nil, eris.Wrapf(store.ErrNotFound, "pipeline: run %s", runID)
	}
	switch run.Status {
	case model.RunStatusCompleted, model.RunStatusFailed:
		return nil, eris.Wrapf(ErrNotResumable, "run %s is %s", runID, run.Status)
	case model.RunStatusPending:
		run.Status = model.RunStatusProcessing
		if err := o.checkpoint(ctx, run); err != nil {
			return o.fail(ctx, run, err)
		}
	}

	zap.L().Info("pipeline: resuming run",
		zap.String("run_id", run.ID),
		zap.String("tenant", run.TenantID),
		zap.Int("stages_done", len(run.Stages)),
	)
	return o.execute(ctx, run)
}

// execute runs every stage without a completion marker.
func (o *Orchestrator) execute(ctx context.Context, run *model.Run) (*Result, error) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("tenant", run.TenantID))

	// Search results are not persisted on their own, so search and upsert
	// are replayed together until the upsert marker exists.
	if !run.StageDone(model.StageUpsert) {
		var found []model.Lead
		err := o.trackStage(ctx, run, model.StageSearch, func() error {
			var searchErr error
			found, searchErr = o.search(ctx, run)
			return searchErr
		})
		if err == nil {
			err = o.trackStage(ctx, run, model.StageUpsert, func() error {
				return o.upsert(ctx, run, found)
			})
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return o.fail(ctx, run, err)
		}
	}

	stages := []struct {
		stage   model.Stage
		enabled bool
		fn      func(context.Context, *model.Run) error
	}{
		{model.StageAds, run.Options.VerifyAds, o.verifyAds},
		{model.StageAI, run.Options.RunAI, o.scoreAI},
		{model.StageDiagnostic, run.Options.RunDiagnostic, o.diagnose},
	}
	for _, s := range stages {
		if run.StageDone(s.stage) {
			continue
		}
		if !s.enabled {
			log.Debug("pipeline: stage disabled", zap.String("stage", string(s.stage)))
			run.MarkStage(s.stage, o.now())
			continue
		}
		if err := o.trackStage(ctx, run, s.stage, func() error {
			return s.fn(ctx, run)
		}); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-stage: the run stays processing and can be resumed.
				return nil, err
			}
			return o.fail(ctx, run, err)
		}
	}

	now := o.now()
	run.Status = model.RunStatusCompleted
	run.CompletedAt = &now
	if err := o.checkpoint(ctx, run); err != nil {
		return o.fail(ctx, run, err)
	}
	telemetry.RunsTotal.WithLabelValues(string(model.RunStatusCompleted)).Inc()

	log.Info("pipeline: run complete",
		zap.Int("total", run.Stats.Search.Total),
		zap.Int("new", run.Stats.New),
		zap.Int("duplicates", run.Stats.Duplicates),
		zap.Int("ads_verified", run.Stats.Verified),
		zap.Int("analyzed", run.Stats.Analyzed),
		zap.Int("diagnosed", run.Stats.Diagnosed),
		zap.Int("errors", run.Stats.Errors),
	)

	res := newResult(run)
	leads, err := o.runLeads(ctx, run)
	if err != nil {
		return nil, err
	}
	res.Leads = leads
	return res, nil
}

// trackStage runs fn, records its duration, and persists the stage marker.
func (o *Orchestrator) trackStage(ctx context.Context, run *model.Run, stage model.Stage, fn func() error) error {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("stage", string(stage)))
	start := time.Now()
	err := fn()
	telemetry.ObserveStage(string(stage), start)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		log.Error("pipeline: stage failed", zap.Int64("duration_ms", duration), zap.Error(err))
		return err
	}
	run.MarkStage(stage, o.now())
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}
	log.Info("pipeline: stage complete",
		zap.Int64("duration_ms", duration),
		zap.Int("errors", run.Stats.Errors),
	)
	return nil
}

// checkpoint persists the run record, retrying transient store errors.
func (o *Orchestrator) checkpoint(ctx context.Context, run *model.Run) error {
	err := resilience.Do(ctx, o.retry, "update run", func(ctx context.Context) error {
		return o.store.UpdateRun(ctx, run)
	})
	return eris.Wrap(err, "pipeline: persist run")
}

// saveProgress persists the run between leads of a stage. It survives
// cancellation so work already done is not counted twice on resume, and a
// failure only logs: the stage checkpoint is the authoritative write.
func (o *Orchestrator) saveProgress(ctx context.Context, run *model.Run) {
	err := resilience.Do(context.WithoutCancel(ctx), o.retry, "update run", func(ctx context.Context) error {
		return o.store.UpdateRun(ctx, run)
	})
	if err != nil {
		zap.L().Warn("pipeline: failed to save run progress",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

// fail marks the run failed and persists it on a best-effort basis.
func (o *Orchestrator) fail(ctx context.Context, run *model.Run, cause error) (*Result, error) {
	now := o.now()
	run.Status = model.RunStatusFailed
	run.CompletedAt = &now
	if err := o.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Warn("pipeline: failed to persist failed run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	telemetry.RunsTotal.WithLabelValues(string(model.RunStatusFailed)).Inc()
	zap.L().Error("pipeline: run failed", zap.String("run_id", run.ID), zap.Error(cause))
	return newResult(run), cause
}

// runLeads loads every lead the run touched, new and duplicate.
func (o *Orchestrator) runLeads(ctx context.Context, run *model.Run) ([]model.Lead, error) {
	ids := slices.Concat(run.NewLeadIDs, run.DuplicateLeadIDs)
	if len(ids) == 0 {
		return []model.Lead{}, nil
	}
	leads, err := o.store.ListLeads(ctx, store.LeadFilter{TenantID: run.TenantID, IDs: ids})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load run leads")
	}
	SortByFinalScore(leads)
	return leads, nil
}

// SortByFinalScore orders leads by AI final score descending. Leads never
// AI-analyzed go last; ties keep their order.
func SortByFinalScore(leads []model.Lead) {
	slices.SortStableFunc(leads, func(a, b model.Lead) int {
		fa, fb := a.FinalScore(), b.FinalScore()
		switch {
		case fa == nil && fb == nil:
			return 0
		case fa == nil:
			return 1
		case fb == nil:
			return -1
		default:
			return cmp.Compare(*fb, *fa)
		}
	})
}

// stageError records a per-lead provider failure on the run.
func stageError(run *model.Run, stage model.Stage, lead *model.Lead, kind string, err error) {
	run.AddError(model.StageError{
		Stage:   stage,
		Kind:    kind,
		LeadID:  lead.ID,
		Lead:    lead.Name,
		Message: err.Error(),
	})
	zap.L().Warn("pipeline: lead failed",
		zap.String("run_id", run.ID),
		zap.String("stage", string(stage)),
		zap.String("lead", lead.Name),
		zap.String("kind", kind),
		zap.Error(err),
	)
}
