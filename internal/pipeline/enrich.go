package pipeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/diagnostic"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/niche"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/telemetry"
	"github.com/sells-group/prospect-cli/pkg/automation"
)

// candidates re-reads the run's new leads matching filter from the store,
// in ingestion order. Duplicates are never re-enriched.
func (o *Orchestrator) candidates(ctx context.Context, run *model.Run, filter store.LeadFilter) ([]model.Lead, error) {
	if len(run.NewLeadIDs) == 0 {
		return nil, nil
	}
	filter.TenantID = run.TenantID
	filter.IDs = run.NewLeadIDs
	leads, err := o.store.ListLeads(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select candidates")
	}
	return leads, nil
}

// forEach paces and calls fn for every candidate in order. The stage delay
// runs from the end of one call to the start of the next. A failed lead is
// recorded and the loop continues; only a cancelled context stops it. The
// run's counters and errors are saved after every lead.
func (o *Orchestrator) forEach(ctx context.Context, run *model.Run, stage model.Stage, leads []model.Lead, fn func(lead *model.Lead) error) error {
	if len(leads) == 0 {
		return nil
	}
	pacer := o.pacers(stage, o.delay(stage))
	for i := range leads {
		lead := &leads[i]
		if err := pacer.Wait(ctx); err != nil {
			return eris.Wrapf(err, "pipeline: %s stage interrupted", stage)
		}
		err := fn(lead)
		pacer.Done()
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrapf(err, "pipeline: %s stage interrupted", stage)
			}
			kind := automation.Kind(err)
			if kind == "internal" {
				kind = "store_error"
			} else {
				telemetry.ProviderCall(string(stage), kind)
			}
			stageError(run, stage, lead, kind, err)
		}
		o.saveProgress(ctx, run)
	}
	return nil
}

func (o *Orchestrator) delay(stage model.Stage) time.Duration {
	switch stage {
	case model.StageAds:
		return o.cfg.AdsDelay
	case model.StageAI:
		return o.cfg.AIDelay
	case model.StageDiagnostic:
		return o.cfg.DiagnosticDelay
	default:
		return 0
	}
}

// verifyAds checks each new lead with a website that was never verified and
// stores the detected tooling with the derived marketing level.
func (o *Orchestrator) verifyAds(ctx context.Context, run *model.Run) error {
	leads, err := o.candidates(ctx, run, store.LeadFilter{NeedsAds: true})
	if err != nil {
		return err
	}
	zap.L().Info("pipeline: ads candidates", zap.String("run_id", run.ID), zap.Int("count", len(leads)))

	return o.forEach(ctx, run, model.StageAds, leads, func(lead *model.Lead) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.DefaultTimeout)
		defer cancel()

		resp, err := o.ads.DetectAds(callCtx, automation.AdsRequest{URL: lead.Website, LeadID: lead.ID})
		if err != nil {
			return err
		}
		if !resp.Success {
			return &automation.Error{Kind: automation.ErrProviderError, Endpoint: "ads", Message: "success=false"}
		}
		telemetry.ProviderCall(string(model.StageAds), "ok")

		signals := model.AdsSignals{
			GoogleAds:        resp.GoogleAds,
			MetaPixel:        resp.MetaPixel,
			TikTokPixel:      resp.TikTokPixel,
			LinkedInInsight:  resp.LinkedInInsight,
			GoogleAnalytics:  resp.GoogleAnalytics,
			GoogleTagManager: resp.GoogleTagManager,
			VerifiedAt:       o.now(),
		}
		level := signals.Level()
		if err := resilience.Do(ctx, o.retry, "update lead ads", func(ctx context.Context) error {
			return o.store.UpdateLeadAds(ctx, lead.ID, level, signals)
		}); err != nil {
			return err
		}
		run.Stats.Verified++
		return nil
	})
}

// scoreAI scores each new HOT or WARM lead that has a place id and no AI
// score yet.
func (o *Orchestrator) scoreAI(ctx context.Context, run *model.Run) error {
	leads, err := o.candidates(ctx, run, store.LeadFilter{
		Classifications: []model.Classification{model.ClassificationHot, model.ClassificationWarm},
		NeedsAI:         true,
	})
	if err != nil {
		return err
	}
	zap.L().Info("pipeline: ai candidates", zap.String("run_id", run.ID), zap.Int("count", len(leads)))

	return o.forEach(ctx, run, model.StageAI, leads, func(lead *model.Lead) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.DefaultTimeout)
		defer cancel()

		resp, err := o.scorer.Score(callCtx, automation.ScoreRequest{PlaceID: lead.PlaceID, LeadID: lead.ID})
		if err != nil {
			return err
		}
		if !resp.Success {
			return &automation.Error{Kind: automation.ErrProviderError, Endpoint: "scoring", Message: "success=false"}
		}
		telemetry.ProviderCall(string(model.StageAI), "ok")

		ai := aiScore(resp, lead.Marketing)
		ai.AnalyzedAt = o.now()
		if err := resilience.Do(ctx, o.retry, "update lead ai", func(ctx context.Context) error {
			return o.store.UpdateLeadAI(ctx, lead.ID, ai)
		}); err != nil {
			return err
		}
		run.Stats.Analyzed++
		return nil
	})
}

// aiScore maps a scoring reply onto the lead's AI fields. A missing
// opportunity level is derived from the marketing level.
func aiScore(resp *automation.ScoreResponse, marketing model.MarketingLevel) model.AIScore {
	opp := model.ParseOpportunity(resp.OpportunityLevel)
	if opp == "" {
		opp = model.OpportunityFromMarketing(marketing)
	}
	return model.AIScore{
		BaseScore:      model.ClampScore(round(resp.BaseScore)),
		MarketingBonus: round(resp.MarketingBonus),
		FinalScore:     model.ClampScore(round(resp.FinalScore)),
		Classification: strings.ToUpper(strings.TrimSpace(resp.Classification)),
		Opportunity:    opp,
		Summary:        resp.Summary,
		Reasoning:      resp.Reasoning,
	}
}

func round(f float64) int {
	return int(math.Round(f))
}

// diagnose runs the deep diagnostic for each new HOT lead without one. The
// niche is detected locally first and sent along as a hint; the reply is
// normalized and never rejected for its shape.
func (o *Orchestrator) diagnose(ctx context.Context, run *model.Run) error {
	leads, err := o.candidates(ctx, run, store.LeadFilter{
		Classifications: []model.Classification{model.ClassificationHot},
		NeedsDiagnostic: true,
	})
	if err != nil {
		return err
	}
	zap.L().Info("pipeline: diagnostic candidates", zap.String("run_id", run.ID), zap.Int("count", len(leads)))

	return o.forEach(ctx, run, model.StageDiagnostic, leads, func(lead *model.Lead) error {
		match := o.detectNiche(lead)
		c := lead.Contact()

		callCtx, cancel := context.WithTimeout(ctx, o.cfg.DiagnosticTimeout)
		defer cancel()

		raw, err := o.diagnoser.Diagnose(callCtx, automation.DiagnosticRequest{
			LeadID:     c.LeadID,
			Name:       c.Name,
			Phone:      c.Phone,
			WhatsApp:   c.WhatsApp,
			Website:    c.Website,
			Instagram:  c.Instagram,
			Address:    c.Address,
			City:       c.City,
			Notes:      c.Notes,
			Niche:      match.Key,
			NicheLabel: match.Label,
			PainPoints: match.PainPoints,
		})
		if err != nil {
			return err
		}

		res := diagnostic.Normalize(raw, lead.Name, match, o.now())
		outcome := "ok"
		if res.Malformed {
			outcome = "malformed_response"
			zap.L().Warn("pipeline: diagnostic payload degraded",
				zap.String("run_id", run.ID),
				zap.String("lead", lead.Name),
				zap.Int("score", res.Diagnostic.Score),
			)
		}
		telemetry.ProviderCall(string(model.StageDiagnostic), outcome)

		if err := resilience.Do(ctx, o.retry, "update lead diagnostic", func(ctx context.Context) error {
			return o.store.UpdateLeadDiagnostic(ctx, lead.ID, res.Diagnostic)
		}); err != nil {
			return err
		}
		run.Stats.Diagnosed++
		return nil
	})
}

// detectNiche matches the lead's own fields first. The run category is the
// search term rather than a fact about the business, so it is only used
// when nothing else matches.
func (o *Orchestrator) detectNiche(lead *model.Lead) niche.Match {
	match := o.catalog.Detect(lead.Name, lead.Website, lead.Instagram, lead.Notes)
	if match.Key == niche.Other && lead.Category != "" {
		return o.catalog.Detect(lead.Category)
	}
	return match
}
