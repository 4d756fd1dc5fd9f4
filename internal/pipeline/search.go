package pipeline

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/telemetry"
	"github.com/sells-group/prospect-cli/pkg/automation"
)

// search queries every area in order, one at a time. A failed area is
// recorded and skipped; only the failure of every area fails the stage.
// Leads found in more than one area are kept once.
func (o *Orchestrator) search(ctx context.Context, run *model.Run) ([]model.Lead, error) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("stage", string(model.StageSearch)))

	run.Stats.Search = model.SearchStats{}
	var (
		leads []model.Lead
		seen  = make(map[string]bool)
	)

	for _, area := range run.Areas {
		stats := model.AreaStats{Area: area.Name}
		found, err := o.searchArea(ctx, run, area)
		if err != nil && ctx.Err() != nil {
			return nil, eris.Wrap(err, "pipeline: search interrupted")
		}
		if err != nil {
			kind := automation.Kind(err)
			telemetry.ProviderCall(string(model.StageSearch), kind)
			stats.Failed = true
			run.Stats.Search.AreasFailed++
			run.AddError(model.StageError{
				Stage:   model.StageSearch,
				Kind:    kind,
				Area:    area.Name,
				Message: err.Error(),
			})
			log.Warn("pipeline: area search failed",
				zap.String("area", area.Name),
				zap.String("kind", kind),
				zap.Error(err),
			)
			run.Stats.Search.PerArea = append(run.Stats.Search.PerArea, stats)
			continue
		}
		telemetry.ProviderCall(string(model.StageSearch), "ok")
		run.Stats.Search.AreasSearched++

		for i := range found {
			l := &found[i]
			stats.Count(l)
			if seen[l.PlaceID] {
				continue
			}
			seen[l.PlaceID] = true
			leads = append(leads, *l)
		}
		run.Stats.Search.PerArea = append(run.Stats.Search.PerArea, stats)
		log.Debug("pipeline: area searched", zap.String("area", area.Name), zap.Int("leads", stats.Total))
	}

	if run.Stats.Search.AreasSearched == 0 {
		return nil, ErrSearchFailed
	}

	var combined model.AreaStats
	for i := range leads {
		combined.Count(&leads[i])
	}
	run.Stats.Search.Total = combined.Total
	run.Stats.Search.Hot = combined.Hot
	run.Stats.Search.Warm = combined.Warm
	run.Stats.Search.Cool = combined.Cool
	run.Stats.Search.Cold = combined.Cold
	run.Stats.Search.WithWhatsApp = combined.WithWhatsApp
	run.Stats.Search.NoWebsite = combined.NoWebsite
	return leads, nil
}

// searchArea issues one discovery call bounded by the search timeout.
func (o *Orchestrator) searchArea(ctx context.Context, run *model.Run, area model.Area) ([]model.Lead, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()

	resp, err := o.searcher.Search(callCtx, automation.SearchRequest{
		TenantID: run.TenantID,
		Category: run.Category,
		Area: automation.SearchArea{
			Name:      area.Name,
			Latitude:  area.Latitude,
			Longitude: area.Longitude,
			Radius:    area.RadiusM,
		},
		MinScore:   run.MinScore,
		MaxResults: run.MaxPerArea,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &automation.Error{Kind: automation.ErrProviderError, Endpoint: "search", Message: "success=false"}
	}

	leads := make([]model.Lead, 0, len(resp.Leads))
	for _, sl := range resp.Leads {
		if strings.TrimSpace(sl.PlaceID) == "" {
			zap.L().Warn("pipeline: search lead without place id skipped",
				zap.String("run_id", run.ID),
				zap.String("area", area.Name),
				zap.String("lead", sl.Name),
			)
			continue
		}
		leads = append(leads, toLead(run, sl))
	}
	return leads, nil
}

func toLead(run *model.Run, sl automation.SearchLead) model.Lead {
	return model.Lead{
		TenantID:       run.TenantID,
		ClientID:       run.ClientID,
		PlaceID:        strings.TrimSpace(sl.PlaceID),
		Name:           strings.TrimSpace(sl.Name),
		Address:        sl.Address,
		City:           sl.City,
		Region:         sl.Region,
		Phone:          sl.Phone,
		WhatsApp:       sl.WhatsApp,
		Website:        strings.TrimSpace(sl.Website),
		Instagram:      sl.Instagram,
		Category:       run.Category,
		Score:          model.ClampScore(int(math.Round(sl.Score))),
		Classification: model.ParseClassification(sl.Classification),
		Opportunities:  sl.Opportunities,
	}
}

// upsert writes every found lead by natural key and splits the ids into
// new and duplicate. A lead whose write fails after retries is recorded as
// an error and skipped. Each new id is saved as soon as its lead is
// inserted, and ids recorded by an interrupted attempt stay new when the
// stage is replayed.
func (o *Orchestrator) upsert(ctx context.Context, run *model.Run, leads []model.Lead) error {
	inserted := make(map[string]bool, len(run.NewLeadIDs))
	for _, id := range run.NewLeadIDs {
		inserted[id] = true
	}
	run.DuplicateLeadIDs = run.DuplicateLeadIDs[:0]

	for i := range leads {
		lead := &leads[i]
		res, err := resilience.DoVal(ctx, o.retry, "upsert lead", func(ctx context.Context) (store.UpsertResult, error) {
			return o.store.UpsertLead(ctx, lead)
		})
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(err, "pipeline: upsert")
			}
			stageError(run, model.StageUpsert, lead, "store_error", err)
			continue
		}
		lead.ID = res.ID
		switch {
		case res.Inserted:
			inserted[res.ID] = true
			run.NewLeadIDs = append(run.NewLeadIDs, res.ID)
			telemetry.LeadsUpserted.WithLabelValues("new").Inc()
			run.Stats.New = len(run.NewLeadIDs)
			o.saveProgress(ctx, run)
		case inserted[res.ID]:
			// Inserted by an earlier attempt of this run.
		default:
			run.DuplicateLeadIDs = append(run.DuplicateLeadIDs, res.ID)
			telemetry.LeadsUpserted.WithLabelValues("duplicate").Inc()
		}
	}
	run.Stats.New = len(run.NewLeadIDs)
	run.Stats.Duplicates = len(run.DuplicateLeadIDs)
	return nil
}
