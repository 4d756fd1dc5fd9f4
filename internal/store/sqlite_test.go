package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(placeID string, class model.Classification) *model.Lead {
	return &model.Lead{
		TenantID:       "tenant-1",
		PlaceID:        placeID,
		Name:           "Lead " + placeID,
		City:           "Campinas",
		Phone:          "+55 19 3333-0000",
		Website:        "https://" + placeID + ".example.com",
		Score:          70,
		Classification: class,
		Opportunities:  []string{"no_ads"},
	}
}

// --- Runs ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := &model.Run{
		TenantID:   "tenant-1",
		Category:   "dentist",
		Areas:      []model.Area{{Name: "Centro", Latitude: -22.9, Longitude: -47.06, RadiusM: 3000}},
		MaxPerArea: 20,
		Options:    model.RunOptions{VerifyAds: true, RunAI: true},
		Status:     model.RunStatusProcessing,
	}
	require.NoError(t, st.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	run.Stats.New = 3
	run.MarkStage(model.StageSearch, time.Now().UTC())
	run.AddError(model.StageError{Stage: model.StageAds, Kind: "provider_timeout", Lead: "Acme", Message: "timeout"})
	run.Status = model.RunStatusCompleted
	done := time.Now().UTC()
	run.CompletedAt = &done
	require.NoError(t, st.UpdateRun(ctx, run))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, "dentist", got.Category)
	assert.Equal(t, 3, got.Stats.New)
	assert.Equal(t, 1, got.Stats.Errors)
	assert.True(t, got.StageDone(model.StageSearch))
	require.Len(t, got.Areas, 1)
	assert.Equal(t, 3000, got.Areas[0].RadiusM)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.UpdateRun(context.Background(), &model.Run{ID: "missing", Status: model.RunStatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, r := range []*model.Run{
		{TenantID: "a", Status: model.RunStatusCompleted},
		{TenantID: "a", Status: model.RunStatusFailed},
		{TenantID: "b", Status: model.RunStatusCompleted},
	} {
		require.NoError(t, st.CreateRun(ctx, r))
	}

	runs, err := st.ListRuns(ctx, RunFilter{TenantID: "a"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{TenantID: "a", Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// --- Leads ---

func TestSQLite_UpsertLead_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.UpsertLead(ctx, testLead("p1", model.ClassificationHot))
	require.NoError(t, err)
	assert.True(t, first.Inserted)

	again := testLead("p1", model.ClassificationWarm)
	again.Score = 65
	again.Phone = "" // empty contact fields keep the stored value
	second, err := st.UpsertLead(ctx, again)
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.ID, second.ID)

	leads, err := st.ListLeads(ctx, LeadFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, model.ClassificationWarm, leads[0].Classification)
	assert.Equal(t, 65, leads[0].Score)
	assert.Equal(t, "+55 19 3333-0000", leads[0].Phone)
	assert.Equal(t, model.LeadStatusNew, leads[0].Status)
	assert.Equal(t, model.MarketingNotVerified, leads[0].Marketing)
	assert.Equal(t, []string{"no_ads"}, leads[0].Opportunities)
}

func TestSQLite_UpsertLead_SamePlaceDifferentTenant(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.UpsertLead(ctx, testLead("p1", model.ClassificationHot))
	require.NoError(t, err)
	other := testLead("p1", model.ClassificationHot)
	other.TenantID = "tenant-2"
	b, err := st.UpsertLead(ctx, other)
	require.NoError(t, err)

	assert.True(t, b.Inserted)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSQLite_UpsertLead_RefreshKeepsEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.UpsertLead(ctx, testLead("p1", model.ClassificationHot))
	require.NoError(t, err)
	require.NoError(t, st.UpdateLeadAI(ctx, res.ID, model.AIScore{FinalScore: 88, Classification: "HOT"}))

	_, err = st.UpsertLead(ctx, testLead("p1", model.ClassificationHot))
	require.NoError(t, err)

	got, err := st.GetLead(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AI)
	assert.Equal(t, 88, got.AI.FinalScore)
}

func TestSQLite_ListLeads_CandidateFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ids := map[string]string{}
	for _, l := range []*model.Lead{
		testLead("hot", model.ClassificationHot),
		testLead("warm", model.ClassificationWarm),
		testLead("cool", model.ClassificationCool),
		func() *model.Lead { l := testLead("nosite", model.ClassificationHot); l.Website = ""; return l }(),
	} {
		res, err := st.UpsertLead(ctx, l)
		require.NoError(t, err)
		ids[l.PlaceID] = res.ID
	}
	all := []string{ids["cool"], ids["nosite"], ids["warm"], ids["hot"]}

	ads, err := st.ListLeads(ctx, LeadFilter{IDs: all, NeedsAds: true})
	require.NoError(t, err)
	assert.Equal(t, []string{ids["cool"], ids["warm"], ids["hot"]}, leadIDs(ads), "order follows IDs")

	ai, err := st.ListLeads(ctx, LeadFilter{
		IDs:             all,
		Classifications: []model.Classification{model.ClassificationHot, model.ClassificationWarm},
		NeedsAI:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ids["nosite"], ids["warm"], ids["hot"]}, leadIDs(ai))

	require.NoError(t, st.UpdateLeadAds(ctx, ids["hot"], model.MarketingBasic, model.AdsSignals{GoogleAds: true}))
	ads, err = st.ListLeads(ctx, LeadFilter{IDs: all, NeedsAds: true})
	require.NoError(t, err)
	assert.NotContains(t, leadIDs(ads), ids["hot"])

	require.NoError(t, st.UpdateLeadDiagnostic(ctx, ids["hot"], model.Diagnostic{Score: 85, Temperature: model.ClassificationHot}))
	diag, err := st.ListLeads(ctx, LeadFilter{
		IDs:             all,
		Classifications: []model.Classification{model.ClassificationHot},
		NeedsDiagnostic: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ids["nosite"]}, leadIDs(diag))
}

func TestSQLite_ListLeads_ByFinalScoreAcrossPages(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	scores := map[string]int{"forty": 40, "ninety-five": 95, "seventy": 70}
	for _, place := range []string{"forty", "unscored", "ninety-five", "seventy"} {
		res, err := st.UpsertLead(ctx, testLead(place, model.ClassificationHot))
		require.NoError(t, err)
		if s, ok := scores[place]; ok {
			require.NoError(t, st.UpdateLeadAI(ctx, res.ID, model.AIScore{FinalScore: s}))
		}
	}

	places := func(leads []model.Lead) []string {
		out := make([]string, len(leads))
		for i, l := range leads {
			out[i] = l.PlaceID
		}
		return out
	}

	first, err := st.ListLeads(ctx, LeadFilter{TenantID: "tenant-1", ByFinalScore: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"ninety-five", "seventy"}, places(first))

	second, err := st.ListLeads(ctx, LeadFilter{TenantID: "tenant-1", ByFinalScore: true, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"forty", "unscored"}, places(second), "never scored goes last")
}

func TestSQLite_UpdateLeadAds(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.UpsertLead(ctx, testLead("p1", model.ClassificationHot))
	require.NoError(t, err)

	verified := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.UpdateLeadAds(ctx, res.ID, model.MarketingAdvanced, model.AdsSignals{
		MetaPixel: true, GoogleTagManager: true, VerifiedAt: verified,
	}))

	got, err := st.GetLead(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MarketingAdvanced, got.Marketing)
	require.NotNil(t, got.Ads)
	assert.True(t, got.Ads.MetaPixel)
	assert.True(t, got.Ads.GoogleTagManager)
	assert.True(t, verified.Equal(got.Ads.VerifiedAt))
}

func TestSQLite_UpdateLeadDiagnostic_CopiesScoreAndTemperature(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.UpsertLead(ctx, testLead("p1", model.ClassificationHot))
	require.NoError(t, err)
	require.NoError(t, st.UpdateLeadDiagnostic(ctx, res.ID, model.Diagnostic{
		Score:       62,
		Temperature: model.ClassificationWarm,
		Niche:       "dentistry",
		Strengths:   []string{"Good reviews"},
		Messages:    model.Messages{Opening: "Hi"},
	}))

	got, err := st.GetLead(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 62, got.Score)
	assert.Equal(t, model.ClassificationWarm, got.Classification)
	require.NotNil(t, got.Diagnostic)
	assert.Equal(t, "dentistry", got.Diagnostic.Niche)
	assert.Equal(t, "Hi", got.Diagnostic.Messages.Opening)
}

func TestSQLite_UpdateLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, st.UpdateLeadAI(ctx, "missing", model.AIScore{}), ErrNotFound)
	assert.ErrorIs(t, st.UpdateLeadAds(ctx, "missing", model.MarketingNone, model.AdsSignals{}), ErrNotFound)
	assert.ErrorIs(t, st.UpdateLeadDiagnostic(ctx, "missing", model.Diagnostic{}), ErrNotFound)
	_, err := st.GetLead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func leadIDs(leads []model.Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.ID
	}
	return out
}
