package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/pkg/automation"
)

// --- Provider Mocks ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, req automation.SearchRequest) (*automation.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.SearchResponse), args.Error(1)
}

type mockAdsDetector struct {
	mock.Mock
}

func (m *mockAdsDetector) DetectAds(ctx context.Context, req automation.AdsRequest) (*automation.AdsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.AdsResponse), args.Error(1)
}

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(ctx context.Context, req automation.ScoreRequest) (*automation.ScoreResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*automation.ScoreResponse), args.Error(1)
}

type mockDiagnoser struct {
	mock.Mock
}

func (m *mockDiagnoser) Diagnose(ctx context.Context, req automation.DiagnosticRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// slowAds answers every ads call after took and records when each call
// started and ended.
type slowAds struct {
	took   time.Duration
	mu     sync.Mutex
	starts []time.Time
	ends   []time.Time
}

func (s *slowAds) DetectAds(ctx context.Context, _ automation.AdsRequest) (*automation.AdsResponse, error) {
	s.mu.Lock()
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()
	time.Sleep(s.took)
	s.mu.Lock()
	s.ends = append(s.ends, time.Now())
	s.mu.Unlock()
	return &automation.AdsResponse{Success: true}, ctx.Err()
}

// --- Pacer Recorder ---

// paceRecorder records every pacer built, wait and finished call, without
// sleeping.
type paceRecorder struct {
	mu        sync.Mutex
	intervals map[model.Stage]time.Duration
	waits     map[model.Stage]int
	dones     map[model.Stage]int
}

func newPaceRecorder() *paceRecorder {
	return &paceRecorder{
		intervals: make(map[model.Stage]time.Duration),
		waits:     make(map[model.Stage]int),
		dones:     make(map[model.Stage]int),
	}
}

func (r *paceRecorder) factory() PacerFactory {
	return func(stage model.Stage, interval time.Duration) Pacer {
		r.mu.Lock()
		r.intervals[stage] = interval
		r.mu.Unlock()
		return recordingPacer{r: r, stage: stage}
	}
}

type recordingPacer struct {
	r     *paceRecorder
	stage model.Stage
}

func (p recordingPacer) Wait(ctx context.Context) error {
	p.r.mu.Lock()
	p.r.waits[p.stage]++
	p.r.mu.Unlock()
	return ctx.Err()
}

func (p recordingPacer) Done() {
	p.r.mu.Lock()
	p.r.dones[p.stage]++
	p.r.mu.Unlock()
}

// --- Store Wrapper ---

// flakyStore wraps a real store and fails selected operations.
type flakyStore struct {
	store.Store
	createRunErr error
	upsertErr    map[string]error // by place id
	adsErr       error
	afterUpsert  func()
}

func (s *flakyStore) CreateRun(ctx context.Context, run *model.Run) error {
	if s.createRunErr != nil {
		return s.createRunErr
	}
	return s.Store.CreateRun(ctx, run)
}

func (s *flakyStore) UpsertLead(ctx context.Context, lead *model.Lead) (store.UpsertResult, error) {
	if err := s.upsertErr[lead.PlaceID]; err != nil {
		return store.UpsertResult{}, err
	}
	res, err := s.Store.UpsertLead(ctx, lead)
	if err == nil && s.afterUpsert != nil {
		s.afterUpsert()
	}
	return res, err
}

func (s *flakyStore) UpdateLeadAds(ctx context.Context, id string, level model.MarketingLevel, ads model.AdsSignals) error {
	if s.adsErr != nil {
		return s.adsErr
	}
	return s.Store.UpdateLeadAds(ctx, id, level, ads)
}

// --- Ensure interface compliance ---
var (
	_ Searcher    = (*mockSearcher)(nil)
	_ AdsDetector = (*mockAdsDetector)(nil)
	_ AdsDetector = (*slowAds)(nil)
	_ Scorer      = (*mockScorer)(nil)
	_ Diagnoser   = (*mockDiagnoser)(nil)
	_ Pacer       = recordingPacer{}
	_ store.Store = (*flakyStore)(nil)
)
