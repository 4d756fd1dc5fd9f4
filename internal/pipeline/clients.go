package pipeline

import (
	"context"

	"github.com/sells-group/prospect-cli/pkg/automation"
)

// Searcher discovers businesses in one area.
type Searcher interface {
	Search(ctx context.Context, req automation.SearchRequest) (*automation.SearchResponse, error)
}

// AdsDetector inspects a website for advertising and analytics tooling.
type AdsDetector interface {
	DetectAds(ctx context.Context, req automation.AdsRequest) (*automation.AdsResponse, error)
}

// Scorer runs AI scoring for one place.
type Scorer interface {
	Score(ctx context.Context, req automation.ScoreRequest) (*automation.ScoreResponse, error)
}

// Diagnoser runs the deep diagnostic and returns the raw, untrusted payload.
type Diagnoser interface {
	Diagnose(ctx context.Context, req automation.DiagnosticRequest) ([]byte, error)
}

var (
	_ Searcher    = (*automation.Client)(nil)
	_ AdsDetector = (*automation.Client)(nil)
	_ Scorer      = (*automation.Client)(nil)
	_ Diagnoser   = (*automation.Client)(nil)
)
