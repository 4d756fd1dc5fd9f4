package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Request is the inbound trigger of a pipeline run. Nil optional fields take
// their defaults: min score and max per area from configuration, ads
// verification and AI scoring on, deep diagnostic off.
type Request struct {
	ClientID      string       `json:"client_id,omitempty"`
	Category      string       `json:"category"`
	Areas         []model.Area `json:"areas"`
	MinScore      *int         `json:"min_score,omitempty"`
	MaxPerArea    *int         `json:"max_per_area,omitempty"`
	VerifyAds     *bool        `json:"verify_ads,omitempty"`
	RunAI         *bool        `json:"run_ai,omitempty"`
	RunDiagnostic *bool        `json:"run_diagnostic,omitempty"`
}

// newRun validates req and builds the unsaved run record.
func (o *Orchestrator) newRun(tenant string, req Request) (*model.Run, error) {
	run := &model.Run{
		TenantID:   tenant,
		ClientID:   strings.TrimSpace(req.ClientID),
		Category:   strings.TrimSpace(req.Category),
		Areas:      req.Areas,
		MinScore:   valueOr(req.MinScore, o.cfg.DefaultMinScore),
		MaxPerArea: valueOr(req.MaxPerArea, o.cfg.DefaultMaxPerArea),
		Options: model.RunOptions{
			VerifyAds:     valueOr(req.VerifyAds, true),
			RunAI:         valueOr(req.RunAI, true),
			RunDiagnostic: valueOr(req.RunDiagnostic, false),
		},
		Errors: []model.StageError{},
	}

	switch {
	case run.TenantID == "":
		return nil, eris.Wrap(ErrInvalidRequest, "tenant is required")
	case run.Category == "":
		return nil, eris.Wrap(ErrInvalidRequest, "category is required")
	case len(run.Areas) == 0:
		return nil, eris.Wrap(ErrInvalidRequest, "at least one area is required")
	case run.MinScore < 0 || run.MinScore > 100:
		return nil, eris.Wrapf(ErrInvalidRequest, "min_score %d must be within 0..100", run.MinScore)
	case run.MaxPerArea <= 0:
		return nil, eris.Wrapf(ErrInvalidRequest, "max_per_area %d must be positive", run.MaxPerArea)
	}
	for i, a := range run.Areas {
		if err := validateArea(a); err != nil {
			return nil, eris.Wrapf(err, "area %d", i)
		}
	}
	return run, nil
}

func validateArea(a model.Area) error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return eris.Wrap(ErrInvalidRequest, "name is required")
	case a.Latitude < -90 || a.Latitude > 90:
		return eris.Wrapf(ErrInvalidRequest, "latitude %f out of range", a.Latitude)
	case a.Longitude < -180 || a.Longitude > 180:
		return eris.Wrapf(ErrInvalidRequest, "longitude %f out of range", a.Longitude)
	case a.RadiusM <= 0:
		return eris.Wrapf(ErrInvalidRequest, "radius %d must be positive", a.RadiusM)
	}
	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
