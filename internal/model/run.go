package model

import "time"

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageSearch     Stage = "search"
	StageUpsert     Stage = "upsert"
	StageAds        Stage = "ads"
	StageAI         Stage = "ai"
	StageDiagnostic Stage = "diagnostic"
)

// Area is a geographic search area supplied per request.
type Area struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusM   int     `json:"radius"`
}

// RunOptions are the per-stage toggles of a run.
type RunOptions struct {
	VerifyAds     bool `json:"verify_ads"`
	RunAI         bool `json:"run_ai"`
	RunDiagnostic bool `json:"run_diagnostic"`
}

// Run is the lifecycle record of one pipeline invocation.
type Run struct {
	ID         string       `json:"id"`
	TenantID   string       `json:"tenant_id"`
	ClientID   string       `json:"client_id,omitempty"`
	Category   string       `json:"category"`
	Areas      []Area       `json:"areas"`
	MinScore   int          `json:"min_score"`
	MaxPerArea int          `json:"max_per_area"`
	Options    RunOptions   `json:"options"`
	Status     RunStatus    `json:"status"`
	Stats      RunStats     `json:"stats"`
	Errors     []StageError `json:"errors"`
	Stages     []StageMark  `json:"stages"`

	NewLeadIDs       []string `json:"new_lead_ids,omitempty"`
	DuplicateLeadIDs []string `json:"duplicate_lead_ids,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StageDone reports whether the stage has a completion marker.
func (r *Run) StageDone(s Stage) bool {
	for _, m := range r.Stages {
		if m.Stage == s {
			return true
		}
	}
	return false
}

// MarkStage records a stage completion marker.
func (r *Run) MarkStage(s Stage, at time.Time) {
	if r.StageDone(s) {
		return
	}
	r.Stages = append(r.Stages, StageMark{Stage: s, CompletedAt: at})
}

// AddError appends a stage error and keeps the error counter in sync.
func (r *Run) AddError(e StageError) {
	r.Errors = append(r.Errors, e)
	r.Stats.Errors = len(r.Errors)
}

// StageMark records the completion of one stage.
type StageMark struct {
	Stage       Stage     `json:"stage"`
	CompletedAt time.Time `json:"completed_at"`
}

// StageError is a per-item failure absorbed into the run's error list.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Area    string `json:"area,omitempty"`
	LeadID  string `json:"lead_id,omitempty"`
	Lead    string `json:"lead,omitempty"`
	Message string `json:"message"`
}

// SearchStats counts what the search stage returned.
type SearchStats struct {
	Total         int         `json:"total"`
	Hot           int         `json:"hot"`
	Warm          int         `json:"warm"`
	Cool          int         `json:"cool"`
	Cold          int         `json:"cold"`
	WithWhatsApp  int         `json:"with_whatsapp"`
	NoWebsite     int         `json:"without_website"`
	AreasSearched int         `json:"areas_searched"`
	AreasFailed   int         `json:"areas_failed"`
	PerArea       []AreaStats `json:"per_area,omitempty"`
}

// AreaStats are the search counts for one area.
type AreaStats struct {
	Area         string `json:"area"`
	Failed       bool   `json:"failed"`
	Total        int    `json:"total"`
	Hot          int    `json:"hot"`
	Warm         int    `json:"warm"`
	Cool         int    `json:"cool"`
	Cold         int    `json:"cold"`
	WithWhatsApp int    `json:"with_whatsapp"`
	NoWebsite    int    `json:"without_website"`
}

// Count adds one lead to the area counters.
func (a *AreaStats) Count(l *Lead) {
	a.Total++
	switch l.Classification {
	case ClassificationHot:
		a.Hot++
	case ClassificationWarm:
		a.Warm++
	case ClassificationCool:
		a.Cool++
	default:
		a.Cold++
	}
	if l.WhatsApp != "" {
		a.WithWhatsApp++
	}
	if l.Website == "" {
		a.NoWebsite++
	}
}

// RunStats aggregates counters across all stages of a run.
type RunStats struct {
	Search     SearchStats `json:"search"`
	New        int         `json:"new"`
	Duplicates int         `json:"duplicates"`
	Verified   int         `json:"ads_verified"`
	Analyzed   int         `json:"analyzed"`
	Diagnosed  int         `json:"diagnosed"`
	Errors     int         `json:"errors"`
}
