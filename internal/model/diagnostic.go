package model

import "time"

// Diagnostic is the canonical deep-diagnostic record persisted on a lead.
type Diagnostic struct {
	Score               int            `json:"score"`
	Temperature         Classification `json:"temperature"`
	Niche               string         `json:"niche"`
	Summary             string         `json:"summary,omitempty"`
	Strengths           []string       `json:"strengths"`
	Weaknesses          []string       `json:"weaknesses"`
	Opportunities       []string       `json:"opportunities"`
	PainPoints          []string       `json:"pain_points"`
	RecommendedServices []string       `json:"recommended_services"`
	Messages            Messages       `json:"messages"`
	DiagnosedAt         time.Time      `json:"diagnosed_at"`
}

// Messages are the draft outreach messages produced for a lead.
type Messages struct {
	Opening  string `json:"opening"`
	FollowUp string `json:"follow_up"`
	Closing  string `json:"closing"`
}

// TemperatureForScore derives the canonical temperature from a diagnostic
// score. COLD is never produced here.
func TemperatureForScore(score int) Classification {
	switch {
	case score >= 80:
		return ClassificationHot
	case score >= 60:
		return ClassificationWarm
	default:
		return ClassificationCool
	}
}
