package model

import (
	"strings"
	"time"
)

// Classification is the coarse qualification bucket assigned to a lead.
type Classification string

const (
	ClassificationHot  Classification = "HOT"
	ClassificationWarm Classification = "WARM"
	ClassificationCool Classification = "COOL"
	ClassificationCold Classification = "COLD"
)

// ParseClassification normalizes a provider-supplied label. Unknown labels
// fall back to COLD.
func ParseClassification(s string) Classification {
	switch Classification(strings.ToUpper(strings.TrimSpace(s))) {
	case ClassificationHot:
		return ClassificationHot
	case ClassificationWarm:
		return ClassificationWarm
	case ClassificationCool:
		return ClassificationCool
	default:
		return ClassificationCold
	}
}

// Qualified reports whether the classification admits AI scoring.
func (c Classification) Qualified() bool {
	return c == ClassificationHot || c == ClassificationWarm
}

// MarketingLevel describes a lead's digital-advertising maturity.
type MarketingLevel string

const (
	MarketingNotVerified MarketingLevel = "NOT_VERIFIED"
	MarketingNone        MarketingLevel = "NONE"
	MarketingBasic       MarketingLevel = "BASIC"
	MarketingAdvanced    MarketingLevel = "ADVANCED"
)

// LeadStatus is the user-driven workflow status of a lead. The pipeline
// only ever writes LeadStatusNew on insert.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "NEW"
	LeadStatusContacted  LeadStatus = "CONTACTED"
	LeadStatusResponded  LeadStatus = "RESPONDED"
	LeadStatusInterested LeadStatus = "INTERESTED"
	LeadStatusClosed     LeadStatus = "CLOSED"
	LeadStatusLost       LeadStatus = "LOST"
)

// OpportunityLevel ranks how much room an agency has to help a lead.
type OpportunityLevel string

const (
	OpportunityHigh   OpportunityLevel = "HIGH"
	OpportunityMedium OpportunityLevel = "MEDIUM"
	OpportunityLow    OpportunityLevel = "LOW"
)

// OpportunityFromMarketing maps marketing maturity to an opportunity level.
// Less mature marketing means more room for an agency. Returns "" when the
// lead was never verified.
func OpportunityFromMarketing(level MarketingLevel) OpportunityLevel {
	switch level {
	case MarketingNone:
		return OpportunityHigh
	case MarketingBasic:
		return OpportunityMedium
	case MarketingAdvanced:
		return OpportunityLow
	default:
		return ""
	}
}

// ParseOpportunity normalizes a provider-supplied opportunity label.
// Unknown or empty labels return "".
func ParseOpportunity(s string) OpportunityLevel {
	switch OpportunityLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case OpportunityHigh:
		return OpportunityHigh
	case OpportunityMedium:
		return OpportunityMedium
	case OpportunityLow:
		return OpportunityLow
	default:
		return ""
	}
}

// Lead is a discovered business, unique per (TenantID, PlaceID).
type Lead struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	ClientID       string         `json:"client_id,omitempty"`
	PlaceID        string         `json:"place_id"`
	Name           string         `json:"name"`
	Address        string         `json:"address,omitempty"`
	City           string         `json:"city,omitempty"`
	Region         string         `json:"region,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	WhatsApp       string         `json:"whatsapp,omitempty"`
	Website        string         `json:"website,omitempty"`
	Instagram      string         `json:"instagram,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Category       string         `json:"category,omitempty"`
	Score          int            `json:"score"`
	Classification Classification `json:"classification"`
	Opportunities  []string       `json:"opportunities,omitempty"`
	Status         LeadStatus     `json:"status"`

	Marketing MarketingLevel `json:"marketing_level"`
	Ads       *AdsSignals    `json:"ads,omitempty"`

	AI *AIScore `json:"ai,omitempty"`

	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinalScore returns the AI final score, or nil when the lead was never
// AI-analyzed.
func (l *Lead) FinalScore() *int {
	if l.AI == nil {
		return nil
	}
	s := l.AI.FinalScore
	return &s
}

// Contact bundles the free-text and contact fields handed to the
// diagnostic provider.
func (l *Lead) Contact() Contact {
	return Contact{
		LeadID:    l.ID,
		Name:      l.Name,
		Phone:     l.Phone,
		WhatsApp:  l.WhatsApp,
		Website:   l.Website,
		Instagram: l.Instagram,
		Address:   l.Address,
		City:      l.City,
		Notes:     l.Notes,
	}
}

// Contact is the lead's contact bundle.
type Contact struct {
	LeadID    string `json:"lead_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
	Website   string `json:"website,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// AdsSignals holds the advertising and analytics tooling detected on a
// lead's website.
type AdsSignals struct {
	GoogleAds        bool      `json:"google_ads"`
	MetaPixel        bool      `json:"meta_pixel"`
	TikTokPixel      bool      `json:"tiktok_pixel"`
	LinkedInInsight  bool      `json:"linkedin_insight"`
	GoogleAnalytics  bool      `json:"google_analytics"`
	GoogleTagManager bool      `json:"google_tag_manager"`
	VerifiedAt       time.Time `json:"verified_at"`
}

// RunsPaidAds reports whether any paid-ads platform was detected.
func (a AdsSignals) RunsPaidAds() bool {
	return a.GoogleAds || a.MetaPixel || a.TikTokPixel || a.LinkedInInsight
}

// UsesAnalytics reports whether an analytics or tag-manager tool was detected.
func (a AdsSignals) UsesAnalytics() bool {
	return a.GoogleAnalytics || a.GoogleTagManager
}

// Level derives the marketing maturity level from the detected tooling.
func (a AdsSignals) Level() MarketingLevel {
	ads, analytics := a.RunsPaidAds(), a.UsesAnalytics()
	switch {
	case ads && analytics:
		return MarketingAdvanced
	case ads || analytics:
		return MarketingBasic
	default:
		return MarketingNone
	}
}

// AIScore holds the fields merged onto a lead by the AI scoring stage.
type AIScore struct {
	BaseScore      int              `json:"base_score"`
	MarketingBonus int              `json:"marketing_bonus"`
	FinalScore     int              `json:"final_score"`
	Classification string           `json:"classification"`
	Opportunity    OpportunityLevel `json:"opportunity_level,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Reasoning      string           `json:"reasoning,omitempty"`
	AnalyzedAt     time.Time        `json:"analyzed_at"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
