package automation

import (
	"context"
)

// ScoreRequest asks the scoring workflow to analyze one place.
type ScoreRequest struct {
	PlaceID string `json:"place_id"`
	LeadID  string `json:"lead_id"`
}

// ScoreResponse is the AI scoring reply.
type ScoreResponse struct {
	Success          bool    `json:"success"`
	BaseScore        float64 `json:"base_score"`
	MarketingBonus   float64 `json:"marketing_bonus"`
	FinalScore       float64 `json:"final_score"`
	Classification   string  `json:"classification"`
	OpportunityLevel string  `json:"opportunity_level"`
	Summary          string  `json:"summary"`
	Reasoning        string  `json:"reasoning"`
}

// Score runs AI scoring for one place.
func (c *Client) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	body, err := c.post(ctx, "scoring", c.paths.Scoring, req)
	if err != nil {
		return nil, err
	}
	var resp ScoreResponse
	if err := decode("scoring", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
