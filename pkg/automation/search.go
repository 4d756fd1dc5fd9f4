package automation

import (
	"context"
)

// SearchArea is the single area carried by a search request.
type SearchArea struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Radius    int     `json:"radius"`
}

// SearchRequest asks the discovery workflow for businesses in one area.
type SearchRequest struct {
	TenantID   string     `json:"tenant_id"`
	Category   string     `json:"category"`
	Area       SearchArea `json:"area"`
	MinScore   int        `json:"min_score"`
	MaxResults int        `json:"max_results"`
}

// SearchLead is one business returned by the discovery workflow.
type SearchLead struct {
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	Region         string   `json:"region"`
	Phone          string   `json:"phone"`
	WhatsApp       string   `json:"whatsapp"`
	Website        string   `json:"website"`
	Instagram      string   `json:"instagram"`
	Score          float64  `json:"score"`
	Classification string   `json:"classification"`
	Opportunities  []string `json:"opportunities"`
}

// SearchResponse is the discovery workflow reply.
type SearchResponse struct {
	Success bool         `json:"success"`
	Leads   []SearchLead `json:"leads"`
}

// Search runs business discovery for one area.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	body, err := c.post(ctx, "search", c.paths.Search, req)
	if err != nil {
		return nil, err
	}
	var resp SearchResponse
	if err := decode("search", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
