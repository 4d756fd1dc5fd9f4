package automation

import (
	"context"
)

// AdsRequest asks the detector to inspect a website.
type AdsRequest struct {
	URL    string `json:"url"`
	LeadID string `json:"lead_id"`
}

// AdsResponse lists the tooling found on the website.
type AdsResponse struct {
	Success          bool `json:"success"`
	GoogleAds        bool `json:"google_ads"`
	MetaPixel        bool `json:"meta_pixel"`
	TikTokPixel      bool `json:"tiktok_pixel"`
	LinkedInInsight  bool `json:"linkedin_insight"`
	GoogleAnalytics  bool `json:"google_analytics"`
	GoogleTagManager bool `json:"google_tag_manager"`
}

// DetectAds checks a website for advertising and analytics tooling.
func (c *Client) DetectAds(ctx context.Context, req AdsRequest) (*AdsResponse, error) {
	body, err := c.post(ctx, "ads", c.paths.Ads, req)
	if err != nil {
		return nil, err
	}
	var resp AdsResponse
	if err := decode("ads", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
