package automation

import (
	"context"

	"github.com/tidwall/gjson"
)

// DiagnosticRequest carries the contact bundle and the locally detected
// niche hint.
type DiagnosticRequest struct {
	LeadID     string   `json:"lead_id"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone,omitempty"`
	WhatsApp   string   `json:"whatsapp,omitempty"`
	Website    string   `json:"website,omitempty"`
	Instagram  string   `json:"instagram,omitempty"`
	Address    string   `json:"address,omitempty"`
	City       string   `json:"city,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Niche      string   `json:"niche"`
	NicheLabel string   `json:"niche_label,omitempty"`
	PainPoints []string `json:"pain_points,omitempty"`
}

// Diagnose runs the deep diagnostic and returns the raw payload. The shape
// is not trusted; callers normalize it. Only an explicit success=false on a
// top-level object is treated as a failure.
func (c *Client) Diagnose(ctx context.Context, req DiagnosticRequest) ([]byte, error) {
	body, err := c.post(ctx, "diagnostic", c.paths.Diagnostic, req)
	if err != nil {
		return nil, err
	}
	if s := gjson.GetBytes(body, "success"); s.Exists() && s.Type == gjson.False {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = gjson.GetBytes(body, "message").String()
		}
		return nil, &Error{Kind: ErrProviderError, Endpoint: "diagnostic", Message: msg}
	}
	return body, nil
}
