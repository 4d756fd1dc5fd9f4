package diagnostic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/automation"
)

const systemPrompt = `You are a senior digital-marketing analyst preparing a sales diagnostic for a local business.
You receive a JSON contact bundle and a niche hint with known pain points.
Reply with a single JSON object and nothing else, using exactly these keys:
  "score" (integer 0-100, how strong a prospect this business is for marketing services),
  "summary" (string, two or three sentences),
  "niche" (string, keep the hint unless the data clearly says otherwise),
  "strengths", "weaknesses", "opportunities", "pain_points", "recommended_services" (arrays of short strings),
  "messages" (object with "opening", "follow_up" and "closing" outreach texts addressed to the business by name).`

// AnthropicDiagnoser produces deep diagnostics with Claude instead of the
// automation webhook. Its output goes through the same Normalize path.
type AnthropicDiagnoser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicDiagnoser creates a diagnoser from the anthropic config section.
func NewAnthropicDiagnoser(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicDiagnoser {
	d := &AnthropicDiagnoser{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}
	if d.model == "" {
		d.model = "claude-haiku-4-5-20251001"
	}
	if d.maxTokens <= 0 {
		d.maxTokens = 2048
	}
	return d
}

// Diagnose sends the contact bundle to Claude and returns the JSON text of
// the reply.
func (d *AnthropicDiagnoser) Diagnose(ctx context.Context, req automation.DiagnosticRequest) ([]byte, error) {
	bundle, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "diagnostic: marshal contact bundle")
	}

	temp := 0.2
	resp, err := d.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       d.model,
		MaxTokens:   d.maxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: string(bundle)}},
		Temperature: &temp,
	})
	if err != nil {
		kind := automation.ErrProviderError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = automation.ErrProviderTimeout
		}
		return nil, &automation.Error{Kind: kind, Endpoint: "diagnostic", Cause: err}
	}
	resp.Usage.LogCost(d.model, "diagnostic")

	text := stripFences(resp.Text())
	if text == "" {
		zap.L().Warn("diagnostic: empty completion",
			zap.String("lead_id", req.LeadID),
			zap.String("stop_reason", resp.StopReason),
		)
	}
	return []byte(text), nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
