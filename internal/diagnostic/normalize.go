// Package diagnostic turns loosely-typed deep-diagnostic payloads into the
// canonical model.Diagnostic.
package diagnostic

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/niche"
)

// Field spellings seen from the diagnostic backends, canonical name first.
var (
	envelopeKeys     = []string{"output", "data", "result", "diagnostic", "diagnostico"}
	scoreKeys        = []string{"score", "final_score", "lead_score", "nota", "pontuacao"}
	summaryKeys      = []string{"summary", "resumo", "analysis", "analise"}
	nicheKeys        = []string{"niche", "nicho"}
	strengthKeys     = []string{"strengths", "strenghts", "pontos_fortes"}
	weaknessKeys     = []string{"weaknesses", "weakness", "weaknesess", "pontos_fracos"}
	opportunityKeys  = []string{"opportunities", "oportunities", "opportunites", "oportunidades"}
	painPointKeys    = []string{"pain_points", "painPoints", "pains", "dores"}
	serviceKeys      = []string{"recommended_services", "recommendedServices", "services", "servicos_recomendados"}
	messageBlockKeys = []string{"messages", "outreach", "mensagens"}
	openingKeys      = []string{"opening", "first_message", "abertura"}
	followUpKeys     = []string{"follow_up", "followup", "followUp", "follow-up"}
	closingKeys      = []string{"closing", "close", "fechamento"}
	itemTextKeys     = []string{"text", "title", "description", "descricao"}
	rawScorePattern  = regexp.MustCompile(`"(?:score|final_score|lead_score)"\s*:\s*"?(\d{1,3})`)
)

const (
	maxEnvelopeDepth = 3

	defaultOpening  = "Hi {name}, I took a look at how your business shows up online and noticed a few quick wins."
	defaultFollowUp = "Following up on my last message: happy to share the short diagnostic we prepared for {name}."
	defaultClosing  = "If now is not a good time, no problem. Should I check back next month?"
)

// Result is a normalized diagnostic plus whether the raw payload had to be
// degraded.
type Result struct {
	Diagnostic model.Diagnostic
	Malformed  bool
}

// Normalize maps a raw provider payload to the canonical diagnostic. It
// accepts an object or a one-element list, optionally wrapped in a known
// envelope key, and tolerates the alternate spellings above. It never fails:
// unusable input yields empty sections, the best-effort raw score, and
// default messages built from the detected niche.
func Normalize(raw []byte, leadName string, match niche.Match, now time.Time) Result {
	d := model.Diagnostic{
		Niche:       match.Key,
		DiagnosedAt: now,
	}

	obj, ok := unwrap(raw)
	if !ok {
		d.Score = rawScore(raw)
		finish(&d, leadName, match)
		return Result{Diagnostic: d, Malformed: true}
	}

	d.Score = model.ClampScore(intValue(first(obj, scoreKeys)))
	d.Summary = strings.TrimSpace(first(obj, summaryKeys).String())
	if n := strings.TrimSpace(first(obj, nicheKeys).String()); n != "" {
		d.Niche = n
	}
	d.Strengths = stringList(first(obj, strengthKeys))
	d.Weaknesses = stringList(first(obj, weaknessKeys))
	d.Opportunities = stringList(first(obj, opportunityKeys))
	d.PainPoints = stringList(first(obj, painPointKeys))
	d.RecommendedServices = stringList(first(obj, serviceKeys))

	msgs := first(obj, messageBlockKeys)
	if !msgs.IsObject() {
		msgs = obj
	}
	d.Messages = model.Messages{
		Opening:  strings.TrimSpace(first(msgs, openingKeys).String()),
		FollowUp: strings.TrimSpace(first(msgs, followUpKeys).String()),
		Closing:  strings.TrimSpace(first(msgs, closingKeys).String()),
	}

	finish(&d, leadName, match)
	return Result{Diagnostic: d}
}

// finish derives the temperature and fills empty sections and messages.
func finish(d *model.Diagnostic, leadName string, match niche.Match) {
	d.Temperature = model.TemperatureForScore(d.Score)
	if len(d.PainPoints) == 0 && len(match.PainPoints) > 0 {
		d.PainPoints = append([]string(nil), match.PainPoints...)
	}
	for _, s := range []*[]string{&d.Strengths, &d.Weaknesses, &d.Opportunities, &d.PainPoints, &d.RecommendedServices} {
		if *s == nil {
			*s = []string{}
		}
	}
	d.Messages = DefaultMessages(d.Messages, leadName, match)
}

// DefaultMessages fills any empty outreach message from the niche hints,
// falling back to generic skeletons.
func DefaultMessages(m model.Messages, leadName string, match niche.Match) model.Messages {
	pick := func(current, hint, fallback string) string {
		if current != "" {
			return current
		}
		if hint != "" {
			return niche.Render(hint, leadName)
		}
		return niche.Render(fallback, leadName)
	}
	return model.Messages{
		Opening:  pick(m.Opening, match.Hints.Opening, defaultOpening),
		FollowUp: pick(m.FollowUp, match.Hints.FollowUp, defaultFollowUp),
		Closing:  pick(m.Closing, match.Hints.Closing, defaultClosing),
	}
}

func unwrap(raw []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}
	r := gjson.ParseBytes(raw)
	for depth := 0; depth <= maxEnvelopeDepth; depth++ {
		if r.IsArray() {
			items := r.Array()
			if len(items) == 0 {
				return gjson.Result{}, false
			}
			r = items[0]
			continue
		}
		if !r.IsObject() {
			return gjson.Result{}, false
		}
		if isDiagnostic(r) {
			return r, true
		}
		inner := first(r, envelopeKeys)
		if inner.IsObject() || inner.IsArray() {
			r = inner
			continue
		}
		return r, true
	}
	return r, r.IsObject()
}

// isDiagnostic reports whether obj already carries a diagnostic field, in
// which case nested objects are sections rather than envelopes.
func isDiagnostic(obj gjson.Result) bool {
	for _, keys := range [][]string{
		scoreKeys, summaryKeys, strengthKeys, weaknessKeys, opportunityKeys,
		painPointKeys, serviceKeys, messageBlockKeys,
	} {
		if first(obj, keys).Exists() {
			return true
		}
	}
	return false
}

func first(r gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(gjson.Escape(k)); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func intValue(r gjson.Result) int {
	switch r.Type {
	case gjson.Number:
		return int(r.Float() + 0.5)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0
		}
		return int(f + 0.5)
	default:
		return 0
	}
}

func stringList(r gjson.Result) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch {
	case r.IsArray():
		for _, item := range r.Array() {
			if item.IsObject() {
				add(first(item, itemTextKeys).String())
				continue
			}
			add(item.String())
		}
	case r.Type == gjson.String:
		for _, line := range strings.Split(r.Str, "\n") {
			add(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		}
	}
	return out
}

func rawScore(raw []byte) int {
	m := rawScorePattern.FindSubmatch(raw)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0
	}
	return model.ClampScore(n)
}
