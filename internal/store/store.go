// Package store persists pipeline runs and deduplicated leads.
package store

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ErrNotFound is returned when a run or lead does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	TenantID string          `json:"tenant_id,omitempty"`
	Status   model.RunStatus `json:"status,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// LeadFilter specifies criteria for listing leads. When IDs is non-empty
// only those leads are returned, in the order of IDs.
type LeadFilter struct {
	TenantID        string
	IDs             []string
	Classifications []model.Classification

	// NeedsAds selects leads with a website whose marketing level is still
	// NOT_VERIFIED.
	NeedsAds bool
	// NeedsAI selects leads with a place id and no AI score.
	NeedsAI bool
	// NeedsDiagnostic selects leads with no diagnostic.
	NeedsDiagnostic bool

	// ByFinalScore pages by AI final score descending, leads never scored
	// last, instead of by most recently updated.
	ByFinalScore bool

	Limit  int
	Offset int
}

// UpsertResult reports the id of an upserted lead and whether the natural
// key was new.
type UpsertResult struct {
	ID       string
	Inserted bool
}

// Store defines the persistence interface for the prospecting pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	UpdateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Leads
	UpsertLead(ctx context.Context, lead *model.Lead) (UpsertResult, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadAds(ctx context.Context, leadID string, level model.MarketingLevel, ads model.AdsSignals) error
	UpdateLeadAI(ctx context.Context, leadID string, ai model.AIScore) error
	UpdateLeadDiagnostic(ctx context.Context, leadID string, d model.Diagnostic) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

const leadColumns = `id, tenant_id, client_id, place_id, name, address, city, region, phone, whatsapp,
	website, instagram, notes, category, score, classification, opportunities, status,
	marketing_level, ads, ai, diagnostic, created_at, updated_at`

const runColumns = `id, tenant_id, status, payload, created_at, updated_at, completed_at`

type scannable interface {
	Scan(dest ...any) error
}

// scanLead reads one row selected with leadColumns. JSON columns are
// scanned as raw bytes; NULL leaves them nil.
func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var opps, ads, ai, diag []byte
	err := row.Scan(
		&l.ID, &l.TenantID, &l.ClientID, &l.PlaceID, &l.Name, &l.Address, &l.City, &l.Region,
		&l.Phone, &l.WhatsApp, &l.Website, &l.Instagram, &l.Notes, &l.Category, &l.Score,
		&l.Classification, &opps, &l.Status, &l.Marketing, &ads, &ai, &diag,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(opps) > 0 {
		if err := json.Unmarshal(opps, &l.Opportunities); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal opportunities")
		}
	}
	if len(ads) > 0 {
		l.Ads = &model.AdsSignals{}
		if err := json.Unmarshal(ads, l.Ads); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal ads")
		}
	}
	if len(ai) > 0 {
		l.AI = &model.AIScore{}
		if err := json.Unmarshal(ai, l.AI); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal ai")
		}
	}
	if len(diag) > 0 {
		l.Diagnostic = &model.Diagnostic{}
		if err := json.Unmarshal(diag, l.Diagnostic); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal diagnostic")
		}
	}
	return &l, nil
}

// scanRun reads one row selected with runColumns. The payload carries the
// full record; the indexed columns win over it.
func scanRun(row scannable) (*model.Run, error) {
	var (
		id, tenant           string
		status               model.RunStatus
		payload              []byte
		createdAt, updatedAt time.Time
		completedAt          *time.Time
	)
	if err := row.Scan(&id, &tenant, &status, &payload, &createdAt, &updatedAt, &completedAt); err != nil {
		return nil, err
	}

	var r model.Run
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run payload")
	}
	r.ID, r.TenantID, r.Status = id, tenant, status
	r.CreatedAt, r.UpdatedAt, r.CompletedAt = createdAt, updatedAt, completedAt
	return &r, nil
}

// leadWhere builds the WHERE clause for f. ph returns the placeholder for
// the n-th (1-based) argument.
func leadWhere(f LeadFilter, ph func(n int) string) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", ph(len(args)), 1)
		}
		conds = append(conds, cond)
	}

	if f.TenantID != "" {
		add("tenant_id = ?", f.TenantID)
	}
	if len(f.IDs) > 0 {
		vals := make([]any, len(f.IDs))
		for i, id := range f.IDs {
			vals[i] = id
		}
		add("id IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(f.IDs)), ", ")+")", vals...)
	}
	if len(f.Classifications) > 0 {
		vals := make([]any, len(f.Classifications))
		for i, c := range f.Classifications {
			vals[i] = string(c)
		}
		add("classification IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")+")", vals...)
	}
	if f.NeedsAds {
		add("website <> '' AND marketing_level = ?", string(model.MarketingNotVerified))
	}
	if f.NeedsAI {
		add("place_id <> '' AND ai IS NULL")
	}
	if f.NeedsDiagnostic {
		add("diagnostic IS NULL")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// leadPage appends ordering and paging. Leads requested by id keep the
// caller's order, so they are sorted after the query instead. finalScore is
// the dialect's expression for the AI final score as an integer.
func leadPage(f LeadFilter, ph func(n int) string, finalScore string, args []any) (string, []any) {
	if len(f.IDs) > 0 {
		return "", args
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	order := " ORDER BY "
	if f.ByFinalScore {
		order += finalScore + " DESC NULLS LAST, "
	}
	args = append(args, limit)
	q := order + "updated_at DESC, id LIMIT " + ph(len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += " OFFSET " + ph(len(args))
	}
	return q, args
}

// orderByIDs sorts leads to follow ids.
func orderByIDs(leads []model.Lead, ids []string) {
	if len(ids) == 0 {
		return
	}
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	slices.SortStableFunc(leads, func(a, b model.Lead) int {
		return pos[a.ID] - pos[b.ID]
	})
}

// marshalOpportunities always yields a JSON array.
func marshalOpportunities(opps []string) ([]byte, error) {
	if opps == nil {
		opps = []string{}
	}
	b, err := json.Marshal(opps)
	return b, eris.Wrap(err, "store: marshal opportunities")
}
