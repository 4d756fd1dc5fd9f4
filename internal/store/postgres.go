package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/db"
	"github.com/sells-group/prospect-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	client_id       TEXT NOT NULL DEFAULT '',
	place_id        TEXT NOT NULL,
	name            TEXT NOT NULL,
	address         TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	region          TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	whatsapp        TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	instagram       TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	score           INTEGER NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 100),
	classification  TEXT NOT NULL DEFAULT 'COLD',
	opportunities   JSONB NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL DEFAULT 'NEW',
	marketing_level TEXT NOT NULL DEFAULT 'NOT_VERIFIED',
	ads             JSONB,
	ai              JSONB,
	diagnostic      JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, place_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_tenant_created ON runs(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_classification ON leads(tenant_id, classification);
CREATE INDEX IF NOT EXISTS idx_leads_updated_at ON leads(updated_at DESC);
`

// leadUpsertColumns are bound in this order by UpsertLead.
var leadUpsertColumns = []string{
	"id", "tenant_id", "client_id", "place_id", "name", "address", "city", "region", "phone",
	"whatsapp", "website", "instagram", "notes", "category", "score", "classification",
	"opportunities", "status", "marketing_level",
}

// leadUpsertSQL refreshes discovery fields on conflict, keeps stored contact
// fields when the new value is empty and reports whether the row is new.
var leadUpsertSQL = func() string {
	stmt, err := db.UpsertSQL(db.UpsertConfig{
		Table:        "leads",
		Columns:      leadUpsertColumns,
		ConflictKeys: []string{"tenant_id", "place_id"},
		UpdateCols:   []string{"name", "score", "classification", "opportunities", "category"},
		KeepCols:     []string{"client_id", "address", "city", "region", "phone", "whatsapp", "website", "instagram"},
		Touch:        "updated_at",
		Returning:    "id, (xmax = 0) AS inserted",
	})
	if err != nil {
		panic(err)
	}
	return stmt
}()

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

const postgresFinalScore = `(ai->>'final_score')::int`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now

	payload, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, tenant_id, status, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.TenantID, string(run.Status), payload, now, now,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, payload = $2, updated_at = $3, completed_at = $4 WHERE id = $5`,
		string(run.Status), payload, run.UpdatedAt, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	var args []any
	argN := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argN)
		args = append(args, filter.TenantID)
		argN++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argN)
	args = append(args, limit)
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// --- Leads ---

// UpsertLead is a single INSERT ... ON CONFLICT on (tenant_id, place_id), so
// concurrent runs never duplicate a lead; conflicting field writes are
// last-write-wins.
func (s *PostgresStore) UpsertLead(ctx context.Context, lead *model.Lead) (UpsertResult, error) {
	opps, err := marshalOpportunities(lead.Opportunities)
	if err != nil {
		return UpsertResult{}, err
	}
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	var res UpsertResult
	err = s.pool.QueryRow(ctx, leadUpsertSQL,
		uuid.New().String(), lead.TenantID, lead.ClientID, lead.PlaceID, lead.Name, lead.Address,
		lead.City, lead.Region, lead.Phone, lead.WhatsApp, lead.Website, lead.Instagram, lead.Notes,
		lead.Category, model.ClampScore(lead.Score), string(lead.Classification), opps,
		string(status), string(model.MarketingNotVerified),
	).Scan(&res.ID, &res.Inserted)
	if err != nil {
		return UpsertResult{}, eris.Wrapf(err, "postgres: upsert lead %s", lead.PlaceID)
	}
	return res, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	where, args := leadWhere(filter, postgresPlaceholder)
	page, args := leadPage(filter, postgresPlaceholder, postgresFinalScore, args)

	rows, err := s.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads`+where+page, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list leads iterate")
	}
	orderByIDs(leads, filter.IDs)
	return leads, nil
}

func (s *PostgresStore) UpdateLeadAds(ctx context.Context, leadID string, level model.MarketingLevel, ads model.AdsSignals) error {
	b, err := json.Marshal(ads)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ads")
	}
	return s.execLead(ctx, "ads", leadID,
		`UPDATE leads SET ads = $1, marketing_level = $2, updated_at = now() WHERE id = $3`,
		b, string(level), leadID,
	)
}

func (s *PostgresStore) UpdateLeadAI(ctx context.Context, leadID string, ai model.AIScore) error {
	b, err := json.Marshal(ai)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ai")
	}
	return s.execLead(ctx, "ai", leadID,
		`UPDATE leads SET ai = $1, updated_at = now() WHERE id = $2`,
		b, leadID,
	)
}

// UpdateLeadDiagnostic stores the diagnostic and copies its score and
// temperature onto the lead.
func (s *PostgresStore) UpdateLeadDiagnostic(ctx context.Context, leadID string, d model.Diagnostic) error {
	b, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal diagnostic")
	}
	return s.execLead(ctx, "diagnostic", leadID,
		`UPDATE leads SET diagnostic = $1, score = $2, classification = $3, updated_at = now() WHERE id = $4`,
		b, model.ClampScore(d.Score), string(d.Temperature), leadID,
	)
}

func (s *PostgresStore) execLead(ctx context.Context, what, leadID, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s %s", what, leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: lead %s", leadID)
	}
	return nil
}
