package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	payload      TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
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
	score           INTEGER NOT NULL DEFAULT 0,
	classification  TEXT NOT NULL DEFAULT 'COLD',
	opportunities   TEXT NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL DEFAULT 'NEW',
	marketing_level TEXT NOT NULL DEFAULT 'NOT_VERIFIED',
	ads             TEXT,
	ai              TEXT,
	diagnostic      TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, place_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_tenant_created ON runs(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_classification ON leads(tenant_id, classification);
CREATE INDEX IF NOT EXISTS idx_leads_updated_at ON leads(updated_at);
`

func sqlitePlaceholder(int) string { return "?" }

const sqliteFinalScore = `CAST(json_extract(ai, '$.final_score') AS INTEGER)`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now

	payload, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, tenant_id, status, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.TenantID, string(run.Status), string(payload), now, now,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, payload = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(run.Status), string(payload), run.UpdatedAt, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- Leads ---

// UpsertLead inserts the lead or refreshes the mutable discovery fields of
// the existing (tenant, place id) row. Enrichment fields and the workflow
// status are never touched here.
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *model.Lead) (UpsertResult, error) {
	opps, err := marshalOpportunities(lead.Opportunities)
	if err != nil {
		return UpsertResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM leads WHERE tenant_id = ? AND place_id = ?`,
		lead.TenantID, lead.PlaceID,
	).Scan(&id)

	var res UpsertResult
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res = UpsertResult{ID: uuid.New().String(), Inserted: true}
		status := lead.Status
		if status == "" {
			status = model.LeadStatusNew
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO leads (id, tenant_id, client_id, place_id, name, address, city, region, phone,
				whatsapp, website, instagram, notes, category, score, classification, opportunities,
				status, marketing_level, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, lead.TenantID, lead.ClientID, lead.PlaceID, lead.Name, lead.Address, lead.City,
			lead.Region, lead.Phone, lead.WhatsApp, lead.Website, lead.Instagram, lead.Notes,
			lead.Category, model.ClampScore(lead.Score), string(lead.Classification), string(opps),
			string(status), string(model.MarketingNotVerified), now, now,
		)
		if err != nil {
			return UpsertResult{}, eris.Wrapf(err, "sqlite: insert lead %s", lead.PlaceID)
		}
	case err != nil:
		return UpsertResult{}, eris.Wrapf(err, "sqlite: lookup lead %s", lead.PlaceID)
	default:
		res = UpsertResult{ID: id}
		_, err = tx.ExecContext(ctx,
			`UPDATE leads SET
				name = ?, score = ?, classification = ?, opportunities = ?, category = ?,
				client_id = COALESCE(NULLIF(?, ''), client_id),
				address = COALESCE(NULLIF(?, ''), address),
				city = COALESCE(NULLIF(?, ''), city),
				region = COALESCE(NULLIF(?, ''), region),
				phone = COALESCE(NULLIF(?, ''), phone),
				whatsapp = COALESCE(NULLIF(?, ''), whatsapp),
				website = COALESCE(NULLIF(?, ''), website),
				instagram = COALESCE(NULLIF(?, ''), instagram),
				updated_at = ?
			 WHERE id = ?`,
			lead.Name, model.ClampScore(lead.Score), string(lead.Classification), string(opps), lead.Category,
			lead.ClientID, lead.Address, lead.City, lead.Region, lead.Phone, lead.WhatsApp,
			lead.Website, lead.Instagram, now, id,
		)
		if err != nil {
			return UpsertResult{}, eris.Wrapf(err, "sqlite: refresh lead %s", lead.PlaceID)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, eris.Wrap(err, "sqlite: commit upsert")
	}
	return res, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, leadID)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", leadID)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	where, args := leadWhere(filter, sqlitePlaceholder)
	page, args := leadPage(filter, sqlitePlaceholder, sqliteFinalScore, args)

	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads`+where+page, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads iterate")
	}
	orderByIDs(leads, filter.IDs)
	return leads, nil
}

func (s *SQLiteStore) UpdateLeadAds(ctx context.Context, leadID string, level model.MarketingLevel, ads model.AdsSignals) error {
	b, err := json.Marshal(ads)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ads")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET ads = ?, marketing_level = ?, updated_at = ? WHERE id = ?`,
		string(b), string(level), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead ads %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) UpdateLeadAI(ctx context.Context, leadID string, ai model.AIScore) error {
	b, err := json.Marshal(ai)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ai")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET ai = ?, updated_at = ? WHERE id = ?`,
		string(b), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead ai %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

// UpdateLeadDiagnostic stores the diagnostic and copies its score and
// temperature onto the lead.
func (s *SQLiteStore) UpdateLeadDiagnostic(ctx context.Context, leadID string, d model.Diagnostic) error {
	b, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostic")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET diagnostic = ?, score = ?, classification = ?, updated_at = ? WHERE id = ?`,
		string(b), model.ClampScore(d.Score), string(d.Temperature), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead diagnostic %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
