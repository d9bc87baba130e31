/*
Package sqlite provides SQLite-backed implementations of the storage
interfaces.

PURPOSE:
  Implements the coverage collaborator interfaces (BenefitsStore,
  HistoryStore, PlanProvider) and the events.Log using SQLite. The
  engine itself never touches this package; it exists for the calling
  service, which owns persistence.

KEY TABLES:
  benefits_used:     One row per (patient, plan, benefit year) ledger
  procedure_history: Prior procedures, read for frequency counting
  plans:             Plan configuration JSON, versioned
  events:            Append-only typed event log

MONEY:
  Decimal amounts are stored as TEXT and parsed with shopspring/decimal
  on read, so no value ever round-trips through float64.

CONCURRENCY:
  Ledger deltas are applied inside a database transaction and a
  process-level mutex, which satisfies the per-patient serialization
  the engine's contract requires for a single-process deployment.

APPEND-ONLY ENFORCEMENT:
  procedure_history and events have no UPDATE or DELETE paths.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/benefits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - coverage/interfaces.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lumident/benefits-engine/coverage"
	"github.com/lumident/benefits-engine/events"
	"github.com/lumident/benefits-engine/plan"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	factory *plan.Factory
}

var (
	_ coverage.BenefitsStore = (*Store)(nil)
	_ coverage.HistoryStore  = (*Store)(nil)
	_ coverage.PlanProvider  = (*Store)(nil)
	_ events.Log             = (*Store)(nil)
)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, factory: plan.NewFactory()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Benefits ledger: one row per (patient, plan, benefit year)
	CREATE TABLE IF NOT EXISTS benefits_used (
		patient_id TEXT NOT NULL,
		plan_key TEXT NOT NULL,
		benefit_year INTEGER NOT NULL,
		preventive_used TEXT NOT NULL DEFAULT '0',
		basic_used TEXT NOT NULL DEFAULT '0',
		major_used TEXT NOT NULL DEFAULT '0',
		orthodontic_used TEXT NOT NULL DEFAULT '0',
		deductible_met_individual TEXT NOT NULL DEFAULT '0',
		deductible_met_family TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (patient_id, plan_key, benefit_year)
	);

	-- Procedure history (append-only; frequency counting reads this)
	CREATE TABLE IF NOT EXISTS procedure_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		code TEXT NOT NULL,
		service_date TEXT NOT NULL,
		tooth TEXT,
		quadrant TEXT,
		surfaces TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_patient_code_date
		ON procedure_history(patient_id, code, service_date);

	-- Plan configuration (versioned JSON; replaced, never patched)
	CREATE TABLE IF NOT EXISTS plans (
		plan_key TEXT PRIMARY KEY,
		payer_id TEXT NOT NULL,
		plan_name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Event log (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		at TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_patient ON events(patient_id, at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BENEFITS LEDGER
// =============================================================================

// Snapshot returns the totals for (patient, plan, year). A missing row
// reads as zero totals.
func (s *Store) Snapshot(ctx context.Context, patientID, planKey string, year int) (coverage.BenefitsUsed, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT preventive_used, basic_used, major_used, orthodontic_used,
		       deductible_met_individual, deductible_met_family
		FROM benefits_used
		WHERE patient_id = ? AND plan_key = ? AND benefit_year = ?`,
		patientID, planKey, year)

	var prev, basic, major, ortho, dedInd, dedFam string
	switch err := row.Scan(&prev, &basic, &major, &ortho, &dedInd, &dedFam); err {
	case nil:
	case sql.ErrNoRows:
		return coverage.BenefitsUsed{}, nil
	default:
		return coverage.BenefitsUsed{}, fmt.Errorf("failed to load benefits snapshot: %w", err)
	}

	return parseBenefits(prev, basic, major, ortho, dedInd, dedFam)
}

// Apply adds the delta inside a transaction and returns the resulting
// snapshot.
func (s *Store) Apply(ctx context.Context, patientID, planKey string, year int, delta coverage.LedgerDelta) (coverage.BenefitsUsed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coverage.BenefitsUsed{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT preventive_used, basic_used, major_used, orthodontic_used,
		       deductible_met_individual, deductible_met_family
		FROM benefits_used
		WHERE patient_id = ? AND plan_key = ? AND benefit_year = ?`,
		patientID, planKey, year)

	var current coverage.BenefitsUsed
	var prev, basic, major, ortho, dedInd, dedFam string
	switch scanErr := row.Scan(&prev, &basic, &major, &ortho, &dedInd, &dedFam); scanErr {
	case nil:
		if current, err = parseBenefits(prev, basic, major, ortho, dedInd, dedFam); err != nil {
			return coverage.BenefitsUsed{}, err
		}
	case sql.ErrNoRows:
		// first write for this ledger
	default:
		return coverage.BenefitsUsed{}, fmt.Errorf("failed to load benefits snapshot: %w", scanErr)
	}

	next := current.Apply(delta)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO benefits_used (
			patient_id, plan_key, benefit_year,
			preventive_used, basic_used, major_used, orthodontic_used,
			deductible_met_individual, deductible_met_family, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (patient_id, plan_key, benefit_year) DO UPDATE SET
			preventive_used = excluded.preventive_used,
			basic_used = excluded.basic_used,
			major_used = excluded.major_used,
			orthodontic_used = excluded.orthodontic_used,
			deductible_met_individual = excluded.deductible_met_individual,
			deductible_met_family = excluded.deductible_met_family,
			updated_at = excluded.updated_at`,
		patientID, planKey, year,
		next.PreventiveUsed.String(), next.BasicUsed.String(),
		next.MajorUsed.String(), next.OrthodonticUsed.String(),
		next.DeductibleMetIndividual.String(), next.DeductibleMetFamily.String(),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return coverage.BenefitsUsed{}, fmt.Errorf("failed to apply ledger delta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return coverage.BenefitsUsed{}, fmt.Errorf("failed to commit ledger delta: %w", err)
	}
	return next, nil
}

func parseBenefits(prev, basic, major, ortho, dedInd, dedFam string) (coverage.BenefitsUsed, error) {
	out := coverage.BenefitsUsed{}
	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{prev, &out.PreventiveUsed},
		{basic, &out.BasicUsed},
		{major, &out.MajorUsed},
		{ortho, &out.OrthodonticUsed},
		{dedInd, &out.DeductibleMetIndividual},
		{dedFam, &out.DeductibleMetFamily},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return coverage.BenefitsUsed{}, fmt.Errorf("corrupt ledger amount %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return out, nil
}

// =============================================================================
// PROCEDURE HISTORY
// =============================================================================

func (s *Store) History(ctx context.Context, patientID string, filter coverage.HistoryFilter) ([]coverage.HistoryRecord, error) {
	query := `SELECT code, service_date, tooth, quadrant, surfaces
		FROM procedure_history WHERE patient_id = ?`
	args := []any{patientID}

	if filter.Code != "" {
		query += " AND code = ?"
		args = append(args, filter.Code)
	}
	if !filter.From.IsZero() {
		query += " AND service_date >= ?"
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		query += " AND service_date <= ?"
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY service_date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var out []coverage.HistoryRecord
	for rows.Next() {
		var rec coverage.HistoryRecord
		var serviceDate string
		var tooth, quadrant, surfaces sql.NullString
		if err := rows.Scan(&rec.Code, &serviceDate, &tooth, &quadrant, &surfaces); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if rec.ServiceDate, err = time.Parse(time.RFC3339, serviceDate); err != nil {
			return nil, fmt.Errorf("corrupt service date %q: %w", serviceDate, err)
		}
		rec.Tooth = tooth.String
		rec.Quadrant = quadrant.String
		if surfaces.String != "" {
			rec.Surfaces = strings.Split(surfaces.String, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Record(ctx context.Context, patientID string, records ...coverage.HistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO procedure_history (patient_id, code, service_date, tooth, quadrant, surfaces)
			VALUES (?, ?, ?, ?, ?, ?)`,
			patientID, rec.Code, rec.ServiceDate.UTC().Format(time.RFC3339),
			rec.Tooth, rec.Quadrant, strings.Join(rec.Surfaces, ","))
		if err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// PLANS
// =============================================================================

// Plan loads and rebuilds a stored plan. Parsing re-runs configuration
// validation, so a corrupt stored plan fails here, at load time.
func (s *Store) Plan(ctx context.Context, key string) (plan.InsurancePlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM plans WHERE plan_key = ?`, key)

	var configJSON string
	switch err := row.Scan(&configJSON); err {
	case nil:
	case sql.ErrNoRows:
		return plan.InsurancePlan{}, &NotFoundError{Kind: "plan", Key: key}
	default:
		return plan.InsurancePlan{}, fmt.Errorf("failed to load plan: %w", err)
	}

	return s.factory.Parse([]byte(configJSON))
}

// SavePlan stores a plan under a lookup key, replacing any previous
// version.
func (s *Store) SavePlan(ctx context.Context, key string, p plan.InsurancePlan) error {
	configJSON, err := json.Marshal(s.factory.ToJSON(p))
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (plan_key, payer_id, plan_name, config_json, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (plan_key) DO UPDATE SET
			payer_id = excluded.payer_id,
			plan_name = excluded.plan_name,
			config_json = excluded.config_json,
			version = excluded.version`,
		key, p.PayerID, p.PlanName, string(configJSON), p.Version,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ListPlanKeys returns all stored plan keys.
func (s *Store) ListPlanKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT plan_key FROM plans ORDER BY plan_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// =============================================================================
// EVENT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, patient_id, kind, at, payload_json)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.PatientID, string(e.Kind), e.At.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) AppendBatch(ctx context.Context, es []events.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range es {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to serialize event: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, patient_id, kind, at, payload_json)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.PatientID, string(e.Kind), e.At.UTC().Format(time.RFC3339Nano), string(payload))
		if err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) List(ctx context.Context, patientID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload_json FROM events WHERE patient_id = ? ORDER BY at, id`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e events.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("corrupt event payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// ERRORS
// =============================================================================

// NotFoundError indicates a missing stored record.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found: " + e.Key
}

// NotFound marks the error for transport-layer status mapping.
func (e *NotFoundError) NotFound() bool { return true }
