/*
Package sqlite provides a SQLite-backed implementation of scenario.Store.

PURPOSE:
  Persists named loan scenarios and the autosaved working copy so a server
  restart does not lose them. The same schema ports to PostgreSQL with only
  dialect changes.

KEY TABLES:
  scenarios:        one row per named scenario (contract terms as columns)
  scenario_events:  tranches and prepayments, ordered by seq within a scenario
  autosave:         single-row table holding the latest working copy

AMOUNTS:
  Numeric fields are stored as decimal TEXT (shopspring/decimal formatting)
  so values survive round trips without float formatting drift. A field that
  was missing or non-numeric is stored as NULL and reloads as missing.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Multi-statement writes (upsert with
  events, replace-all) run in one database transaction.

USAGE:
  store, err := sqlite.New("./tranche.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.Save(ctx, scenario.New("Tower B", data, time.Now()))

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - scenario/store.go: Interface definition
  - scenario/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/tranche-engine/amortization"
	"github.com/warp/tranche-engine/scenario"
)

// Store implements scenario.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ scenario.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Named scenarios
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		position INTEGER NOT NULL,
		saved_at TEXT,
		start_date TEXT,
		stated_principal TEXT,
		annual_rate_percent TEXT,
		tenure_years TEXT,
		extra_monthly_payment TEXT,
		construction_months TEXT,
		accrual_policy TEXT,
		growth_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_position
		ON scenarios(position);

	-- Tranches and prepayments of a scenario
	CREATE TABLE IF NOT EXISTS scenario_events (
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('tranche', 'prepayment')),
		seq INTEGER NOT NULL,
		month TEXT,
		amount TEXT,
		PRIMARY KEY (scenario_id, kind, seq)
	);

	-- Latest working copy (single row)
	CREATE TABLE IF NOT EXISTS autosave (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT,
		saved_at TEXT,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a database transaction. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// SCENARIO STORE (scenario.Store interface)
// =============================================================================

// Save upserts a scenario by name. An existing scenario keeps its ID and
// list position; its events are replaced.
func (s *Store) Save(ctx context.Context, sc scenario.Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var position int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM scenarios").Scan(&position); err != nil {
			return err
		}
		return upsertScenario(ctx, tx, sc, position)
	})
}

func upsertScenario(ctx context.Context, db execer, sc scenario.Scenario, position int) error {
	growth, err := encodeGrowth(sc.Data.PrepaymentGrowth)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scenarios (id, name, position, saved_at, start_date,
			stated_principal, annual_rate_percent, tenure_years, extra_monthly_payment,
			construction_months, accrual_policy, growth_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			saved_at = excluded.saved_at,
			start_date = excluded.start_date,
			stated_principal = excluded.stated_principal,
			annual_rate_percent = excluded.annual_rate_percent,
			tenure_years = excluded.tenure_years,
			extra_monthly_payment = excluded.extra_monthly_payment,
			construction_months = excluded.construction_months,
			accrual_policy = excluded.accrual_policy,
			growth_json = excluded.growth_json,
			updated_at = excluded.updated_at
	`

	d := sc.Data
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.ExecContext(ctx, query,
		sc.ID, sc.Name, position, nullString(sc.Timestamp), nullString(d.StartDate),
		numberText(d.StatedPrincipal), numberText(d.AnnualRatePercent), numberText(d.TenureYears),
		numberText(d.ExtraMonthlyPayment), numberText(d.ConstructionMonths),
		nullString(string(d.AccrualPolicy)), growth, now, now,
	); err != nil {
		return fmt.Errorf("upsert scenario %q: %w", sc.Name, err)
	}

	var id string
	if err := db.QueryRowContext(ctx, "SELECT id FROM scenarios WHERE name = ?", sc.Name).Scan(&id); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM scenario_events WHERE scenario_id = ?", id); err != nil {
		return err
	}
	if err := insertEvents(ctx, db, id, "tranche", d.Tranches); err != nil {
		return err
	}
	return insertEvents(ctx, db, id, "prepayment", d.Prepayments)
}

func insertEvents(ctx context.Context, db execer, scenarioID, kind string, events []amortization.RawEvent) error {
	for seq, ev := range events {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO scenario_events (scenario_id, kind, seq, month, amount) VALUES (?, ?, ?, ?, ?)",
			scenarioID, kind, seq, numberText(ev.Month), numberText(ev.Amount),
		); err != nil {
			return fmt.Errorf("insert %s %d: %w", kind, seq, err)
		}
	}
	return nil
}

const scenarioColumns = `id, name, saved_at, start_date, stated_principal, annual_rate_percent,
	tenure_years, extra_monthly_payment, construction_months, accrual_policy, growth_json`

// Get retrieves a scenario by name.
func (s *Store) Get(ctx context.Context, name string) (*scenario.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+scenarioColumns+" FROM scenarios WHERE name = ?", name)
	sc, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &scenario.NotFoundError{Name: name}
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadEvents(ctx, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// List returns all scenarios in first-saved order.
func (s *Store) List(ctx context.Context) ([]scenario.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+scenarioColumns+" FROM scenarios ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []scenario.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range scenarios {
		if err := s.loadEvents(ctx, &scenarios[i]); err != nil {
			return nil, err
		}
	}
	return scenarios, nil
}

// Delete removes a scenario and its events.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM scenarios WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &scenario.NotFoundError{Name: name}
	}
	return nil
}

// ReplaceAll swaps the saved list in one transaction. Later entries with a
// repeated name overwrite earlier ones in place.
func (s *Store) ReplaceAll(ctx context.Context, scenarios []scenario.Scenario) error {
	for _, sc := range scenarios {
		if err := sc.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM scenarios"); err != nil {
			return err
		}
		for i, sc := range scenarios {
			if err := upsertScenario(ctx, tx, sc, i+1); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// AUTOSAVE
// =============================================================================

// LoadAutosave returns the working copy or nil when none was saved.
func (s *Store) LoadAutosave(ctx context.Context) (*scenario.Autosave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name, savedAt sql.NullString
	var dataJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, saved_at, data_json FROM autosave WHERE id = 1",
	).Scan(&name, &savedAt, &dataJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a := &scenario.Autosave{Name: name.String, SavedAt: savedAt.String}
	if err := json.Unmarshal([]byte(dataJSON), &a.Data); err != nil {
		return nil, fmt.Errorf("decode autosave: %w", err)
	}
	return a, nil
}

// SaveAutosave overwrites the working copy.
func (s *Store) SaveAutosave(ctx context.Context, a scenario.Autosave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("encode autosave: %w", err)
	}

	query := `
		INSERT INTO autosave (id, name, saved_at, data_json, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			saved_at = excluded.saved_at,
			data_json = excluded.data_json,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query, nullString(a.Name), nullString(a.SavedAt), string(data), now)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"scenario_events", "scenarios", "autosave"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScenario(row scanner) (scenario.Scenario, error) {
	var sc scenario.Scenario
	var savedAt, startDate, policy, growth sql.NullString
	var principal, rate, tenure, extra, construction sql.NullString

	if err := row.Scan(&sc.ID, &sc.Name, &savedAt, &startDate,
		&principal, &rate, &tenure, &extra, &construction, &policy, &growth,
	); err != nil {
		return sc, err
	}

	sc.Timestamp = savedAt.String
	sc.Data = scenario.Data{
		StartDate:           startDate.String,
		StatedPrincipal:     textNumber(principal),
		AnnualRatePercent:   textNumber(rate),
		TenureYears:         textNumber(tenure),
		ExtraMonthlyPayment: textNumber(extra),
		ConstructionMonths:  textNumber(construction),
		AccrualPolicy:       amortization.AccrualPolicy(policy.String),
	}
	if growth.Valid {
		var g amortization.GrowthRule
		if err := json.Unmarshal([]byte(growth.String), &g); err != nil {
			return sc, fmt.Errorf("decode growth rule of %q: %w", sc.Name, err)
		}
		sc.Data.PrepaymentGrowth = &g
	}
	return sc, nil
}

// loadEvents fills tranches and prepayments. Callers hold s.mu.
func (s *Store) loadEvents(ctx context.Context, sc *scenario.Scenario) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, month, amount FROM scenario_events WHERE scenario_id = ? ORDER BY kind, seq",
		sc.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var month, amount sql.NullString
		if err := rows.Scan(&kind, &month, &amount); err != nil {
			return err
		}
		ev := amortization.RawEvent{Month: textNumber(month), Amount: textNumber(amount)}
		if kind == "tranche" {
			sc.Data.Tranches = append(sc.Data.Tranches, ev)
		} else {
			sc.Data.Prepayments = append(sc.Data.Prepayments, ev)
		}
	}
	return rows.Err()
}

func encodeGrowth(g *amortization.GrowthRule) (sql.NullString, error) {
	if g == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func numberText(n amortization.Number) sql.NullString {
	if !n.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: decimal.NewFromFloat(n.Value).String(), Valid: true}
}

func textNumber(ns sql.NullString) amortization.Number {
	if !ns.Valid {
		return amortization.Number{}
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return amortization.Number{Raw: ns.String}
	}
	return amortization.Number{Value: d.InexactFloat64(), Valid: true, Raw: ns.String}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
