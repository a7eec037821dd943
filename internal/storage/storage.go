// Package storage persists decisions and tracked positions in SQLite.
//
// Every analysis outcome is written to the decisions table so a scan can be
// audited later. The positions table holds recommended positions that are
// still open; their count and total amount feed the position sizer's
// portfolio limits on the next scan. Use ":memory:" as the path for an
// ephemeral database.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/rewired-gh/polyedge/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id               TEXT PRIMARY KEY,
	market_id        TEXT NOT NULL,
	question         TEXT NOT NULL,
	model_yes_prob   REAL NOT NULL,
	market_yes_price REAL NOT NULL,
	action           TEXT NOT NULL,
	edge_percent     REAL NOT NULL,
	verdict          TEXT NOT NULL,
	reason           TEXT NOT NULL,
	position_usd     REAL NOT NULL,
	position_percent REAL NOT NULL,
	confidence       TEXT NOT NULL,
	was_capped       INTEGER NOT NULL,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);

CREATE TABLE IF NOT EXISTS positions (
	id         TEXT PRIMARY KEY,
	market_id  TEXT NOT NULL,
	question   TEXT NOT NULL,
	action     TEXT NOT NULL,
	amount_usd REAL NOT NULL,
	opened_at  INTEGER NOT NULL,
	closed     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(closed, market_id);
`

// Store is a SQLite-backed decision log and position book.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

type decisionRow struct {
	ID              string  `db:"id"`
	MarketID        string  `db:"market_id"`
	Question        string  `db:"question"`
	ModelYesProb    float64 `db:"model_yes_prob"`
	MarketYesPrice  float64 `db:"market_yes_price"`
	Action          string  `db:"action"`
	EdgePercent     float64 `db:"edge_percent"`
	Verdict         string  `db:"verdict"`
	Reason          string  `db:"reason"`
	PositionUSD     float64 `db:"position_usd"`
	PositionPercent float64 `db:"position_percent"`
	Confidence      string  `db:"confidence"`
	WasCapped       bool    `db:"was_capped"`
	CreatedAt       int64   `db:"created_at"`
}

type positionRow struct {
	ID        string  `db:"id"`
	MarketID  string  `db:"market_id"`
	Question  string  `db:"question"`
	Action    string  `db:"action"`
	AmountUSD float64 `db:"amount_usd"`
	OpenedAt  int64   `db:"opened_at"`
	Closed    bool    `db:"closed"`
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "polyedge", "polyedge.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddDecision records one analysis outcome.
func (s *Store) AddDecision(ctx context.Context, d models.Decision) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid decision: %w", err)
	}

	row := decisionRow{
		ID:              d.ID,
		MarketID:        d.MarketID,
		Question:        d.Question,
		ModelYesProb:    d.ModelYesProb,
		MarketYesPrice:  d.MarketYesPrice,
		Action:          string(d.Action),
		EdgePercent:     d.EdgePercent,
		Verdict:         string(d.Verdict),
		Reason:          d.Reason,
		PositionUSD:     d.PositionUSD,
		PositionPercent: d.PositionPercent,
		Confidence:      string(d.Confidence),
		WasCapped:       d.WasCapped,
		CreatedAt:       d.CreatedAt.UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO decisions (id, market_id, question, model_yes_prob, market_yes_price, action,
			edge_percent, verdict, reason, position_usd, position_percent, confidence, was_capped, created_at)
		VALUES (:id, :market_id, :question, :model_yes_prob, :market_yes_price, :action,
			:edge_percent, :verdict, :reason, :position_usd, :position_percent, :confidence, :was_capped, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert decision %s: %w", d.ID, err)
	}
	return nil
}

// ListDecisions returns decisions created at or after since, newest first.
func (s *Store) ListDecisions(ctx context.Context, since time.Time) ([]models.Decision, error) {
	var rows []decisionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM decisions WHERE created_at >= ? ORDER BY created_at DESC, id`, since.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	out := make([]models.Decision, len(rows))
	for i, r := range rows {
		out[i] = models.Decision{
			ID:              r.ID,
			MarketID:        r.MarketID,
			Question:        r.Question,
			ModelYesProb:    r.ModelYesProb,
			MarketYesPrice:  r.MarketYesPrice,
			Action:          models.TradeAction(r.Action),
			EdgePercent:     r.EdgePercent,
			Verdict:         models.Verdict(r.Verdict),
			Reason:          r.Reason,
			PositionUSD:     r.PositionUSD,
			PositionPercent: r.PositionPercent,
			Confidence:      models.Confidence(r.Confidence),
			WasCapped:       r.WasCapped,
			CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
		}
	}
	return out, nil
}

// RotateDecisions keeps only the newest keep decisions and returns how many
// were deleted.
func (s *Store) RotateDecisions(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM decisions WHERE id NOT IN (
			SELECT id FROM decisions ORDER BY created_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to rotate decisions: %w", err)
	}
	return res.RowsAffected()
}

// AddPosition records a recommended position as open.
func (s *Store) AddPosition(ctx context.Context, p models.Position) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid position: %w", err)
	}

	row := positionRow{
		ID:        p.ID,
		MarketID:  p.MarketID,
		Question:  p.Question,
		Action:    string(p.Action),
		AmountUSD: p.AmountUSD,
		OpenedAt:  p.OpenedAt.UnixMilli(),
		Closed:    p.Closed,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO positions (id, market_id, question, action, amount_usd, opened_at, closed)
		VALUES (:id, :market_id, :question, :action, :amount_usd, :opened_at, :closed)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert position %s: %w", p.ID, err)
	}
	return nil
}

// OpenPositions returns all open positions, oldest first.
func (s *Store) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var rows []positionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM positions WHERE closed = 0 ORDER BY opened_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	out := make([]models.Position, len(rows))
	for i, r := range rows {
		out[i] = models.Position{
			ID:        r.ID,
			MarketID:  r.MarketID,
			Question:  r.Question,
			Action:    models.TradeAction(r.Action),
			AmountUSD: r.AmountUSD,
			OpenedAt:  time.UnixMilli(r.OpenedAt).UTC(),
			Closed:    r.Closed,
		}
	}
	return out, nil
}

// HasOpenPosition reports whether a market already has an open position.
func (s *Store) HasOpenPosition(ctx context.Context, marketID string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM positions WHERE closed = 0 AND market_id = ?`, marketID); err != nil {
		return false, fmt.Errorf("failed to check position: %w", err)
	}
	return n > 0, nil
}

// ClosePosition marks a position closed.
func (s *Store) ClosePosition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE positions SET closed = 1 WHERE id = ? AND closed = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to close position %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("open position not found: %s", id)
	}
	return nil
}

// PortfolioState returns the number of open positions and the capital they
// deploy.
func (s *Store) PortfolioState(ctx context.Context) (count int, deployed float64, err error) {
	var state struct {
		Count    int     `db:"n"`
		Deployed float64 `db:"deployed"`
	}
	if err := s.db.GetContext(ctx, &state,
		`SELECT COUNT(*) AS n, COALESCE(SUM(amount_usd), 0) AS deployed FROM positions WHERE closed = 0`); err != nil {
		return 0, 0, fmt.Errorf("failed to read portfolio state: %w", err)
	}
	return state.Count, state.Deployed, nil
}
