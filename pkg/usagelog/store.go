// Package usagelog records skill activations in a local SQLite database:
// which skills and references were disclosed, at what cost, in which
// session. The log powers the usage command and is strictly best-effort —
// a missing or broken database never fails a resolution.
package usagelog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS activations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	skill_id TEXT NOT NULL,
	ref_path TEXT NOT NULL DEFAULT '',
	cost INTEGER NOT NULL,
	unit TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activations_skill ON activations(skill_id);
CREATE INDEX IF NOT EXISTS idx_activations_created ON activations(created_at DESC);
`

// Activation is one recorded disclosure.
type Activation struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"sessionId"`
	SkillID   string    `db:"skill_id" json:"skillId"`
	RefPath   string    `db:"ref_path" json:"refPath,omitempty"`
	Cost      int       `db:"cost" json:"cost"`
	Unit      string    `db:"unit" json:"unit"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SkillStat aggregates activations per skill.
type SkillStat struct {
	SkillID     string `db:"skill_id" json:"skillId"`
	Activations int    `db:"activations" json:"activations"`
	TotalCost   int    `db:"total_cost" json:"totalCost"`
}

// Store is a SQLite-backed activation log.
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// Open opens (and if necessary creates) the activation log at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create usage log directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open usage log database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping usage log database")
	}

	if err := configureDatabase(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize usage log schema")
	}

	return &Store{dbPath: dbPath, db: db}, nil
}

// configureDatabase sets up SQLite pragmas for WAL mode and constrains the
// pool to one connection so writes never contend.
func configureDatabase(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}
	return nil
}

// Record appends one activation. RefPath is empty for overview loads.
func (s *Store) Record(ctx context.Context, sessionID, skillID, refPath string, itemCost int, unit string) error {
	activation := Activation{
		SessionID: sessionID,
		SkillID:   skillID,
		RefPath:   refPath,
		Cost:      itemCost,
		Unit:      unit,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO activations (session_id, skill_id, ref_path, cost, unit, created_at)
		VALUES (:session_id, :skill_id, :ref_path, :cost, :unit, :created_at)`,
		activation)
	return errors.Wrap(err, "failed to record activation")
}

// TopSkills returns the n most-activated skills, most active first, ties
// broken by skill id.
func (s *Store) TopSkills(ctx context.Context, n int) ([]SkillStat, error) {
	stats := []SkillStat{}
	err := s.db.SelectContext(ctx, &stats, `
		SELECT skill_id, COUNT(*) AS activations, COALESCE(SUM(cost), 0) AS total_cost
		FROM activations
		GROUP BY skill_id
		ORDER BY activations DESC, skill_id ASC
		LIMIT ?`, n)
	return stats, errors.Wrap(err, "failed to query top skills")
}

// Recent returns the n most recent activations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Activation, error) {
	activations := []Activation{}
	err := s.db.SelectContext(ctx, &activations, `
		SELECT id, session_id, skill_id, ref_path, cost, unit, created_at
		FROM activations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, n)
	return activations, errors.Wrap(err, "failed to query recent activations")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close usage log database")
}
