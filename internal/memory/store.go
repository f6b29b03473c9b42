package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/lumatrade/council/internal/models"
)

// ErrNotFound is returned when a decision id has no stored run.
var ErrNotFound = errors.New("memory: not found")

// Store is the durable side of the system: a journal of completed
// decisions (so reflection can find them later) and an append-only log
// of memory records. Records are never updated or deleted; reads need
// no locking, appends are serialized.
type Store struct {
	db *sql.DB

	// serializes appends so concurrent reflections cannot interleave
	// partial records
	writeMu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "pragma %s", p)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS decisions (
	id              TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL,
	trade_date      TEXT NOT NULL,
	action          TEXT NOT NULL,
	original_action TEXT NOT NULL,
	confidence      REAL NOT NULL,
	rationale       TEXT NOT NULL,
	overridden      INTEGER NOT NULL,
	override_reason TEXT NOT NULL DEFAULT '',
	trace_json      TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);

CREATE TABLE IF NOT EXISTS memories (
	id              TEXT PRIMARY KEY,
	decision_id     TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	trade_date      TEXT NOT NULL,
	snapshot        TEXT NOT NULL,
	realized_return REAL NOT NULL,
	lesson          TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_symbol ON memories(symbol, created_at);
`
	_, err := s.db.Exec(schema)
	return errors.Wrap(err, "migrate")
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun journals a completed run so a later reflection can attribute
// a realized return to its decision.
func (s *Store) SaveRun(ctx context.Context, trace *models.RunTrace) error {
	if trace == nil || trace.Final == nil {
		return errors.New("trace has no final decision")
	}

	traceJSON, err := json.Marshal(trace)
	if err != nil {
		return errors.Wrap(err, "marshal trace")
	}

	d := trace.Final
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO decisions (id, symbol, trade_date, action, original_action, confidence, rationale, overridden, override_reason, trace_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Decision.ID, d.Decision.Symbol, d.Decision.TradeDate,
		string(d.Decision.Action), string(d.OriginalAction),
		d.Decision.Confidence, d.Decision.Rationale,
		boolToInt(d.Overridden), d.OverrideReason,
		string(traceJSON), d.Decision.CreatedAt.UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "insert decision")
}

// DecisionByID loads one journaled final decision.
func (s *Store) DecisionByID(ctx context.Context, id string) (*models.FinalDecision, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, trade_date, action, original_action, confidence, rationale, overridden, override_reason, created_at
FROM decisions WHERE id = ?`, id)
	return scanDecision(row)
}

// LatestDecision returns the most recently journaled decision.
func (s *Store) LatestDecision(ctx context.Context) (*models.FinalDecision, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, trade_date, action, original_action, confidence, rationale, overridden, override_reason, created_at
FROM decisions ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanDecision(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row rowScanner) (*models.FinalDecision, error) {
	var (
		fd             models.FinalDecision
		action         string
		originalAction string
		overridden     int
		createdAt      string
	)
	err := row.Scan(&fd.Decision.ID, &fd.Decision.Symbol, &fd.Decision.TradeDate,
		&action, &originalAction, &fd.Decision.Confidence, &fd.Decision.Rationale,
		&overridden, &fd.OverrideReason, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan decision")
	}
	fd.Decision.Action = models.Action(action)
	fd.Overridden = overridden != 0
	fd.OriginalAction = models.Action(originalAction)
	if originalAction == "" {
		fd.OriginalAction = fd.Decision.Action
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		fd.Decision.CreatedAt = t
	}
	return &fd, nil
}

// AppendMemory appends exactly one record. Append-only: there is no
// update or delete path.
func (s *Store) AppendMemory(ctx context.Context, rec models.MemoryRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO memories (id, decision_id, symbol, trade_date, snapshot, realized_return, lesson, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DecisionID, rec.Symbol, rec.TradeDate, rec.Snapshot,
		rec.RealizedReturn, rec.Lesson, rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "insert memory")
}

// LessonsFor returns the most recent lessons learned about a symbol,
// newest first.
func (s *Store) LessonsFor(ctx context.Context, symbol string, limit int) ([]models.MemoryRecord, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, decision_id, symbol, trade_date, snapshot, realized_return, lesson, created_at
FROM memories WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query lessons")
	}
	defer rows.Close()
	return scanMemories(rows)
}

// MemoriesForDecision returns every record attributed to one decision.
func (s *Store) MemoriesForDecision(ctx context.Context, decisionID string) ([]models.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, decision_id, symbol, trade_date, snapshot, realized_return, lesson, created_at
FROM memories WHERE decision_id = ? ORDER BY created_at ASC, id ASC`, decisionID)
	if err != nil {
		return nil, errors.Wrap(err, "query memories")
	}
	defer rows.Close()
	return scanMemories(rows)
}

func scanMemories(rows *sql.Rows) ([]models.MemoryRecord, error) {
	var out []models.MemoryRecord
	for rows.Next() {
		var (
			rec       models.MemoryRecord
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.DecisionID, &rec.Symbol, &rec.TradeDate,
			&rec.Snapshot, &rec.RealizedReturn, &rec.Lesson, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan memory")
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
