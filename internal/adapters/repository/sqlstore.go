package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/pkg/metrics"
)

// Driver names accepted by OpenSQL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() { //nolint:gochecknoinits // sqlx does not know the modernc driver name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Timestamps are stored as unix milliseconds so both drivers round-trip them
// the same way.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS engagements (
		client_id              TEXT    NOT NULL,
		trainer_id             TEXT    NOT NULL,
		stage                  TEXT    NOT NULL,
		version                BIGINT  NOT NULL,
		notes                  TEXT    NOT NULL DEFAULT '',
		created_at             BIGINT  NOT NULL,
		updated_at             BIGINT  NOT NULL,
		discovery_completed_at BIGINT,
		PRIMARY KEY (client_id, trainer_id),
		CHECK (stage IN ('browsing','liked','shortlisted','discovery_call_booked',
			'discovery_in_progress','discovery_completed','matched','active_client',
			'declined','declined_dismissed','unmatched'))
	)`,
	`CREATE INDEX IF NOT EXISTS engagements_trainer_idx ON engagements (trainer_id)`,
	`CREATE TABLE IF NOT EXISTS client_journeys (
		client_id  TEXT   NOT NULL PRIMARY KEY,
		stage      TEXT   NOT NULL,
		version    BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}

type engagementRow struct {
	ClientID             string        `db:"client_id"`
	TrainerID            string        `db:"trainer_id"`
	Stage                string        `db:"stage"`
	Version              int64         `db:"version"`
	Notes                string        `db:"notes"`
	CreatedAt            int64         `db:"created_at"`
	UpdatedAt            int64         `db:"updated_at"`
	DiscoveryCompletedAt sql.NullInt64 `db:"discovery_completed_at"`
}

func toRow(r engagement.Record) engagementRow {
	row := engagementRow{
		ClientID:  r.ClientID,
		TrainerID: r.TrainerID,
		Stage:     string(r.Stage),
		Version:   r.Version,
		Notes:     r.Notes,
		CreatedAt: toMillis(r.CreatedAt),
		UpdatedAt: toMillis(r.UpdatedAt),
	}
	if r.DiscoveryCompletedAt != nil {
		row.DiscoveryCompletedAt = sql.NullInt64{Int64: toMillis(*r.DiscoveryCompletedAt), Valid: true}
	}
	return row
}

func (row engagementRow) record() engagement.Record {
	r := engagement.Record{
		ClientID:  row.ClientID,
		TrainerID: row.TrainerID,
		Stage:     engagement.Stage(row.Stage),
		Version:   row.Version,
		Notes:     row.Notes,
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}
	if row.DiscoveryCompletedAt.Valid {
		t := fromMillis(row.DiscoveryCompletedAt.Int64)
		r.DiscoveryCompletedAt = &t
	}
	return r
}

type journeyRow struct {
	ClientID  string `db:"client_id"`
	Stage     string `db:"stage"`
	Version   int64  `db:"version"`
	UpdatedAt int64  `db:"updated_at"`
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// SQLStore is a Store over postgres or sqlite through sqlx.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQL connects with driver (DriverPostgres or DriverSQLite), applies the
// schema and returns the store.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	cfg := newStoreConfig(opts)

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite serialises writers; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	} else if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}

	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection. Call Migrate before use.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const selectEngagement = `SELECT client_id, trainer_id, stage, version, notes, created_at, updated_at, discovery_completed_at FROM engagements`

// Get returns the record for a pair.
func (s *SQLStore) Get(ctx context.Context, p engagement.Pair) (engagement.Record, error) {
	defer observeQuery(time.Now())
	var row engagementRow
	q := s.db.Rebind(selectEngagement + ` WHERE client_id = ? AND trainer_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, p.ClientID, p.TrainerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engagement.Record{}, ErrNotFound
		}
		return engagement.Record{}, s.fail("get", err)
	}
	return row.record(), nil
}

// Save inserts when expected is zero and otherwise updates the row only if
// its version still matches.
func (s *SQLStore) Save(ctx context.Context, rec engagement.Record, expected int64) (engagement.Record, error) {
	defer observeUpdate(time.Now())
	return s.save(ctx, s.db, rec, expected)
}

// SaveWithinCap counts the client's shortlisted rows and writes rec in one
// transaction. On postgres a transaction-scoped advisory lock on the client id
// serialises replicas, including for clients that have no rows yet; sqlite
// transactions are already serial.
func (s *SQLStore) SaveWithinCap(ctx context.Context, rec engagement.Record, expected int64, limit int) (engagement.Record, error) {
	defer observeUpdate(time.Now())
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return engagement.Record{}, s.fail("save_within_cap", err)
	}
	defer func() { _ = tx.Rollback() }()

	if tx.DriverName() == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.ClientID); err != nil {
			return engagement.Record{}, s.fail("save_within_cap", err)
		}
	}

	var n int
	q := tx.Rebind(`SELECT COUNT(*) FROM engagements WHERE client_id = ? AND stage = ?`)
	if err := tx.GetContext(ctx, &n, q, rec.ClientID, string(engagement.StageShortlisted)); err != nil {
		return engagement.Record{}, s.fail("save_within_cap", err)
	}
	if n >= limit {
		return engagement.Record{}, engagement.ErrCapacityExceeded
	}

	saved, err := s.save(ctx, tx, rec, expected)
	if err != nil {
		return engagement.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return engagement.Record{}, s.fail("save_within_cap", err)
	}
	return saved, nil
}

func (s *SQLStore) save(ctx context.Context, ext sqlx.ExtContext, rec engagement.Record, expected int64) (engagement.Record, error) {
	rec.Version = expected + 1
	row := toRow(rec)

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = sqlx.NamedExecContext(ctx, ext, `INSERT INTO engagements
			(client_id, trainer_id, stage, version, notes, created_at, updated_at, discovery_completed_at)
			VALUES (:client_id, :trainer_id, :stage, :version, :notes, :created_at, :updated_at, :discovery_completed_at)
			ON CONFLICT (client_id, trainer_id) DO NOTHING`, row)
	} else {
		q := ext.Rebind(`UPDATE engagements
			SET stage = ?, version = ?, notes = ?, updated_at = ?, discovery_completed_at = ?
			WHERE client_id = ? AND trainer_id = ? AND version = ?`)
		res, err = ext.ExecContext(ctx, q,
			row.Stage, row.Version, row.Notes, row.UpdatedAt, row.DiscoveryCompletedAt,
			row.ClientID, row.TrainerID, expected)
	}
	if err != nil {
		return engagement.Record{}, s.fail("save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return engagement.Record{}, s.fail("save", err)
	}
	if n == 0 {
		return engagement.Record{}, ErrVersionConflict
	}
	return row.record(), nil
}

// ListByClient returns the client's records ordered by trainer id.
func (s *SQLStore) ListByClient(ctx context.Context, clientID string) ([]engagement.Record, error) {
	defer observeQuery(time.Now())
	return s.list(ctx, "list_by_client", selectEngagement+` WHERE client_id = ? ORDER BY trainer_id`, clientID)
}

// ListByTrainer returns the trainer's records ordered by client id.
func (s *SQLStore) ListByTrainer(ctx context.Context, trainerID string) ([]engagement.Record, error) {
	defer observeQuery(time.Now())
	return s.list(ctx, "list_by_trainer", selectEngagement+` WHERE trainer_id = ? ORDER BY client_id`, trainerID)
}

func (s *SQLStore) list(ctx context.Context, op, query string, arg string) ([]engagement.Record, error) {
	var rows []engagementRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), arg); err != nil {
		return nil, s.fail(op, err)
	}
	out := make([]engagement.Record, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

// CountByStage counts the client's records in stage.
func (s *SQLStore) CountByStage(ctx context.Context, clientID string, stage engagement.Stage) (int, error) {
	defer observeQuery(time.Now())
	var n int
	q := s.db.Rebind(`SELECT COUNT(*) FROM engagements WHERE client_id = ? AND stage = ?`)
	if err := s.db.GetContext(ctx, &n, q, clientID, string(stage)); err != nil {
		return 0, s.fail("count_by_stage", err)
	}
	return n, nil
}

// HasActiveEngagement reports whether any of the client's records is active.
func (s *SQLStore) HasActiveEngagement(ctx context.Context, clientID string) (bool, error) {
	defer observeQuery(time.Now())
	var inactive []string
	for _, st := range engagement.AllStages {
		if !st.IsActive() {
			inactive = append(inactive, string(st))
		}
	}
	q, args, err := sqlx.In(`SELECT COUNT(*) FROM engagements WHERE client_id = ? AND stage NOT IN (?)`, clientID, inactive)
	if err != nil {
		return false, s.fail("has_active", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), args...); err != nil {
		return false, s.fail("has_active", err)
	}
	return n > 0, nil
}

// GetJourney returns the client's stored journey.
func (s *SQLStore) GetJourney(ctx context.Context, clientID string) (journey.Journey, bool, error) {
	defer observeQuery(time.Now())
	var row journeyRow
	q := s.db.Rebind(`SELECT client_id, stage, version, updated_at FROM client_journeys WHERE client_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return journey.Journey{}, false, nil
		}
		return journey.Journey{}, false, s.fail("get_journey", err)
	}
	return journey.Journey{
		ClientID:  row.ClientID,
		Stage:     journey.Stage(row.Stage),
		Version:   row.Version,
		UpdatedAt: fromMillis(row.UpdatedAt),
	}, true, nil
}

// SaveJourney writes j with compare-and-swap on version.
func (s *SQLStore) SaveJourney(ctx context.Context, j journey.Journey, expected int64) error {
	defer observeUpdate(time.Now())
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		q := s.db.Rebind(`INSERT INTO client_journeys (client_id, stage, version, updated_at)
			VALUES (?, ?, ?, ?) ON CONFLICT (client_id) DO NOTHING`)
		res, err = s.db.ExecContext(ctx, q, j.ClientID, string(j.Stage), expected+1, toMillis(j.UpdatedAt))
	} else {
		q := s.db.Rebind(`UPDATE client_journeys SET stage = ?, version = ?, updated_at = ?
			WHERE client_id = ? AND version = ?`)
		res, err = s.db.ExecContext(ctx, q, string(j.Stage), expected+1, toMillis(j.UpdatedAt), j.ClientID, expected)
	}
	if err != nil {
		return s.fail("save_journey", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("save_journey", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Count returns the number of stored records, or 0 when the query fails.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM engagements`); err != nil {
		_ = s.fail("count", err)
		return 0
	}
	return n
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) fail(op string, err error) error {
	metrics.RecordRepositoryError(op)
	metrics.RecordErrorByComponent("repository", op)
	return fmt.Errorf("repository %s: %w", op, err)
}
