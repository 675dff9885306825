package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/okian/oom/internal/adapters/repository/migrations"
	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
)

const (
	backendPostgres = "postgres"
	uniqueViolation = "23505"
)

// PostgresStore persists society data in PostgreSQL through database/sql and
// the pgx driver. Publish runs in one transaction holding a row lock on the
// event, which also serializes concurrent publishes of the same event.
type PostgresStore struct {
	db         *sql.DB
	maxMembers int
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresMaxMembers caps the roster size of each society.
func WithPostgresMaxMembers(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.maxMembers = n
		}
	}
}

// OpenPostgres connects to dsn, applies pending migrations and returns a store.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStore(db, opts...), nil
}

// NewPostgresStore wraps an open database whose schema is already migrated.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// UpsertMember creates or replaces a member.
func (s *PostgresStore) UpsertMember(ctx context.Context, m model.Member) error {
	defer observe(backendPostgres, "upsert_member", time.Now())
	if err := validateMember(m); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if s.maxMembers > 0 {
		// Serializes roster growth per society so the cap holds under concurrency.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.SocietyID); err != nil {
			return err
		}
		var exists bool
		var n int
		err := tx.QueryRowContext(ctx, `
SELECT count(*), bool_or(id = $2) IS TRUE FROM members WHERE society_id = $1`, m.SocietyID, m.ID).Scan(&n, &exists)
		if err != nil {
			return err
		}
		if !exists && n >= s.maxMembers {
			return fmt.Errorf("%w: %s has %d", ErrSocietyFull, m.SocietyID, n)
		}
	}

	var handicap sql.NullFloat64
	if m.Handicap != nil {
		handicap = sql.NullFloat64{Float64: *m.Handicap, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO members (society_id, id, display_name, handicap)
VALUES ($1, $2, $3, $4)
ON CONFLICT (society_id, id) DO UPDATE SET display_name = EXCLUDED.display_name, handicap = EXCLUDED.handicap`,
		m.SocietyID, m.ID, m.DisplayName, handicap)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Members returns a society's roster ordered by member ID.
func (s *PostgresStore) Members(ctx context.Context, societyID string) ([]model.Member, error) {
	defer observe(backendPostgres, "members", time.Now())
	rows, err := s.db.QueryContext(ctx, `
SELECT id, society_id, display_name, handicap FROM members WHERE society_id = $1 ORDER BY id`, societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		var (
			m        model.Member
			handicap sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.SocietyID, &m.DisplayName, &handicap); err != nil {
			return nil, err
		}
		if handicap.Valid {
			h := handicap.Float64
			m.Handicap = &h
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateEvent stores a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, e model.Event) error {
	defer observe(backendPostgres, "create_event", time.Now())
	e, err := normalizeEvent(e)
	if err != nil {
		return err
	}
	return insertEvent(ctx, s.db, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, e model.Event) error {
	entrants, err := json.Marshal(nonNil(e.Entrants))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO events (id, society_id, name, event_date, classification, format, results_status, entrants)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)`,
		e.ID, e.SocietyID, e.Name, e.Date, string(e.Classification), string(e.Format), string(e.ResultsStatus), string(entrants))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: event %s", ErrDuplicate, e.ID)
	}
	return err
}

const selectEvent = `
SELECT id, society_id, name, event_date, classification, format, results_status, entrants FROM events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e        model.Event
		entrants []byte
	)
	err := row.Scan(&e.ID, &e.SocietyID, &e.Name, &e.Date, &e.Classification, &e.Format, &e.ResultsStatus, &entrants)
	if err != nil {
		return model.Event{}, err
	}
	if len(entrants) > 0 {
		if err := json.Unmarshal(entrants, &e.Entrants); err != nil {
			return model.Event{}, fmt.Errorf("event %s entrants: %w", e.ID, err)
		}
	}
	if len(e.Entrants) == 0 {
		e.Entrants = nil
	}
	return e, nil
}

// Event returns one event.
func (s *PostgresStore) Event(ctx context.Context, eventID string) (model.Event, error) {
	defer observe(backendPostgres, "event", time.Now())
	e, err := scanEvent(s.db.QueryRowContext(ctx, selectEvent+` WHERE id = $1`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return e, err
}

// Events returns every event of a society.
func (s *PostgresStore) Events(ctx context.Context, societyID string) ([]model.Event, error) {
	defer observe(backendPostgres, "events", time.Now())
	rows, err := s.db.QueryContext(ctx, selectEvent+` WHERE society_id = $1`, societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// lockEvent reads an event with a row lock held until the transaction ends.
func lockEvent(ctx context.Context, tx *sql.Tx, eventID string) (model.Event, error) {
	e, err := scanEvent(tx.QueryRowContext(ctx, selectEvent+` WHERE id = $1 FOR UPDATE`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return e, err
}

// SaveDraft replaces the event's raw scores and moves it to draft.
func (s *PostgresStore) SaveDraft(ctx context.Context, eventID string, raws []model.RawResult) (model.Event, error) {
	defer observe(backendPostgres, "save_draft", time.Now())
	rows, err := normalizeRaws(eventID, raws)
	if err != nil {
		return model.Event{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Event{}, err
	}
	defer func() { _ = tx.Rollback() }()

	e, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return model.Event{}, err
	}
	next, err := publication.Transition(e.ResultsStatus, publication.ActionSaveDraft)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: %w", eventID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM raw_results WHERE event_id = $1`, eventID); err != nil {
		return model.Event{}, err
	}
	if err := insertRaws(ctx, tx, rows); err != nil {
		return model.Event{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE events SET results_status = $2 WHERE id = $1`, eventID, string(next)); err != nil {
		return model.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Event{}, err
	}
	e.ResultsStatus = next
	return e, nil
}

func insertRaws(ctx context.Context, tx *sql.Tx, raws []model.RawResult) error {
	if len(raws) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO raw_results (event_id, member_id, seq, stableford, strokeplay_gross, net_score)
VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, r := range raws {
		if _, err := stmt.ExecContext(ctx, r.EventID, r.MemberID, i,
			nullInt(r.Stableford), nullInt(r.StrokeplayGross), nullInt(r.NetScore)); err != nil {
			return err
		}
	}
	return nil
}

// ImportEvent stores an event and its inline scores without log rows.
func (s *PostgresStore) ImportEvent(ctx context.Context, e model.Event, raws []model.RawResult) error {
	defer observe(backendPostgres, "import_event", time.Now())
	e, err := normalizeEvent(e)
	if err != nil {
		return err
	}
	rows, err := normalizeRaws(e.ID, raws)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertEvent(ctx, tx, e); err != nil {
		return err
	}
	if err := insertRaws(ctx, tx, rows); err != nil {
		return err
	}
	return tx.Commit()
}

// Publish validates, resolves and commits an event's results in one
// transaction.
func (s *PostgresStore) Publish(ctx context.Context, eventID string, fn PublishFunc) (model.Event, []model.ResolvedResult, error) {
	defer observe(backendPostgres, "publish", time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Event{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	e, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return model.Event{}, nil, err
	}
	next, err := publication.Transition(e.ResultsStatus, publication.ActionPublish)
	if err != nil {
		return model.Event{}, nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	raws, err := queryRaws(ctx, tx, []string{eventID})
	if err != nil {
		return model.Event{}, nil, err
	}
	rows, err := fn(e, raws[eventID])
	if err != nil {
		return model.Event{}, nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM resolved_results WHERE event_id = $1`, eventID); err != nil {
		return model.Event{}, nil, err
	}
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO resolved_results (event_id, member_id, day_value, position, points)
VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return model.Event{}, nil, err
		}
		defer func() { _ = stmt.Close() }()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, eventID, r.MemberID, r.DayValue, r.Position, r.Points); err != nil {
				return model.Event{}, nil, err
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE events SET results_status = $2, published_at = now() WHERE id = $1`, eventID, string(next)); err != nil {
		return model.Event{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return model.Event{}, nil, err
	}
	e.ResultsStatus = next
	return e, rows, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRaws(ctx context.Context, q querier, eventIDs []string) (map[string][]model.RawResult, error) {
	rows, err := q.QueryContext(ctx, `
SELECT event_id, member_id, stableford, strokeplay_gross, net_score
FROM raw_results WHERE event_id = ANY($1) ORDER BY event_id, seq`, eventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]model.RawResult)
	for rows.Next() {
		var (
			r                      model.RawResult
			stableford, gross, net sql.NullInt64
		)
		if err := rows.Scan(&r.EventID, &r.MemberID, &stableford, &gross, &net); err != nil {
			return nil, err
		}
		r.Stableford, r.StrokeplayGross, r.NetScore = intPtr(stableford), intPtr(gross), intPtr(net)
		out[r.EventID] = append(out[r.EventID], r)
	}
	return out, rows.Err()
}

// RawResults returns the inline scores of the given events.
func (s *PostgresStore) RawResults(ctx context.Context, eventIDs []string) (map[string][]model.RawResult, error) {
	defer observe(backendPostgres, "raw_results", time.Now())
	if len(eventIDs) == 0 {
		return map[string][]model.RawResult{}, nil
	}
	return queryRaws(ctx, s.db, eventIDs)
}

// ResolvedResults returns the log rows of the given events.
func (s *PostgresStore) ResolvedResults(ctx context.Context, eventIDs []string) (map[string][]model.ResolvedResult, error) {
	defer observe(backendPostgres, "resolved_results", time.Now())
	out := make(map[string][]model.ResolvedResult)
	if len(eventIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, member_id, day_value, position, points
FROM resolved_results WHERE event_id = ANY($1) ORDER BY event_id, position, member_id`, eventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r model.ResolvedResult
		if err := rows.Scan(&r.EventID, &r.MemberID, &r.DayValue, &r.Position, &r.Points); err != nil {
			return nil, err
		}
		out[r.EventID] = append(out[r.EventID], r)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *PostgresStore) Close() error { return s.db.Close() }

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
