package result

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"azmoon/internal/exam"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
)

// PostgresStore serializes writers per exam with a transaction-scoped
// advisory lock so that several server processes agree on one order.
type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresStore(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const resultColumns = `id, exam_id, student_name, phone, province, score_percent, tazr,
	rank_national, rank_provincial, details, created_at`

func (s *PostgresStore) InTx(ctx context.Context, scope LockScope, examID int64, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	timeout := strconv.FormatInt(s.lockTimeout.Milliseconds(), 10) + "ms"
	if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		return classify(fmt.Errorf("set lock timeout: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))
	`, string(scope), examID); err != nil {
		return classify(fmt.Errorf("acquire %s lock: %w", scope, err))
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *PostgresStore) ExamExists(ctx context.Context, examID int64) (bool, error) {
	return examExists(ctx, s.db, examID)
}

func (s *PostgresStore) GetResult(ctx context.Context, id int64) (*Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1`, id)
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("load result: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, examID int64, province string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM results
		WHERE exam_id = $1
		  AND ($2::text = '' OR province = $2::text)
		ORDER BY tazr DESC, created_at ASC, id ASC
	`, examID, province)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindResult(ctx context.Context, examID int64, key DedupKey) (*Result, error) {
	return findResult(ctx, s.db, examID, key)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) ExamExists(ctx context.Context, examID int64) (bool, error) {
	return examExists(ctx, t.tx, examID)
}

func (t *pgTx) FindResult(ctx context.Context, examID int64, key DedupKey) (*Result, error) {
	return findResult(ctx, t.tx, examID, key)
}

func (t *pgTx) ListQuestions(ctx context.Context, examID int64) ([]exam.Question, error) {
	return exam.QueryQuestions(ctx, t.tx, examID)
}

func (t *pgTx) InsertResult(ctx context.Context, r *Result) error {
	details, err := EncodeDetails(r.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	err = t.tx.QueryRowContext(ctx, `
		INSERT INTO results (
			exam_id,
			student_name,
			phone,
			province,
			score_percent,
			tazr,
			rank_national,
			rank_provincial,
			details,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7::jsonb, clock_timestamp())
		RETURNING id, created_at
	`, r.ExamID, r.StudentName, r.Phone, r.Province, r.ScorePercent, r.Tazr, string(details)).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateResult
		}
		return fmt.Errorf("insert result: %w", err)
	}
	r.RankNational = 0
	r.RankProvincial = 0
	return nil
}

func (t *pgTx) ListRankEntries(ctx context.Context, examID int64) ([]RankEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, tazr, province, created_at
		FROM results
		WHERE exam_id = $1
		ORDER BY tazr DESC, created_at ASC, id ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query rank entries: %w", err)
	}
	defer rows.Close()

	out := make([]RankEntry, 0)
	for rows.Next() {
		var e RankEntry
		if err := rows.Scan(&e.ID, &e.Tazr, &e.Province, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rank entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rank entries: %w", err)
	}
	return out, nil
}

func (t *pgTx) UpdateRanks(ctx context.Context, examID int64, ranks []RankAssignment) error {
	if len(ranks) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE results
		SET rank_national = $2,
			rank_provincial = $3
		WHERE id = $1 AND exam_id = $4
		  AND (rank_national <> $2 OR rank_provincial <> $3)
	`)
	if err != nil {
		return fmt.Errorf("prepare rank update: %w", err)
	}
	defer stmt.Close()

	for _, a := range ranks {
		if _, err := stmt.ExecContext(ctx, a.ResultID, a.National, a.Provincial, examID); err != nil {
			return fmt.Errorf("update rank result_id=%d: %w", a.ResultID, err)
		}
	}
	return nil
}

func examExists(ctx context.Context, q queryable, examID int64) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM exams WHERE id = $1)`, examID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check exam: %w", err)
	}
	return exists, nil
}

func findResult(ctx context.Context, q queryable, examID int64, key DedupKey) (*Result, error) {
	var row *sql.Row
	if key.UsesPhone() {
		row = q.QueryRowContext(ctx, `
			SELECT `+resultColumns+`
			FROM results
			WHERE exam_id = $1 AND phone = $2
			ORDER BY id ASC
			LIMIT 1
		`, examID, key.Phone)
	} else {
		row = q.QueryRowContext(ctx, `
			SELECT `+resultColumns+`
			FROM results
			WHERE exam_id = $1 AND student_name = $2 AND province = $3
			ORDER BY id ASC
			LIMIT 1
		`, examID, key.StudentName, key.Province)
	}
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("find result: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*Result, error) {
	var (
		r       Result
		details []byte
	)
	if err := row.Scan(
		&r.ID,
		&r.ExamID,
		&r.StudentName,
		&r.Phone,
		&r.Province,
		&r.ScorePercent,
		&r.Tazr,
		&r.RankNational,
		&r.RankProvincial,
		&details,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Details = DecodeDetails(details)
	return &r, nil
}

// classify maps lock and timeout failures to ErrStorageContention and
// leaves everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: sqlstate %s: %v", ErrStorageContention, pgErr.Code, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrStorageContention) {
		return fmt.Errorf("%w: %v", ErrStorageContention, err)
	}
	return err
}
