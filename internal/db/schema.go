package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema is idempotent. The partial unique indexes enforce one result per
// student per exam.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS exams (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGSERIAL PRIMARY KEY,
		exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		option_a TEXT NOT NULL DEFAULT '',
		option_b TEXT NOT NULL DEFAULT '',
		option_c TEXT NOT NULL DEFAULT '',
		option_d TEXT NOT NULL DEFAULT '',
		correct TEXT NOT NULL DEFAULT '' CHECK (correct IN ('', 'A', 'B', 'C', 'D')),
		topic TEXT NOT NULL DEFAULT 'unspecified'
	)`,
	`CREATE INDEX IF NOT EXISTS ix_questions_exam ON questions (exam_id, id)`,
	`CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
		student_name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL,
		score_percent DOUBLE PRECISION NOT NULL,
		tazr DOUBLE PRECISION NOT NULL,
		rank_national INTEGER NOT NULL DEFAULT 0,
		rank_provincial INTEGER NOT NULL DEFAULT 0,
		details JSONB NOT NULL DEFAULT '{"per_topic":{},"per_question":{}}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_results_exam_phone
		ON results (exam_id, phone) WHERE phone <> ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_results_exam_name_province
		ON results (exam_id, student_name, province) WHERE phone = ''`,
	`CREATE INDEX IF NOT EXISTS ix_results_exam_tazr
		ON results (exam_id, tazr DESC, created_at ASC)`,
}

// Migrate creates missing tables and indexes in one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrate: %w", err)
	}
	defer tx.Rollback()

	// One migrator at a time across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('azmoon:migrate', 0))`); err != nil {
		return fmt.Errorf("lock migrate: %w", err)
	}
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrate: %w", err)
	}
	log.Info().Int("statements", len(schema)).Msg("schema ready")
	return nil
}
