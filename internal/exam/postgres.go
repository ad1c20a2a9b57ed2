package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository stores the catalog in the exams/questions tables. The
// results foreign key cascades on exam delete.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateExam(ctx context.Context, title, description string) (*Exam, error) {
	var e Exam
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO exams (title, description, created_at)
		VALUES ($1, $2, now())
		RETURNING id, title, description, created_at
	`, title, description).Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert exam: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) UpdateExam(ctx context.Context, id int64, title, description string) (*Exam, error) {
	var e Exam
	err := r.db.QueryRowContext(ctx, `
		UPDATE exams
		SET title = $2,
			description = $3
		WHERE id = $1
		RETURNING id, title, description, created_at
	`, id, title, description).Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) DeleteExam(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete exam rows affected: %w", err)
	}
	if n == 0 {
		return ErrExamNotFound
	}
	return nil
}

func (r *PostgresRepository) GetExam(ctx context.Context, id int64) (*Exam, error) {
	var e Exam
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, created_at
		FROM exams
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) ListExams(ctx context.Context) ([]Exam, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, created_at
		FROM exams
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	out := make([]Exam, 0)
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) InsertQuestion(ctx context.Context, q Question) (*Question, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO questions (
			exam_id,
			text,
			option_a,
			option_b,
			option_c,
			option_d,
			correct,
			topic
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, q.ExamID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Correct, q.Topic).Scan(&q.ID)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return &q, nil
}

func (r *PostgresRepository) DeleteQuestion(ctx context.Context, examID, questionID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM questions
		WHERE id = $1 AND exam_id = $2
	`, questionID, examID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question rows affected: %w", err)
	}
	if n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (r *PostgresRepository) ListQuestions(ctx context.Context, examID int64) ([]Question, error) {
	return QueryQuestions(ctx, r.db, examID)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// QueryQuestions loads an exam's questions ordered by id. It is shared with
// the result store, which reads questions inside its submit transaction.
func QueryQuestions(ctx context.Context, q Querier, examID int64) ([]Question, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, exam_id, text, option_a, option_b, option_c, option_d, correct, topic
		FROM questions
		WHERE exam_id = $1
		ORDER BY id ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		var item Question
		if err := rows.Scan(
			&item.ID,
			&item.ExamID,
			&item.Text,
			&item.OptionA,
			&item.OptionB,
			&item.OptionC,
			&item.OptionD,
			&item.Correct,
			&item.Topic,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}
