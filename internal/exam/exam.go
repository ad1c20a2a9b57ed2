package exam

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
)

// DefaultTopic labels questions created without a topic.
const DefaultTopic = "unspecified"

type Exam struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Question struct {
	ID      int64  `json:"id"`
	ExamID  int64  `json:"exam_id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
	Correct string `json:"correct"`
	Topic   string `json:"topic"`
}

// PublicQuestion is what a student sees while taking the exam.
type PublicQuestion struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
	Topic   string `json:"topic"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
		Topic:   q.Topic,
	}
}

// Repository persists exams and their questions. Deleting an exam must remove
// its questions and results.
type Repository interface {
	CreateExam(ctx context.Context, title, description string) (*Exam, error)
	UpdateExam(ctx context.Context, id int64, title, description string) (*Exam, error)
	DeleteExam(ctx context.Context, id int64) error
	GetExam(ctx context.Context, id int64) (*Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
	InsertQuestion(ctx context.Context, q Question) (*Question, error)
	DeleteQuestion(ctx context.Context, examID, questionID int64) error
	ListQuestions(ctx context.Context, examID int64) ([]Question, error)
}
