package exam

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Service struct {
	repo Repository
}

type CreateExamInput struct {
	Title       string
	Description string
}

type UpdateExamInput struct {
	ID          int64
	Title       string
	Description string
}

type AddQuestionInput struct {
	ExamID  int64
	Text    string
	OptionA string
	OptionB string
	OptionC string
	OptionD string
	Correct string
	Topic   string
}

const maxTitleLen = 200

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateExam(ctx context.Context, in CreateExamInput) (*Exam, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return nil, ErrInvalidInput
	}
	e, err := s.repo.CreateExam(ctx, title, strings.TrimSpace(in.Description))
	if err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return e, nil
}

func (s *Service) UpdateExam(ctx context.Context, in UpdateExamInput) (*Exam, error) {
	title := strings.TrimSpace(in.Title)
	if in.ID <= 0 || title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return nil, ErrInvalidInput
	}
	return s.repo.UpdateExam(ctx, in.ID, title, strings.TrimSpace(in.Description))
}

func (s *Service) DeleteExam(ctx context.Context, examID int64) error {
	if examID <= 0 {
		return ErrInvalidInput
	}
	return s.repo.DeleteExam(ctx, examID)
}

func (s *Service) GetExam(ctx context.Context, examID int64) (*Exam, error) {
	return s.repo.GetExam(ctx, examID)
}

func (s *Service) ListExams(ctx context.Context) ([]Exam, error) {
	return s.repo.ListExams(ctx)
}

func (s *Service) AddQuestion(ctx context.Context, in AddQuestionInput) (*Question, error) {
	q, err := normalizeQuestion(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetExam(ctx, in.ExamID); err != nil {
		return nil, err
	}
	created, err := s.repo.InsertQuestion(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return created, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, examID, questionID int64) error {
	if examID <= 0 || questionID <= 0 {
		return ErrInvalidInput
	}
	return s.repo.DeleteQuestion(ctx, examID, questionID)
}

// ListQuestions returns the exam's questions including answer keys.
func (s *Service) ListQuestions(ctx context.Context, examID int64) ([]Question, error) {
	if _, err := s.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.repo.ListQuestions(ctx, examID)
}

func (s *Service) ListPublicQuestions(ctx context.Context, examID int64) ([]PublicQuestion, error) {
	items, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	out := make([]PublicQuestion, 0, len(items))
	for _, q := range items {
		out = append(out, q.Public())
	}
	return out, nil
}

func normalizeQuestion(in AddQuestionInput) (Question, error) {
	q := Question{
		ExamID:  in.ExamID,
		Text:    strings.TrimSpace(in.Text),
		OptionA: strings.TrimSpace(in.OptionA),
		OptionB: strings.TrimSpace(in.OptionB),
		OptionC: strings.TrimSpace(in.OptionC),
		OptionD: strings.TrimSpace(in.OptionD),
		Correct: NormalizeLetter(in.Correct),
		Topic:   NormalizeTopic(in.Topic),
	}
	if q.ExamID <= 0 || q.Text == "" {
		return Question{}, ErrInvalidInput
	}
	switch q.Correct {
	case "", "A", "B", "C", "D":
	default:
		return Question{}, ErrInvalidInput
	}
	return q, nil
}

// NormalizeLetter trims and upper-cases an option letter.
func NormalizeLetter(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func NormalizeTopic(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultTopic
	}
	return v
}
