package exam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

type QuestionImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type QuestionImportReport struct {
	TotalRows   int                      `json:"total_rows"`
	SuccessRows int                      `json:"success_rows"`
	FailedRows  int                      `json:"failed_rows"`
	Errors      []QuestionImportRowError `json:"errors"`
}

// ImportQuestionsXLSX reads the first sheet of an xlsx workbook with the
// columns text, option_a..option_d, correct and topic, and adds one question
// per row. Rows that fail validation are reported, not fatal.
func (s *Service) ImportQuestionsXLSX(ctx context.Context, examID int64, r io.Reader) (*QuestionImportReport, error) {
	if _, err := s.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows found")
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"text", "option_a", "option_b", "option_c", "option_d", "correct"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	report := &QuestionImportReport{Errors: make([]QuestionImportRowError, 0)}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if get("text") == "" && get("correct") == "" {
			continue
		}
		report.TotalRows++

		_, err := s.AddQuestion(ctx, AddQuestionInput{
			ExamID:  examID,
			Text:    get("text"),
			OptionA: get("option_a"),
			OptionB: get("option_b"),
			OptionC: get("option_c"),
			OptionD: get("option_d"),
			Correct: get("correct"),
			Topic:   get("topic"),
		})
		if err != nil {
			report.FailedRows++
			msg := err.Error()
			if errors.Is(err, ErrInvalidInput) {
				msg = "text is required and correct must be one of A, B, C, D"
			}
			report.Errors = append(report.Errors, QuestionImportRowError{Row: i + 1, Error: msg})
			continue
		}
		report.SuccessRows++
	}

	return report, nil
}
