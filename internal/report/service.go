package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"

	"azmoon/internal/exam"
	"azmoon/internal/result"

	"github.com/xuri/excelize/v2"
)

type examReader interface {
	GetExam(ctx context.Context, examID int64) (*exam.Exam, error)
}

type resultReader interface {
	GetResults(ctx context.Context, examID int64, province string) ([]result.Result, error)
}

type Service struct {
	exams   examReader
	results resultReader
}

type ProvinceCount struct {
	Province     string  `json:"province"`
	Participants int     `json:"participants"`
	AverageTazr  float64 `json:"average_tazr"`
}

type ExamSummary struct {
	ExamID       int64           `json:"exam_id"`
	Title        string          `json:"title"`
	Participants int             `json:"participants"`
	AverageScore float64         `json:"average_score"`
	HighestScore float64         `json:"highest_score"`
	LowestScore  float64         `json:"lowest_score"`
	AverageTazr  float64         `json:"average_tazr"`
	HighestTazr  float64         `json:"highest_tazr"`
	LowestTazr   float64         `json:"lowest_tazr"`
	Provinces    []ProvinceCount `json:"provinces"`
}

func NewService(exams examReader, results resultReader) *Service {
	return &Service{exams: exams, results: results}
}

func (s *Service) SummaryByExam(ctx context.Context, examID int64) (*ExamSummary, error) {
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	items, err := s.results.GetResults(ctx, examID, "")
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	out := &ExamSummary{
		ExamID:       e.ID,
		Title:        e.Title,
		Participants: len(items),
		Provinces:    make([]ProvinceCount, 0),
	}
	if len(items) == 0 {
		return out, nil
	}

	out.HighestScore, out.LowestScore = math.Inf(-1), math.Inf(1)
	out.HighestTazr, out.LowestTazr = math.Inf(-1), math.Inf(1)
	var scoreSum, tazrSum float64
	byProvince := map[string]*ProvinceCount{}
	tazrByProvince := map[string]float64{}

	for _, r := range items {
		scoreSum += r.ScorePercent
		tazrSum += r.Tazr
		out.HighestScore = math.Max(out.HighestScore, r.ScorePercent)
		out.LowestScore = math.Min(out.LowestScore, r.ScorePercent)
		out.HighestTazr = math.Max(out.HighestTazr, r.Tazr)
		out.LowestTazr = math.Min(out.LowestTazr, r.Tazr)

		pc, ok := byProvince[r.Province]
		if !ok {
			pc = &ProvinceCount{Province: r.Province}
			byProvince[r.Province] = pc
		}
		pc.Participants++
		tazrByProvince[r.Province] += r.Tazr
	}

	n := float64(len(items))
	out.AverageScore = round2(scoreSum / n)
	out.AverageTazr = round2(tazrSum / n)
	for name, pc := range byProvince {
		pc.AverageTazr = round2(tazrByProvince[name] / float64(pc.Participants))
		out.Provinces = append(out.Provinces, *pc)
	}
	sort.Slice(out.Provinces, func(i, j int) bool {
		if out.Provinces[i].Participants != out.Provinces[j].Participants {
			return out.Provinces[i].Participants > out.Provinces[j].Participants
		}
		return out.Provinces[i].Province < out.Provinces[j].Province
	})
	return out, nil
}

// ExportResultsXLSX renders the exam's results in ranking order.
func (s *Service) ExportResultsXLSX(ctx context.Context, examID int64) ([]byte, error) {
	if _, err := s.exams.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	items, err := s.results.GetResults(ctx, examID, "")
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	headers := []string{"rank_national", "rank_provincial", "student_name", "phone", "province", "score_percent", "tazr", "created_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range items {
		row := i + 2
		values := []any{
			it.RankNational,
			it.RankProvincial,
			it.StudentName,
			it.Phone,
			it.Province,
			it.ScorePercent,
			it.Tazr,
			it.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "H", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
