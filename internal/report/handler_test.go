package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"azmoon/internal/exam"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	summaryFn func(ctx context.Context, examID int64) (*ExamSummary, error)
	exportFn  func(ctx context.Context, examID int64) ([]byte, error)
}

func (m *mockReportService) SummaryByExam(ctx context.Context, examID int64) (*ExamSummary, error) {
	if m.summaryFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.summaryFn(ctx, examID)
}

func (m *mockReportService) ExportResultsXLSX(ctx context.Context, examID int64) ([]byte, error) {
	if m.exportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.exportFn(ctx, examID)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestSummaryNotFound(t *testing.T) {
	h := NewHandler(&mockReportService{
		summaryFn: func(ctx context.Context, examID int64) (*ExamSummary, error) { return nil, exam.ErrExamNotFound },
	})
	req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/admin/exams/4/report", nil), "id", "4")
	w := httptest.NewRecorder()

	h.Summary(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExportResultsHeaders(t *testing.T) {
	h := NewHandler(&mockReportService{
		exportFn: func(ctx context.Context, examID int64) ([]byte, error) { return []byte("xlsx"), nil },
	})
	req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/admin/exams/4/results.xlsx", nil), "id", "4")
	w := httptest.NewRecorder()

	h.ExportResults(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("Content-Disposition") != `attachment; filename="exam-4-results.xlsx"` {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if w.Body.String() != "xlsx" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
