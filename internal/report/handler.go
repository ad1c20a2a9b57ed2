package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"azmoon/internal/app/apiresp"
	"azmoon/internal/exam"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc reportService
}

type reportService interface {
	SummaryByExam(ctx context.Context, examID int64) (*ExamSummary, error)
	ExportResultsXLSX(ctx context.Context, examID int64) ([]byte, error)
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseExamID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.SummaryByExam(r.Context(), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) ExportResults(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseExamID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.ExportResultsXLSX(r.Context(), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, examID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseExamID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, exam.ErrExamNotFound) {
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		return
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg("report failed")
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}
