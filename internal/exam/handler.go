package exam

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"azmoon/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const maxImportBytes = 8 << 20

type Handler struct {
	svc examService
}

type examService interface {
	CreateExam(ctx context.Context, in CreateExamInput) (*Exam, error)
	UpdateExam(ctx context.Context, in UpdateExamInput) (*Exam, error)
	DeleteExam(ctx context.Context, examID int64) error
	GetExam(ctx context.Context, examID int64) (*Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
	AddQuestion(ctx context.Context, in AddQuestionInput) (*Question, error)
	DeleteQuestion(ctx context.Context, examID, questionID int64) error
	ListQuestions(ctx context.Context, examID int64) ([]Question, error)
	ListPublicQuestions(ctx context.Context, examID int64) ([]PublicQuestion, error)
	ImportQuestionsXLSX(ctx context.Context, examID int64, r io.Reader) (*QuestionImportReport, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type examRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type questionRequest struct {
	Text    string `json:"text" validate:"required"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
	Correct string `json:"correct" validate:"omitempty,oneof=A B C D a b c d"`
	Topic   string `json:"topic" validate:"max=100"`
}

var validate = validator.New()

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListExams(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListExams(r.Context())
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) GetExam(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	item, err := h.svc.GetExam(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

// PublicQuestions lists questions without answer keys.
func (h *Handler) PublicQuestions(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.svc.ListPublicQuestions(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.svc.ListQuestions(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) CreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.svc.CreateExam(r.Context(), CreateExamInput{Title: req.Title, Description: req.Description})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log.Info().Int64("exam_id", item.ID).Str("title", item.Title).Msg("exam created")
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: item})
}

func (h *Handler) UpdateExam(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req examRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.svc.UpdateExam(r.Context(), UpdateExamInput{ID: examID, Title: req.Title, Description: req.Description})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

func (h *Handler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteExam(r.Context(), examID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log.Info().Int64("exam_id", examID).Msg("exam deleted")
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]any{"deleted": true}})
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req questionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.svc.AddQuestion(r.Context(), AddQuestionInput{
		ExamID:  examID,
		Text:    req.Text,
		OptionA: req.OptionA,
		OptionB: req.OptionB,
		OptionC: req.OptionC,
		OptionD: req.OptionD,
		Correct: req.Correct,
		Topic:   req.Topic,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: item})
}

func (h *Handler) ImportQuestions(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid multipart form"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "file is required"})
		return
	}
	defer file.Close()

	report, err := h.svc.ImportQuestionsXLSX(r.Context(), examID, file)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: report})
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	questionID, ok := parseID(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.svc.DeleteQuestion(r.Context(), examID, questionID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]any{"deleted": true}})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrExamNotFound), errors.Is(err, ErrQuestionNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	default:
		h.writeInternal(w, r, err)
	}
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("exam handler failed")
	writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid " + param})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
