package result

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"azmoon/internal/app/apiresp"
	"azmoon/internal/exam"
	"azmoon/internal/identity"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const maxSubmitBodyBytes = 64 << 10

// Limiter decides whether the caller identified by key may submit now.
type Limiter interface {
	Allow(key string) bool
}

type Handler struct {
	svc     resultService
	limiter Limiter
}

type resultService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitOutcome, error)
	Start(ctx context.Context, examID int64, in identity.StartInput) (*StartOutcome, error)
	RecalculateRanks(ctx context.Context, examID int64) error
	GetResults(ctx context.Context, examID int64, province string) ([]Result, error)
	GetResult(ctx context.Context, id int64) (*Result, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type startRequest struct {
	Combined string `json:"combined"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Province string `json:"province" validate:"required"`
}

type submitRequest struct {
	Name     string          `json:"name"`
	Phone    string          `json:"phone"`
	Province string          `json:"province" validate:"required"`
	Answers  json.RawMessage `json:"answers"`
}

type adminResultRequest struct {
	submitRequest
	Tazr *float64 `json:"tazr" validate:"omitempty,gte=0"`
}

var validate = validator.New()

// NewHandler builds the result endpoints. A nil limiter disables submit
// throttling.
func NewHandler(svc resultService, limiter Limiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req startRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	out, err := h.svc.Start(r.Context(), examID, identity.StartInput{
		Combined: req.Combined,
		Name:     req.Name,
		Phone:    req.Phone,
		Province: req.Province,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow("submit|"+clientIP(r)) {
		writeJSON(w, r, http.StatusTooManyRequests, response{OK: false, Error: "too many submissions, try again later"})
		return
	}

	var req submitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	in, ok := submitInput(w, r, examID, req)
	if !ok {
		return
	}
	h.submit(w, r, in)
}

// AdminCreateResult records a result with a tazr supplied by a teacher.
func (h *Handler) AdminCreateResult(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req adminResultRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Tazr != nil && (math.IsNaN(*req.Tazr) || math.IsInf(*req.Tazr, 0)) {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid tazr"})
		return
	}
	in, ok := submitInput(w, r, examID, req.submitRequest)
	if !ok {
		return
	}
	in.TazrOverride = req.Tazr
	h.submit(w, r, in)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, in SubmitInput) {
	out, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	code := http.StatusCreated
	if out.Duplicate {
		code = http.StatusOK
	}
	writeJSON(w, r, code, response{OK: true, Data: out})
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	province := strings.TrimSpace(r.URL.Query().Get("province"))
	if province != "" && !identity.ValidProvince(province) {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: identity.ErrInvalidProvince.Error()})
		return
	}
	items, err := h.svc.GetResults(r.Context(), examID, province)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	item, err := h.svc.GetResult(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

func (h *Handler) RecalculateRanks(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.RecalculateRanks(r.Context(), examID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log.Info().Int64("exam_id", examID).Msg("ranks recalculated")
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]any{"recalculated": true}})
}

func submitInput(w http.ResponseWriter, r *http.Request, examID int64, req submitRequest) (SubmitInput, bool) {
	province := strings.TrimSpace(req.Province)
	if !identity.ValidProvince(province) {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: identity.ErrInvalidProvince.Error()})
		return SubmitInput{}, false
	}
	if identity.NormalizeName(req.Name) == "" && identity.NormalizePhone(req.Phone) == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: identity.ErrIdentityIncomplete.Error()})
		return SubmitInput{}, false
	}
	return SubmitInput{
		ExamID:   examID,
		Name:     req.Name,
		Phone:    req.Phone,
		Province: province,
		Answers:  ParseAnswers(answersPayload(req.Answers)),
	}, true
}

// answersPayload accepts the answers either as a JSON object or as a JSON
// string holding one.
func answersPayload(raw json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrStorageContention):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("storage contention")
		apiresp.WriteRetryable(w, r, 1, "server is busy, retry the same request")
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, identity.ErrInvalidProvince),
		errors.Is(err, identity.ErrIdentityIncomplete),
		errors.Is(err, identity.ErrNameNotPersian),
		errors.Is(err, identity.ErrInvalidPhone):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, exam.ErrExamNotFound), errors.Is(err, ErrResultNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, context.Canceled):
		writeJSON(w, r, http.StatusServiceUnavailable, response{OK: false, Error: "request canceled"})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("result handler failed")
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, response{OK: false, Error: "request body too large"})
			return false
		}
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

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
