package app

import (
	"database/sql"
	"net/http"
	"time"

	"azmoon/internal/app/apiresp"
	"azmoon/internal/app/observability"
	"azmoon/internal/db"
	"azmoon/internal/exam"
	"azmoon/internal/identity"
	"azmoon/internal/memstore"
	"azmoon/internal/report"
	"azmoon/internal/result"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter wires services over the configured store. dbConn may be nil when
// STORE_DRIVER=memory.
func NewRouter(cfg Config, dbConn *sql.DB) http.Handler {
	var (
		examRepo    exam.Repository
		resultStore result.Store
	)
	if cfg.StoreDriver == StoreMemory || dbConn == nil {
		mem := memstore.New(cfg.LockTimeout)
		examRepo, resultStore = mem, mem
		dbConn = nil
		log.Warn().Msg("using in-memory store, data is lost on restart")
	} else {
		examRepo = exam.NewPostgresRepository(dbConn)
		resultStore = result.NewPostgresStore(dbConn, cfg.LockTimeout)
	}

	examSvc := exam.NewService(examRepo)
	resultSvc := result.NewService(resultStore, cfg.LockTimeout)
	reportSvc := report.NewService(examSvc, resultSvc)

	submitLimiter := NewIPRateLimiter(cfg.SubmitRateLimitPerMin, time.Minute)
	authFailures := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)
	parseLimiter := NewIPRateLimiter(120, time.Minute)

	examHandler := exam.NewHandler(examSvc)
	resultHandler := result.NewHandler(resultSvc, submitLimiter)
	reportHandler := report.NewHandler(reportSvc)
	metrics := observability.NewCollector(dbConn)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if dbConn != nil {
			if err := db.Ping(r.Context(), dbConn, 2*time.Second); err != nil {
				log.Error().Err(err).Msg("healthz: database unreachable")
				apiresp.WriteError(w, r, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		apiresp.WriteOK(w, r, http.StatusOK, map[string]any{"store": cfg.StoreDriver})
	})
	r.Get("/metrics", metrics.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/provinces", identity.ProvincesHandler)
		api.With(RateLimitMiddleware(parseLimiter)).Post("/identity/parse", identity.ParseHandler)

		api.Get("/exams", examHandler.ListExams)
		api.Get("/exams/{id}", examHandler.GetExam)
		api.Get("/exams/{id}/questions", examHandler.PublicQuestions)
		api.Post("/exams/{id}/start", resultHandler.Start)
		api.Post("/exams/{id}/submissions", resultHandler.Submit)
		api.Get("/exams/{id}/results", resultHandler.ListResults)
		api.Get("/results/{id}", resultHandler.GetResult)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(TeacherGuard(cfg.TeacherUser, cfg.TeacherPasswordHash, authFailures))

			admin.Post("/exams", examHandler.CreateExam)
			admin.Put("/exams/{id}", examHandler.UpdateExam)
			admin.Delete("/exams/{id}", examHandler.DeleteExam)
			admin.Get("/exams/{id}/questions", examHandler.ListQuestions)
			admin.Post("/exams/{id}/questions", examHandler.AddQuestion)
			admin.Post("/exams/{id}/questions/import", examHandler.ImportQuestions)
			admin.Delete("/exams/{id}/questions/{questionID}", examHandler.DeleteQuestion)
			admin.Post("/exams/{id}/results", resultHandler.AdminCreateResult)
			admin.Post("/exams/{id}/ranks/recalculate", resultHandler.RecalculateRanks)
			admin.Get("/exams/{id}/report", reportHandler.Summary)
			admin.Get("/exams/{id}/results.xlsx", reportHandler.ExportResults)
		})
	})

	if cfg.TeacherUser == "" || cfg.TeacherPasswordHash == "" {
		log.Warn().Msg("TEACHER_USER or TEACHER_PASSWORD_HASH not set, admin routes will reject every request")
	}

	return r
}
