package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pavelanni/techcert/internal/exam"
	"github.com/pavelanni/techcert/internal/export"
	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/model"
	"github.com/pavelanni/techcert/internal/store"
	"github.com/pavelanni/techcert/internal/validator"
)

// Store is the admin side of the credential and results store.
type Store interface {
	ListTrainees(ctx context.Context) ([]model.Trainee, error)
	AddTrainee(ctx context.Context, nt model.NewTrainee) error
	DeleteTrainee(ctx context.Context, username string) error
	ListRecords(ctx context.Context) ([]model.ExamRecord, error)
	GetRecord(ctx context.Context, id string) (*model.ExamRecord, error)
	ClearRecords(ctx context.Context) (int, error)
	SubscribeTrainees(ctx context.Context, fn func([]model.Trainee), onErr func(error)) func()
	SubscribeResults(ctx context.Context, fn func([]model.ExamRecord), onErr func(error)) func()
}

// GuideFunc writes a study guide for a module. fallback reports that the
// canned guide was used instead of a generated one.
type GuideFunc func(ctx context.Context, m model.Module) (guide string, fallback bool)

// Config holds HTTP-layer settings.
type Config struct {
	BasePath       string
	SecureCookies  bool
	PassingPercent float64
	// AllowedOrigins limits the admin websocket. Empty allows any origin.
	AllowedOrigins []string
	// Location is used for CSV and HTML timestamps.
	Location *time.Location
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	registry *exam.Registry
	store    Store
	modules  []model.Module
	validate *validator.Validator
	guide    GuideFunc
	config   Config
	upgrader websocket.Upgrader
	now      func() time.Time
}

// New creates a new Handler.
func New(reg *exam.Registry, s Store, mods []model.Module, v *validator.Validator, guide GuideFunc, cfg Config) *Handler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Handler{
		registry: reg,
		store:    s,
		modules:  mods,
		validate: v,
		guide:    guide,
		config:   cfg,
		upgrader: buildUpgrader(cfg.AllowedOrigins),
		now:      time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.clientMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.csrfMiddleware)

		r.Get("/state", h.handleState)
		r.Get("/modules", h.handleModules)
		r.Post("/navigate", h.handleNavigate)
		r.Post("/notices/dismiss", h.handleDismissNotice)

		r.Post("/login", h.handleLogin)
		r.Post("/signup", h.handleSignup)
		r.Post("/logout", h.handleLogout)

		r.Post("/exam/enter", h.handleEnterExam)
		r.Post("/exam/answer", h.handleAnswer)
		r.Post("/exam/next", h.handleNext)
		r.Post("/exam/prev", h.handlePrev)
		r.Post("/exam/proceed", h.handleProceed)

		r.Get("/history", h.handleHistory)
		r.Post("/history/{recordID}/review", h.handleReviewHistory)
		r.Post("/review/lobby", h.handleBackToLobby)

		r.Post("/reviewer/message", h.handleChatMessage)
		r.Post("/reviewer/{moduleID}", h.handleOpenReviewer)
		r.Get("/reviewer/{moduleID}/guide", h.handleStudyGuide)

		r.Post("/admin/login", h.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/admin/results", h.handleAdminResults)
			r.Get("/admin/results.csv", h.handleExportCSV)
			r.Delete("/admin/results", h.handleClearResults)
			r.Get("/admin/trainees", h.handleListTrainees)
			r.Post("/admin/trainees", h.handleCreateTrainee)
			r.Delete("/admin/trainees/{username}", h.handleDeleteTrainee)
			r.Get("/admin/feed", h.handleAdminFeed)
		})
	})

	r.Get("/review/{recordID}", h.handleReviewPage)
}

// controller returns the exam controller of the requesting client.
func (h *Handler) controller(r *http.Request) *exam.Controller {
	return h.registry.Get(r.Context(), model.ClientIDFromContext(r.Context()))
}

type apiError struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// errorCodes maps domain errors to a status and a message id.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{exam.ErrNoAnswer, http.StatusUnprocessableEntity, "SelectOption"},
	{exam.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
	{exam.ErrInvalidAdminPassword, http.StatusUnauthorized, "InvalidAdminPassword"},
	{exam.ErrNotSignedIn, http.StatusUnauthorized, "NotSignedIn"},
	{exam.ErrWrongView, http.StatusConflict, "WrongView"},
	{exam.ErrAttemptFinished, http.StatusConflict, "AttemptFinished"},
	{exam.ErrLogoutRequired, http.StatusConflict, "LogoutRequired"},
	{exam.ErrModuleSubmitted, http.StatusConflict, "ModuleSubmitted"},
	{exam.ErrModuleNotSubmitted, http.StatusConflict, "ModuleNotSubmitted"},
	{exam.ErrRecordNotFound, http.StatusNotFound, "RecordNotFound"},
	{exam.ErrUnknownModule, http.StatusNotFound, "UnknownModule"},
	{export.ErrNoRecords, http.StatusNotFound, "NoRecords"},
	{store.ErrOffline, http.StatusServiceUnavailable, "OfflineWrite"},
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			writeJSON(w, ec.status, apiError{Error: appI18n.T(r.Context(), ec.code), Code: ec.code})
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
}

func (h *Handler) writeFieldErrors(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, apiError{
		Error:  appI18n.T(r.Context(), "FixFields"),
		Code:   "FixFields",
		Fields: fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a request body into dst. It writes a 400 and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
