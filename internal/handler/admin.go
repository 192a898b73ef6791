package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/techcert/internal/exam"
	"github.com/pavelanni/techcert/internal/export"
	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/model"
	"github.com/pavelanni/techcert/internal/store"
	"github.com/pavelanni/techcert/internal/validator"
)

// parseQuery reads filter, sort and dir from the query string. It writes a
// 400 and reports false for an unknown sort key.
func parseQuery(w http.ResponseWriter, r *http.Request) (export.Query, bool) {
	q := export.DefaultQuery()
	values := r.URL.Query()
	q.Filter = strings.TrimSpace(values.Get("filter"))
	key, err := export.ParseSortKey(values.Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return q, false
	}
	q.SortBy = key
	switch strings.ToLower(values.Get("dir")) {
	case "asc":
		q.Desc = false
	case "", "desc":
		q.Desc = true
	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "dir must be asc or desc"})
		return q, false
	}
	return q, true
}

type resultRow struct {
	model.ExamRecord
	Percent string `json:"percent"`
	Passed  bool   `json:"passed"`
}

type resultsResponse struct {
	Count          int         `json:"count"`
	PassingPercent float64     `json:"passingPercent"`
	Results        []resultRow `json:"results"`
}

func (h *Handler) handleAdminResults(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	recs, err := h.store.ListRecords(r.Context())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("list records: %w", err))
		return
	}
	recs = export.FilterSort(recs, q)

	resp := resultsResponse{
		Count:          len(recs),
		PassingPercent: h.config.PassingPercent,
		Results:        make([]resultRow, 0, len(recs)),
	}
	for _, rec := range recs {
		resp.Results = append(resp.Results, resultRow{
			ExamRecord: rec,
			Percent:    exam.FormatPercent(rec.TotalScore, rec.TotalPossible, 1),
			Passed:     exam.Percent(rec.TotalScore, rec.TotalPossible) >= h.config.PassingPercent,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	recs, err := h.store.ListRecords(r.Context())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("list records: %w", err))
		return
	}
	recs = export.FilterSort(recs, q)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, recs, h.config.Location); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("exported results", "count", len(recs))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(h.now())))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("write csv", "error", err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

func (h *Handler) handleClearResults(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.ClearRecords(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("cleared exam results", "count", n)
	writeJSON(w, http.StatusOK, messageResponse{Message: appI18n.Tp(r.Context(), "ResultsCleared", n), Count: &n})
}

func (h *Handler) handleListTrainees(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListTrainees(r.Context())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("list trainees: %w", err))
		return
	}
	if list == nil {
		list = []model.Trainee{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateTrainee(w http.ResponseWriter, r *http.Request) {
	var in model.NewTrainee
	if !decodeJSON(w, r, &in) {
		return
	}
	in = validator.Normalize(in)
	if h.validate != nil {
		if fields := h.validate.Trainee(in); len(fields) > 0 {
			h.writeFieldErrors(w, r, fields)
			return
		}
	}

	if err := h.store.AddTrainee(r.Context(), in); err != nil {
		if errors.Is(err, store.ErrTraineeExists) {
			h.writeFieldErrors(w, r, map[string]string{"username": "In use."})
			return
		}
		h.writeError(w, r, err)
		return
	}
	slog.Info("created trainee via admin", "username", in.Username)
	writeJSON(w, http.StatusCreated, messageResponse{
		Message: appI18n.Td(r.Context(), "TraineeAdded", map[string]any{"Username": in.Username}),
	})
}

func (h *Handler) handleDeleteTrainee(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := h.store.DeleteTrainee(r.Context(), username); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("deleted trainee via admin", "username", username)
	writeJSON(w, http.StatusOK, messageResponse{
		Message: appI18n.Td(r.Context(), "TraineeDeleted", map[string]any{"Username": username}),
	})
}
