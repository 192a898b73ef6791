package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/techcert/internal/exam"
	"github.com/pavelanni/techcert/internal/handler/views"
	"github.com/pavelanni/techcert/internal/llm/prompts"
)

func (h *Handler) handleOpenReviewer(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if err := ctrl.OpenReviewer(r.Context(), chi.URLParam(r, "moduleID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}

type chatRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var in chatRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "message cannot be empty"})
		return
	}
	ctrl := h.controller(r)
	reply, err := ctrl.SendChat(r.Context(), text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{State: h.buildState(r, ctrl), Reply: &reply})
}

type guideResponse struct {
	ModuleID string `json:"moduleId"`
	Guide    string `json:"guide"`
	Fallback bool   `json:"fallback"`
}

func (h *Handler) handleStudyGuide(w http.ResponseWriter, r *http.Request) {
	m, err := h.controller(r).ReviewerModule(chi.URLParam(r, "moduleID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := guideResponse{ModuleID: m.ID}
	if h.guide != nil {
		resp.Guide, resp.Fallback = h.guide(r.Context(), m)
	} else {
		resp.Guide, resp.Fallback = prompts.FallbackGuide(m), true
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReviewPage renders a printable results sheet. Trainees see their
// own records; an admin client sees any record.
func (h *Handler) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	rec, err := h.store.GetRecord(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		slog.Error("failed to load record", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := ctrl.Snapshot()
	owner := rec != nil && st.User != nil && rec.User.UserID == st.User.UserID
	if rec == nil || !(owner || st.Admin) {
		http.NotFound(w, r)
		return
	}

	rep := exam.BuildReport(h.modules, *rec, h.config.PassingPercent)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ReviewPage(rep, h.config.Location).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}
