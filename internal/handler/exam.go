package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/techcert/internal/exam"
	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/model"
)

type noticeView struct {
	ID      int    `json:"id"`
	Code    string `json:"code"`
	IsError bool   `json:"isError"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// stateResponse is the controller snapshot with banner and notices localized.
type stateResponse struct {
	exam.State
	BannerText string       `json:"bannerText,omitempty"`
	Notices    []noticeView `json:"notices,omitempty"`
}

// actionResponse carries the new state plus whatever the action produced.
type actionResponse struct {
	State    stateResponse       `json:"state"`
	Accepted *bool               `json:"accepted,omitempty"`
	Moved    *bool               `json:"moved,omitempty"`
	Step     string              `json:"step,omitempty"`
	Result   *model.ModuleResult `json:"result,omitempty"`
	Record   *model.ExamRecord   `json:"record,omitempty"`
	Reply    *exam.ChatMessage   `json:"reply,omitempty"`
}

func (h *Handler) buildState(r *http.Request, ctrl *exam.Controller) stateResponse {
	ctx := r.Context()
	st := ctrl.Snapshot()
	resp := stateResponse{State: st}
	if st.Banner != "" {
		resp.BannerText = appI18n.T(ctx, st.Banner)
	}
	for _, n := range st.Notices {
		nv := noticeView{
			ID:      n.ID,
			Code:    n.Code,
			IsError: n.IsError,
			Message: appI18n.Td(ctx, n.Code, n.Data),
		}
		if n.Code == "SaveErrorMessage" {
			nv.Title = appI18n.T(ctx, "SaveErrorTitle")
		}
		resp.Notices = append(resp.Notices, nv)
	}
	return resp
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, ctrl *exam.Controller) {
	writeJSON(w, http.StatusOK, h.buildState(r, ctrl))
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	// Recompute the countdown so an expired exam is finalized before rendering.
	ctrl.Tick()
	h.writeState(w, r, ctrl)
}

type moduleInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ItemCount     int    `json:"itemCount"`
	QuestionCount int    `json:"questionCount"`
}

func (h *Handler) handleModules(w http.ResponseWriter, r *http.Request) {
	out := make([]moduleInfo, 0, len(h.modules))
	for _, m := range h.modules {
		out = append(out, moduleInfo{
			ID:            m.ID,
			Title:         m.Title,
			ItemCount:     m.ItemCount,
			QuestionCount: len(m.Questions),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type navigateRequest struct {
	View string `json:"view"`
}

// navigableViews are the screens a client may request by name. The
// remaining views carry data and have dedicated endpoints.
var navigableViews = map[string]exam.View{
	"auth":        exam.AuthView{},
	"lobby":       exam.LobbyView{},
	"admin-login": exam.AdminLoginView{},
	"admin":       exam.AdminView{},
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var in navigateRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	v, ok := navigableViews[in.View]
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unknown view " + in.View})
		return
	}
	ctrl := h.controller(r)
	if err := ctrl.Navigate(r.Context(), v); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}

type dismissRequest struct {
	ID int `json:"id"`
}

func (h *Handler) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	var in dismissRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	ctrl := h.controller(r)
	ctrl.DismissNotice(in.ID)
	h.writeState(w, r, ctrl)
}

func (h *Handler) handleEnterExam(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if err := ctrl.EnterExam(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Choice     string `json:"choice"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var in answerRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	ctrl := h.controller(r)
	ok, err := ctrl.Answer(r.Context(), in.QuestionID, in.Choice)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{State: h.buildState(r, ctrl), Accepted: &ok})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	step, res, err := ctrl.NextQuestion(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := actionResponse{State: h.buildState(r, ctrl), Step: "advanced", Result: res}
	if step == exam.StepModuleSubmitted {
		resp.Step = "submitted"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePrev(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	moved, err := ctrl.PrevQuestion(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{State: h.buildState(r, ctrl), Moved: &moved})
}

func (h *Handler) handleProceed(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	rec, err := ctrl.Proceed(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{State: h.buildState(r, ctrl), Record: rec})
}

type historyItem struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	TotalScore    int    `json:"totalScore"`
	TotalPossible int    `json:"totalPossible"`
	Percent       string `json:"percent"`
	Passed        bool   `json:"passed"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.controller(r).History(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]historyItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, historyItem{
			ID:            rec.ID,
			Timestamp:     rec.Timestamp.In(h.config.Location).Format("2006-01-02 15:04"),
			TotalScore:    rec.TotalScore,
			TotalPossible: rec.TotalPossible,
			Percent:       exam.FormatPercent(rec.TotalScore, rec.TotalPossible, 1),
			Passed:        exam.Percent(rec.TotalScore, rec.TotalPossible) >= h.config.PassingPercent,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleReviewHistory(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if err := ctrl.ReviewHistory(r.Context(), chi.URLParam(r, "recordID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}

func (h *Handler) handleBackToLobby(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if err := ctrl.BackToLobby(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}
