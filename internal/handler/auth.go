package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/model"
	"github.com/pavelanni/techcert/internal/validator"
)

const (
	clientCookieName = "techcert_client"
	csrfCookieName   = "csrf_token"
	csrfHeaderName   = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// clientMiddleware identifies the browser tab by an opaque cookie token,
// issuing a fresh one when it is missing or malformed.
func (h *Handler) clientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if cookie, err := r.Cookie(clientCookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				id = cookie.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     clientCookieName,
				Value:    id,
				Path:     h.cookiePath(),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := model.ContextWithClientID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// csrfMiddleware implements the double-submit cookie check: safe requests
// receive a token cookie, every other request must echo it in X-CSRF-Token.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		hasCookie := err == nil && cookie.Value != ""

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if !hasCookie {
				token, err := generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     h.cookiePath(),
					HttpOnly: false,
					Secure:   h.config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		if !hasCookie {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, apiError{Error: "csrf token missing"})
			return
		}
		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			slog.Warn("CSRF header missing", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, apiError{Error: "csrf token missing"})
			return
		}
		if len(headerToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, apiError{Error: "invalid csrf token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects clients that have not passed the admin login.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.controller(r).IsAdmin() {
			writeJSON(w, http.StatusForbidden, apiError{
				Error: appI18n.T(r.Context(), "InvalidAdminPassword"),
				Code:  "InvalidAdminPassword",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeJSON(w, r, &in) {
		return
	}
	ctrl := h.controller(r)
	if err := ctrl.Login(r.Context(), in.Username, in.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in model.NewTrainee
	if !decodeJSON(w, r, &in) {
		return
	}
	ctrl := h.controller(r)
	fields, err := ctrl.Signup(r.Context(), validator.Normalize(in))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(fields) > 0 {
		h.writeFieldErrors(w, r, fields)
		return
	}
	h.writeState(w, r, ctrl)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.Logout(r.Context())
	h.writeState(w, r, ctrl)
	h.registry.Forget(model.ClientIDFromContext(r.Context()))
}

type adminCredentials struct {
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in adminCredentials
	if !decodeJSON(w, r, &in) {
		return
	}
	ctrl := h.controller(r)
	if err := ctrl.AdminLogin(r.Context(), in.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeState(w, r, ctrl)
}
