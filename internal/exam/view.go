package exam

import "github.com/pavelanni/techcert/internal/model"

// View is the screen a client session is on. Only the types in this file implement it.
type View interface {
	viewName() string
}

// AuthView is the trainee login screen.
type AuthView struct{}

// LobbyView lists modules and history for a signed-in trainee.
type LobbyView struct{}

// ExamView runs the current module.
type ExamView struct{}

// ReviewView shows a finished record. Historical is true when the record
// was opened from the trainee's history rather than just produced.
type ReviewView struct {
	Record     model.ExamRecord
	Historical bool
}

// AdminLoginView asks for the admin password.
type AdminLoginView struct{}

// AdminView is the results summary and trainee manager.
type AdminView struct{}

// ReviewerView is the AI review chat for one module.
type ReviewerView struct {
	ModuleID string
}

func (AuthView) viewName() string       { return "auth" }
func (LobbyView) viewName() string      { return "lobby" }
func (ExamView) viewName() string       { return "exam" }
func (ReviewView) viewName() string     { return "review" }
func (AdminLoginView) viewName() string { return "admin-login" }
func (AdminView) viewName() string      { return "admin" }
func (ReviewerView) viewName() string   { return "reviewer" }

// ViewName returns the wire name of v.
func ViewName(v View) string {
	if v == nil {
		return "auth"
	}
	return v.viewName()
}
