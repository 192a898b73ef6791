package model

import (
	"context"
	"time"
)

// User identifies the trainee signed in on a client session.
type User struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// DisplayID returns the email when present, otherwise the trainee ID.
func (u User) DisplayID() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Question is a single multiple-choice item.
type Question struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Choices map[string]string `json:"choices"`
	Correct string            `json:"correct"`
}

// Module is a named, ordered group of questions scored independently.
type Module struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	ItemCount int        `json:"itemCount"`
	Questions []Question `json:"questions"`
}

// ModuleResult holds the score of one submitted module.
type ModuleResult struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// ExamSession is the mutable working state of one exam attempt.
type ExamSession struct {
	CurrentModuleIndex int                     `json:"currentModuleIndex"`
	Answers            map[string]string       `json:"answers"`
	ModuleResults      map[string]ModuleResult `json:"moduleResults"`
	SubmittedModules   map[string]bool         `json:"submittedModules"`
}

// NewExamSession returns a zero-valued session with initialized maps.
func NewExamSession() ExamSession {
	return ExamSession{
		Answers:          make(map[string]string),
		ModuleResults:    make(map[string]ModuleResult),
		SubmittedModules: make(map[string]bool),
	}
}

// ExamRecord is the persisted outcome of one completed attempt.
type ExamRecord struct {
	ID            string                  `json:"id,omitempty"`
	User          User                    `json:"user"`
	Timestamp     time.Time               `json:"timestamp"`
	ModuleResults map[string]ModuleResult `json:"moduleResults"`
	Answers       map[string]string       `json:"answers"`
	TotalScore    int                     `json:"totalScore"`
	TotalPossible int                     `json:"totalPossible"`
}

// Trainee is a credential record keyed by username.
type Trainee struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewTrainee is the input for creating a trainee credential.
type NewTrainee struct {
	Username string `json:"username" validate:"required,min=3,nospace"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	ID       string `json:"id"`
}

// User derives the session user from a stored trainee.
func (t Trainee) User() User {
	return User{
		Name:   t.Name,
		Email:  t.Email,
		ID:     t.ID,
		UserID: t.Username,
	}
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	ExamDuration   time.Duration // 0 means untimed
	PassingPercent float64
	AppID          string
	SecureCookies  bool
	AdminHash      string // bcrypt hash of the admin password
}

type clientCtxKey struct{}

// ContextWithClientID stores the client session token in the request context.
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientCtxKey{}, id)
}

// ClientIDFromContext retrieves the client session token, or "".
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientCtxKey{}).(string)
	return id
}
