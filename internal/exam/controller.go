package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/techcert/internal/catalog"
	"github.com/pavelanni/techcert/internal/model"
)

var (
	// ErrInvalidCredentials is returned when a trainee login does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidAdminPassword is returned by AdminLogin on mismatch.
	ErrInvalidAdminPassword = errors.New("invalid admin password")
	// ErrNotSignedIn is returned when a trainee-only view is requested without a user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrWrongView is returned when an action does not apply to the current view.
	ErrWrongView = errors.New("action not available on this screen")
	// ErrAttemptFinished is returned when the current attempt was already finalized.
	ErrAttemptFinished = errors.New("exam attempt already finished")
	// ErrLogoutRequired is returned when leaving a just-finished review other than by logout.
	ErrLogoutRequired = errors.New("log out to start a new exam")
	// ErrRecordNotFound is returned for unknown or foreign history records.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnknownModule is returned for a module id not in the catalog.
	ErrUnknownModule = errors.New("unknown module")
)

// Backend is the credential and results store the controller depends on.
type Backend interface {
	Authenticate(ctx context.Context, username, password string) (*model.Trainee, error)
	GetTrainee(ctx context.Context, username string) (*model.Trainee, error)
	AddTrainee(ctx context.Context, nt model.NewTrainee) error
	SaveRecord(ctx context.Context, rec model.ExamRecord) (string, error)
	RecordsForUser(ctx context.Context, userID string) ([]model.ExamRecord, error)
	GetRecord(ctx context.Context, id string) (*model.ExamRecord, error)
	// Banner returns a message id describing degraded operation, or "".
	Banner() string
}

// Chat is a started AI review conversation.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
}

// ChatStarter opens an AI review conversation grounded on one module.
type ChatStarter func(ctx context.Context, m model.Module) (Chat, error)

// FieldValidator checks a new trainee and returns field errors, or nil.
type FieldValidator func(nt model.NewTrainee) map[string]string

// Deps are the collaborators shared by every controller.
type Deps struct {
	Backend   Backend
	KV        KV
	Modules   []model.Module
	Config    model.Config
	StartChat ChatStarter
	Validate  FieldValidator
	Now       func() time.Time
	// SaveTimeout bounds the asynchronous record write.
	SaveTimeout time.Duration
}

// Notice is a dismissable message. Code is a translation message id.
type Notice struct {
	ID      int            `json:"id"`
	Code    string         `json:"code"`
	Data    map[string]any `json:"data,omitempty"`
	IsError bool           `json:"isError"`
}

// ChatMessage is one line of the review chat transcript.
type ChatMessage struct {
	Role string `json:"role"` // "user" or "bot"
	Text string `json:"text"`
}

// Controller owns the application state of one client session.
type Controller struct {
	deps    Deps
	storage *Storage

	mu         sync.Mutex
	view       View
	user       *model.User
	session    *Session
	endTime    *time.Time
	countdown  *Countdown
	finalized  bool
	record     *model.ExamRecord
	lastResult *model.ModuleResult
	admin      bool
	chat       Chat
	chatLog    []ChatMessage
	notices    []Notice
	noticeSeq  int

	pending sync.WaitGroup
}

// NewController creates a controller on the auth screen.
func NewController(deps Deps, clientID string) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SaveTimeout == 0 {
		deps.SaveTimeout = 30 * time.Second
	}
	return &Controller{
		deps:    deps,
		storage: NewStorage(deps.KV, clientID),
		view:    AuthView{},
		session: NewSession(),
	}
}

// Restore reloads persisted state after a restart or page reload.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.storage.LoadUser(ctx)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	if user == nil || user.Name == "" {
		c.view = AuthView{}
		return nil
	}
	c.user = user
	c.view = LobbyView{}

	saved, err := c.storage.LoadSession(ctx)
	if err != nil {
		slog.Warn("discarding unreadable session snapshot", "error", err)
	}
	if saved != nil && saved.Session != nil {
		c.session = saved.Session
	}

	end, ok, err := c.storage.LoadEndTime(ctx)
	if err != nil {
		slog.Warn("discarding unreadable exam end time", "error", err)
		ok = false
	}
	if ok {
		c.endTime = &end
	}

	if saved != nil && saved.View == ViewName(ExamView{}) {
		c.view = ExamView{}
		if c.endTime == nil {
			return nil
		}
		if !c.endTime.After(c.deps.Now()) {
			c.finalizeLocked(ctx)
			return nil
		}
		c.startCountdownLocked()
	}
	return nil
}

// Login matches credentials against the trainee store and opens the lobby.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	trainee, err := c.deps.Backend.Authenticate(ctx, username, password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if trainee == nil {
		return ErrInvalidCredentials
	}
	return c.signIn(ctx, trainee.User())
}

// Signup validates and creates a trainee, then signs it in.
// Field errors are returned in the map and are not an error.
func (c *Controller) Signup(ctx context.Context, nt model.NewTrainee) (map[string]string, error) {
	if c.deps.Validate != nil {
		if fields := c.deps.Validate(nt); len(fields) > 0 {
			return fields, nil
		}
	}
	existing, err := c.deps.Backend.GetTrainee(ctx, nt.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return map[string]string{"username": "In use."}, nil
	}
	if err := c.deps.Backend.AddTrainee(ctx, nt); err != nil {
		return nil, fmt.Errorf("add trainee: %w", err)
	}
	t := model.Trainee{Username: nt.Username, Name: nt.Name, Email: nt.Email, ID: nt.ID}
	return nil, c.signIn(ctx, t.User())
}

func (c *Controller) signIn(ctx context.Context, u model.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.SaveUser(ctx, u); err != nil {
		slog.Warn("failed to persist user", "user", u.UserID, "error", err)
	}
	c.user = &u
	c.view = AuthView{}
	return c.navigateLocked(ctx, LobbyView{})
}

// Logout clears persisted state and returns to the auth screen.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCountdownLocked()
	if err := c.storage.ClearAll(ctx); err != nil {
		slog.Warn("failed to clear client storage", "error", err)
	}
	c.user = nil
	c.endTime = nil
	c.admin = false
	c.chat = nil
	c.chatLog = nil
	c.lastResult = nil
	c.view = AuthView{}
}

// Navigate applies the transition rules for moving to v.
func (c *Controller) Navigate(ctx context.Context, v View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigateLocked(ctx, v)
}

func (c *Controller) navigateLocked(ctx context.Context, v View) error {
	if rv, ok := c.view.(ReviewView); ok && !rv.Historical {
		switch v.(type) {
		case AuthView, ReviewView:
		default:
			return ErrLogoutRequired
		}
	}

	switch v.(type) {
	case LobbyView, ExamView, ReviewerView:
		if c.user == nil || c.user.Name == "" {
			c.leaveExamLocked(AuthView{})
			c.view = AuthView{}
			return ErrNotSignedIn
		}
	case AdminView:
		if !c.admin {
			c.leaveExamLocked(AdminLoginView{})
			c.view = AdminLoginView{}
			return ErrInvalidAdminPassword
		}
	}

	switch v.(type) {
	case LobbyView:
		if _, fromAuth := c.view.(AuthView); fromAuth {
			c.session = NewSession()
			c.finalized = false
			c.record = nil
			c.lastResult = nil
			if err := c.storage.ClearSession(ctx); err != nil {
				slog.Warn("failed to clear session snapshot", "error", err)
			}
		}
	case ExamView:
		if c.finalized {
			return ErrAttemptFinished
		}
		c.view = v
		c.enterExamLocked(ctx)
		c.persistLocked(ctx)
		return nil
	}

	c.leaveExamLocked(v)
	c.view = v
	c.persistLocked(ctx)
	return nil
}

// enterExamLocked arms the countdown. An existing end time is kept, so
// re-entering the exam never grants extra time.
func (c *Controller) enterExamLocked(ctx context.Context) {
	if c.countdown != nil && c.countdown.Fired() {
		c.stopCountdownLocked()
	}
	if c.endTime == nil {
		if c.deps.Config.ExamDuration <= 0 {
			return
		}
		end := c.deps.Now().Add(c.deps.Config.ExamDuration)
		c.endTime = &end
		if err := c.storage.SaveEndTime(ctx, end); err != nil {
			slog.Warn("failed to persist exam end time", "error", err)
		}
	}
	if !c.endTime.After(c.deps.Now()) {
		c.finalizeLocked(ctx)
		return
	}
	if c.countdown == nil {
		c.startCountdownLocked()
	}
}

// leaveExamLocked stops the ticker when moving away from the exam view.
// The stored end time stays armed.
func (c *Controller) leaveExamLocked(next View) {
	if _, stay := next.(ExamView); stay {
		return
	}
	c.stopCountdownLocked()
}

func (c *Controller) startCountdownLocked() {
	cd := NewCountdown(*c.endTime, c.deps.Now, func() { c.autoSubmit() })
	c.countdown = cd
	cd.Start()
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
}

// autoSubmit is the countdown's expiry callback.
func (c *Controller) autoSubmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, inExam := c.view.(ExamView); !inExam || c.finalized || c.user == nil {
		return
	}
	slog.Info("exam time expired, auto-submitting", "user", c.user.UserID)
	c.finalizeLocked(context.Background())
}

// Tick recomputes the countdown immediately. It reports the seconds left,
// or -1 when no timer is running.
func (c *Controller) Tick() int {
	c.mu.Lock()
	cd := c.countdown
	c.mu.Unlock()
	if cd == nil {
		return -1
	}
	return cd.Tick()
}

// CountdownRunning reports whether an exam timer is armed and has not fired.
func (c *Controller) CountdownRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countdown != nil && !c.countdown.Fired()
}

// EnterExam moves from the lobby into the exam.
func (c *Controller) EnterExam(ctx context.Context) error {
	return c.Navigate(ctx, ExamView{})
}

// Answer records a choice for a question of the current module.
// It reports false when the write was ignored.
func (c *Controller) Answer(ctx context.Context, questionID, choice string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.currentModuleLocked()
	if err != nil {
		return false, err
	}
	ok := c.session.SetAnswer(m, questionID, choice)
	if ok {
		c.persistLocked(ctx)
	}
	return ok, nil
}

// NextQuestion advances within the module or submits it on the last question.
// The module result is returned when the module was submitted.
func (c *Controller) NextQuestion(ctx context.Context) (Step, *model.ModuleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.currentModuleLocked()
	if err != nil {
		return StepAdvanced, nil, err
	}
	step, err := c.session.Next(m)
	if err != nil {
		return step, nil, err
	}
	var res *model.ModuleResult
	if step == StepModuleSubmitted {
		r := c.session.ModuleResults[m.ID]
		res = &r
		c.lastResult = &r
	}
	c.persistLocked(ctx)
	return step, res, nil
}

// PrevQuestion moves back one question.
func (c *Controller) PrevQuestion(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.currentModuleLocked(); err != nil {
		return false, err
	}
	moved := c.session.Prev()
	if moved {
		c.persistLocked(ctx)
	}
	return moved, nil
}

// Proceed moves to the next module, or finalizes after the last one.
// The record is returned when the exam was finalized.
func (c *Controller) Proceed(ctx context.Context) (*model.ExamRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.currentModuleLocked(); err != nil {
		return nil, err
	}
	advanced, err := c.session.Proceed(c.deps.Modules)
	if err != nil {
		return nil, err
	}
	c.lastResult = nil
	if advanced {
		c.persistLocked(ctx)
		return nil, nil
	}
	rec := c.finalizeLocked(ctx)
	return &rec, nil
}

// Finalize ends the attempt. Calling it again returns the same record.
func (c *Controller) Finalize(ctx context.Context) (model.ExamRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return model.ExamRecord{}, ErrNotSignedIn
	}
	return c.finalizeLocked(ctx), nil
}

func (c *Controller) finalizeLocked(ctx context.Context) model.ExamRecord {
	if c.finalized && c.record != nil {
		return *c.record
	}
	score, possible := Totals(c.session.ModuleResults)
	snap := c.session.Clone()
	rec := model.ExamRecord{
		User:          *c.user,
		Timestamp:     c.deps.Now().UTC(),
		ModuleResults: snap.ModuleResults,
		Answers:       snap.Answers,
		TotalScore:    score,
		TotalPossible: possible,
	}
	c.finalized = true
	c.record = &rec

	c.stopCountdownLocked()
	c.endTime = nil
	if err := c.storage.ClearEndTime(ctx); err != nil {
		slog.Warn("failed to clear exam end time", "error", err)
	}
	if err := c.storage.ClearSession(ctx); err != nil {
		slog.Warn("failed to clear session snapshot", "error", err)
	}

	c.view = ReviewView{Record: rec}
	c.saveAsync(rec)
	return rec
}

// saveAsync persists rec without blocking the caller. A failure is queued as a notice.
func (c *Controller) saveAsync(rec model.ExamRecord) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.deps.SaveTimeout)
		defer cancel()

		id, err := c.deps.Backend.SaveRecord(ctx, rec)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			if isOffline(err) {
				slog.Warn("offline mode: exam record not saved", "user", rec.User.UserID)
				return
			}
			slog.Error("failed to save exam record", "user", rec.User.UserID, "error", err)
			c.addNoticeLocked("SaveErrorMessage", nil, true)
			return
		}
		slog.Info("exam record saved", "id", id, "user", rec.User.UserID)
		if c.record != nil && c.record.Timestamp.Equal(rec.Timestamp) {
			c.record.ID = id
			if rv, ok := c.view.(ReviewView); ok && !rv.Historical {
				rv.Record.ID = id
				c.view = rv
			}
		}
	}()
}

// History returns the signed-in trainee's past records, newest first.
func (c *Controller) History(ctx context.Context) ([]model.ExamRecord, error) {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil {
		return nil, ErrNotSignedIn
	}
	recs, err := c.deps.Backend.RecordsForUser(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return recs, nil
}

// ReviewHistory opens one of the trainee's own past records.
func (c *Controller) ReviewHistory(ctx context.Context, recordID string) error {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	if user == nil {
		return ErrNotSignedIn
	}
	rec, err := c.deps.Backend.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if rec == nil || rec.User.UserID != user.UserID {
		return ErrRecordNotFound
	}
	return c.Navigate(ctx, ReviewView{Record: *rec, Historical: true})
}

// BackToLobby leaves a historical review or the reviewer chat.
func (c *Controller) BackToLobby(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := c.view.(type) {
	case ReviewView:
		if !v.Historical {
			return ErrLogoutRequired
		}
	case ReviewerView:
		c.chat = nil
		c.chatLog = nil
	case LobbyView:
		return nil
	default:
		return ErrWrongView
	}
	return c.navigateLocked(ctx, LobbyView{})
}

// AdminLogin checks the admin password and opens the admin view.
func (c *Controller) AdminLogin(ctx context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash := c.deps.Config.AdminHash
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		if err := c.navigateLocked(ctx, AdminLoginView{}); err != nil {
			return err
		}
		return ErrInvalidAdminPassword
	}
	c.admin = true
	if err := c.navigateLocked(ctx, AdminView{}); err != nil {
		c.admin = false
		return err
	}
	return nil
}

// IsAdmin reports whether this client passed the admin login.
func (c *Controller) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

// OpenReviewer starts an AI review chat for a module. A start failure
// is queued as a notice; the reviewer view still opens with the chat disabled.
func (c *Controller) OpenReviewer(ctx context.Context, moduleID string) error {
	m, idx := catalog.Find(c.deps.Modules, moduleID)
	if idx < 0 {
		return ErrUnknownModule
	}

	c.mu.Lock()
	if err := c.navigateLocked(ctx, ReviewerView{ModuleID: moduleID}); err != nil {
		c.mu.Unlock()
		return err
	}
	c.chat = nil
	c.chatLog = nil
	c.mu.Unlock()

	if c.deps.StartChat == nil {
		c.mu.Lock()
		c.addNoticeLocked("ChatUnavailable", nil, true)
		c.mu.Unlock()
		return nil
	}
	chat, err := c.deps.StartChat(ctx, m)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		slog.Warn("failed to start review chat", "module", moduleID, "error", err)
		c.addNoticeLocked("ChatUnavailable", map[string]any{"Detail": err.Error()}, true)
		return nil
	}
	if rv, ok := c.view.(ReviewerView); ok && rv.ModuleID == moduleID {
		c.chat = chat
	}
	return nil
}

// ReviewerModule returns the module of the open reviewer screen. Study
// material includes answers, so it is only handed out there.
func (c *Controller) ReviewerModule(moduleID string) (model.Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return model.Module{}, ErrNotSignedIn
	}
	if rv, ok := c.view.(ReviewerView); !ok || rv.ModuleID != moduleID {
		return model.Module{}, ErrWrongView
	}
	m, idx := catalog.Find(c.deps.Modules, moduleID)
	if idx < 0 {
		return model.Module{}, ErrUnknownModule
	}
	return m, nil
}

// SendChat sends text to the review chat. Failures come back as a bot message.
func (c *Controller) SendChat(ctx context.Context, text string) (ChatMessage, error) {
	c.mu.Lock()
	if _, ok := c.view.(ReviewerView); !ok {
		c.mu.Unlock()
		return ChatMessage{}, ErrWrongView
	}
	chat := c.chat
	c.chatLog = append(c.chatLog, ChatMessage{Role: "user", Text: text})
	c.mu.Unlock()

	var reply ChatMessage
	if chat == nil {
		reply = ChatMessage{Role: "bot", Text: "The AI chat session is not active. Please start a review session first."}
	} else if out, err := chat.Send(ctx, text); err != nil {
		slog.Warn("review chat failed", "error", err)
		reply = ChatMessage{Role: "bot", Text: "Sorry, I encountered an error: " + err.Error()}
	} else {
		reply = ChatMessage{Role: "bot", Text: out}
	}

	c.mu.Lock()
	c.chatLog = append(c.chatLog, reply)
	c.mu.Unlock()
	return reply, nil
}

// DismissNotice removes a notice by id.
func (c *Controller) DismissNotice(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return
		}
	}
}

// Wait blocks until in-flight record writes finish.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// Close stops the timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCountdownLocked()
}

func (c *Controller) addNoticeLocked(code string, data map[string]any, isError bool) {
	c.noticeSeq++
	c.notices = append(c.notices, Notice{ID: c.noticeSeq, Code: code, Data: data, IsError: isError})
}

func (c *Controller) currentModuleLocked() (model.Module, error) {
	if _, ok := c.view.(ExamView); !ok {
		return model.Module{}, ErrWrongView
	}
	if c.finalized {
		return model.Module{}, ErrAttemptFinished
	}
	m, ok := c.session.CurrentModule(c.deps.Modules)
	if !ok {
		return model.Module{}, ErrUnknownModule
	}
	return m, nil
}

func (c *Controller) persistLocked(ctx context.Context) {
	if c.user == nil || c.finalized {
		return
	}
	saved := SavedSession{View: ViewName(c.view), Session: c.session}
	if err := c.storage.SaveSession(ctx, saved); err != nil {
		slog.Warn("failed to persist session snapshot", "error", err)
	}
}

// offlineError is implemented by backend errors meaning "not connected".
type offlineError interface {
	Offline() bool
}

func isOffline(err error) bool {
	var oe offlineError
	return errors.As(err, &oe) && oe.Offline()
}
