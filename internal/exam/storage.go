package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pavelanni/techcert/internal/model"
)

// Keys of the per-client persisted entries.
const (
	UserKey    = "cfmti_user"
	EndTimeKey = "cfmti_exam_end_time"
	SessionKey = "cfmti_exam_session"
)

// KV is the key-value backend behind Storage. A missing key reads as "".
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// SavedSession is the snapshot written on every session mutation so a
// reloaded client can resume mid-exam.
type SavedSession struct {
	View    string   `json:"view"`
	Session *Session `json:"session"`
}

// Storage is the save/load boundary for one client's persisted entries.
type Storage struct {
	kv     KV
	prefix string
}

// NewStorage scopes kv to the given client token.
func NewStorage(kv KV, clientID string) *Storage {
	return &Storage{kv: kv, prefix: clientID + ":"}
}

func (s *Storage) key(k string) string { return s.prefix + k }

// LoadUser returns the stored user, or nil if none.
func (s *Storage) LoadUser(ctx context.Context) (*model.User, error) {
	raw, err := s.kv.GetValue(ctx, s.key(UserKey))
	if err != nil || raw == "" {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &u, nil
}

// SaveUser stores u as JSON.
func (s *Storage) SaveUser(ctx context.Context, u model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.kv.SetValue(ctx, s.key(UserKey), string(data))
}

// ClearUser removes the stored user.
func (s *Storage) ClearUser(ctx context.Context) error {
	return s.kv.DeleteValue(ctx, s.key(UserKey))
}

// LoadEndTime returns the stored exam end time. ok is false when none is stored.
func (s *Storage) LoadEndTime(ctx context.Context) (end time.Time, ok bool, err error) {
	raw, err := s.kv.GetValue(ctx, s.key(EndTimeKey))
	if err != nil || raw == "" {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse stored end time %q: %w", raw, err)
	}
	return time.UnixMilli(ms), true, nil
}

// SaveEndTime stores end as epoch milliseconds.
func (s *Storage) SaveEndTime(ctx context.Context, end time.Time) error {
	return s.kv.SetValue(ctx, s.key(EndTimeKey), strconv.FormatInt(end.UnixMilli(), 10))
}

// ClearEndTime removes the stored end time.
func (s *Storage) ClearEndTime(ctx context.Context) error {
	return s.kv.DeleteValue(ctx, s.key(EndTimeKey))
}

// LoadSession returns the stored session snapshot, or nil.
func (s *Storage) LoadSession(ctx context.Context) (*SavedSession, error) {
	raw, err := s.kv.GetValue(ctx, s.key(SessionKey))
	if err != nil || raw == "" {
		return nil, err
	}
	var saved SavedSession
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, fmt.Errorf("decode stored session: %w", err)
	}
	if saved.Session != nil {
		saved.Session.ensureMaps()
	}
	return &saved, nil
}

// SaveSession stores a session snapshot.
func (s *Storage) SaveSession(ctx context.Context, saved SavedSession) error {
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return s.kv.SetValue(ctx, s.key(SessionKey), string(data))
}

// ClearSession removes the session snapshot.
func (s *Storage) ClearSession(ctx context.Context) error {
	return s.kv.DeleteValue(ctx, s.key(SessionKey))
}

// ClearAll removes every entry of this client.
func (s *Storage) ClearAll(ctx context.Context) error {
	for _, k := range []string{UserKey, EndTimeKey, SessionKey} {
		if err := s.kv.DeleteValue(ctx, s.key(k)); err != nil {
			return err
		}
	}
	return nil
}
