package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavelanni/techcert/internal/model"
)

const (
	feedBacklog    = 32
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// feedEvent is one message on the admin feed. Data holds the full trainee
// list or result set; each event replaces the client's copy.
type feedEvent struct {
	Type  string `json:"type"` // "trainees", "results" or "error"
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleAdminFeed streams trainee and result snapshots to an admin client.
func (h *Handler) handleAdminFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan feedEvent, feedBacklog)
	push := func(ev feedEvent) {
		select {
		case events <- ev:
		default:
			slog.Warn("admin feed backlog full, dropping update", "type", ev.Type)
		}
	}
	onErr := func(err error) { push(feedEvent{Type: "error", Error: err.Error()}) }

	unsubTrainees := h.store.SubscribeTrainees(ctx, func(list []model.Trainee) {
		if list == nil {
			list = []model.Trainee{}
		}
		push(feedEvent{Type: "trainees", Data: list})
	}, onErr)
	defer unsubTrainees()
	unsubResults := h.store.SubscribeResults(ctx, func(recs []model.ExamRecord) {
		if recs == nil {
			recs = []model.ExamRecord{}
		}
		push(feedEvent{Type: "results", Data: recs})
	}, onErr)
	defer unsubResults()

	slog.Info("admin feed connected")

	// The reader only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("admin feed closed unexpectedly", "error", err)
				} else {
					slog.Debug("admin feed closed")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("admin feed write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		}
	}
}
