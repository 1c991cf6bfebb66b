package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Arax734/bookshare-app-sub001/internal/http/response"
)

const writeDeadline = 60 * time.Second

// UserResolver returns the authenticated user id stored in ctx, or "".
type UserResolver func(ctx context.Context) string

// Snapshot returns the initial notifications payload for a new stream.
type Snapshot func(ctx context.Context, userID string) (any, error)

// Handler serves GET /api/events.
type Handler struct {
	manager  *Manager
	logger   *slog.Logger
	userID   UserResolver
	snapshot Snapshot
}

// NewHandler creates a new SSE Handler. snapshot may be nil.
func NewHandler(manager *Manager, logger *slog.Logger, userID UserResolver, snapshot Snapshot) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		manager:  manager,
		logger:   logger,
		userID:   userID,
		snapshot: snapshot,
	}
}

// ServeHTTP streams the caller's events until the client goes away or the
// manager shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := h.userID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		response.InternalError(w, "Streaming not supported")
		return
	}

	client := h.manager.Connect(userID)
	defer h.manager.Disconnect(client.ID)

	clientLogger := h.logger.With(slog.String("client_id", client.ID), slog.String("user_id", userID))

	if err := h.sendEvent(w, rc, string(EventConnected), map[string]string{
		"clientId": client.ID,
	}); err != nil {
		clientLogger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	if h.snapshot != nil {
		counts, err := h.snapshot(r.Context(), userID)
		if err != nil {
			clientLogger.Warn("failed to load notification snapshot", slog.String("error", err.Error()))
		} else if err := h.sendEvent(w, rc, string(EventNotificationsUpdated), NewNotificationsEvent(userID, counts)); err != nil {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				clientLogger.Info("client disconnected during send")
				return
			}

		case <-client.Done:
			clientLogger.Info("client closed by manager")
			return

		case <-ctx.Done():
			clientLogger.Debug("client context canceled")
			return
		}
	}
}

func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset after each successful write so a stuck client cannot hold the
	// connection forever.
	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
