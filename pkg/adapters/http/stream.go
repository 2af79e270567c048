package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/session"
)

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates a StreamManager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for the session. Call the returned func to unsubscribe.
func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of the session without blocking.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Observer publishes session diffs to subscribers. Register it on the session manager.
func (sm *StreamManager) Observer() session.Observer {
	return func(_ context.Context, diff *domain.SessionDiff) {
		data, err := json.Marshal(diff)
		if err != nil {
			sm.logger.Error("Failed to encode session diff", "session_id", diff.SessionID, "err", err)
			return
		}
		sm.Broadcast(diff.SessionID, string(data))
	}
}

// matchesWatch reports whether a diff touches any of the watched fields.
// An empty watch list matches everything.
func matchesWatch(msg string, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	var diff domain.SessionDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "status":
			if diff.Status != nil {
				return true
			}
		case "steps":
			if len(diff.StepsAppended) > 0 || len(diff.StepsUpdated) > 0 {
				return true
			}
		case "tree":
			if diff.TreeChanged {
				return true
			}
		case "messages":
			if len(diff.MessagesAppended) > 0 {
				return true
			}
		}
	}
	return false
}
