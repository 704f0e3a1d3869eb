package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// TrialEvent is one progress update of a running tuning job.
type TrialEvent struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	Trials    int       `json:"trials"`
	Failed    int       `json:"failed"`
	BestScore float64   `json:"bestScore"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBroadcaster fans trial events out to the SSE clients of each job.
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan TrialEvent]bool
	lastEvent map[string]TrialEvent // replayed to newly connected clients
}

// NewEventBroadcaster creates an empty broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan TrialEvent]bool),
		lastEvent: make(map[string]TrialEvent),
	}
}

// Subscribe registers a client for a job's events. Reconnecting clients
// immediately receive the last known event.
func (eb *EventBroadcaster) Subscribe(jobID string) chan TrialEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan TrialEvent, 16)
	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan TrialEvent]bool)
	}
	eb.clients[jobID][ch] = true

	if last, ok := eb.lastEvent[jobID]; ok {
		select {
		case ch <- last:
		default:
		}
	}
	return ch
}

// Unsubscribe removes and closes a client channel.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan TrialEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[jobID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(eb.clients, jobID)
		}
	}
}

// Broadcast delivers an event to all subscribers of its job. Slow clients
// are skipped, never blocked on.
func (eb *EventBroadcaster) Broadcast(event TrialEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.JobID] = event
	for ch := range eb.clients[event.JobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// handleJobEvents serves the SSE stream for one job.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, ch)
	slog.Debug("sse client connected", "job_id", jobID)

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("sse client disconnected", "job_id", jobID)
			return
		case event, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to marshal trial event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if event.State == StateCompleted || event.State == StateFailed || event.State == StateCancelled {
				return
			}
		}
	}
}
