// Package notify defines the user-facing notification sink. Keys deduplicate
// messages for the same operation: loading updates overwrite each other under
// one key, and the orchestrator guarantees a single terminal Success or Error
// per key.
package notify

import (
	"log/slog"
	"sync"
)

// Sink receives the user-facing status stream for an operation.
type Sink interface {
	Loading(message, key string)
	Success(message, key string)
	Error(message, key string)
}

// SlogSink logs notifications through a structured logger. It is the default
// sink for headless deployments where no UI is attached.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Loading implements Sink.
func (s SlogSink) Loading(message, key string) {
	s.logger().Info(message, "key", key, "state", "loading")
}

// Success implements Sink.
func (s SlogSink) Success(message, key string) {
	s.logger().Info(message, "key", key, "state", "success")
}

// Error implements Sink.
func (s SlogSink) Error(message, key string) {
	s.logger().Error(message, "key", key, "state", "error")
}

// Event records a single notification for inspection in tests.
type Event struct {
	State   string
	Message string
	Key     string
}

// Recorder is a Sink that captures every notification.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Loading implements Sink.
func (r *Recorder) Loading(message, key string) { r.record("loading", message, key) }

// Success implements Sink.
func (r *Recorder) Success(message, key string) { r.record("success", message, key) }

// Error implements Sink.
func (r *Recorder) Error(message, key string) { r.record("error", message, key) }

func (r *Recorder) record(state, message, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{State: state, Message: message, Key: key})
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Terminal returns the recorded success/error notifications for a key.
func (r *Recorder) Terminal(key string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Key == key && (ev.State == "success" || ev.State == "error") {
			out = append(out, ev)
		}
	}
	return out
}
