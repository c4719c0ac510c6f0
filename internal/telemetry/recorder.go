package telemetry

import (
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelWarning
	LevelBroken
	LevelCount
)

// Event is one call made against a Recorder.
type Event struct {
	Level  Level
	ID     string
	Params []any
	Count  int64
}

// Param returns the value of the KV param with the given key.
func (e Event) Param(key string) (any, bool) {
	for _, p := range e.Params {
		kv, ok := p.(KV)
		if ok && kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Recorder is an API that keeps every event in memory so tests can assert on
// what a component reported.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Event{Level: LevelBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Event{Level: LevelWarning, ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Event{Level: LevelDebug, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Event{Level: LevelCount, ID: id, Count: count})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Find returns the events of a level whose id contains substr.
func (r *Recorder) Find(level Level, substr string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Level == level && strings.Contains(e.ID, substr) {
			out = append(out, e)
		}
	}
	return out
}
