// Package progress tracks the stages of long-running export jobs and fans
// updates out to listeners such as websocket subscribers.
package progress

import (
	"encoding/json"
	"sync"
	"time"
)

// Stage is the phase an export is in.
type Stage string

const (
	StageQueued    Stage = "queued"
	StagePreparing Stage = "preparing"
	StageRendering Stage = "rendering"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
	StageCancelled Stage = "cancelled"
)

// Terminal reports whether no further events follow this stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError || s == StageCancelled
}

// Event is one progress notification.
type Event struct {
	Stage     Stage        `json:"stage"`
	Progress  int          `json:"progress"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Step      *StepDetails `json:"step,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// StepDetails describes the transcoder step currently running.
type StepDetails struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// ProgressTracker holds the latest state of one job.
type ProgressTracker struct {
	mu        sync.RWMutex
	stage     Stage
	progress  int
	message   string
	step      *StepDetails
	err       error
	nextID    int
	listeners map[int]func(Event)
	now       func() time.Time
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stage:     StageQueued,
		listeners: make(map[int]func(Event)),
		now:       time.Now,
	}
}

// AddListener registers listener and returns a function that removes it.
func (pt *ProgressTracker) AddListener(listener func(Event)) (remove func()) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	id := pt.nextID
	pt.nextID++
	pt.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			pt.mu.Lock()
			delete(pt.listeners, id)
			pt.mu.Unlock()
		})
	}
}

// UpdateProgress sets the stage and percentage and notifies all listeners.
// Progress never moves backwards within a stage.
func (pt *ProgressTracker) UpdateProgress(stage Stage, progress int, message string) {
	pt.mu.Lock()
	if stage == pt.stage && progress < pt.progress {
		progress = pt.progress
	}
	pt.stage = stage
	pt.progress = progress
	pt.message = message
	event := pt.eventLocked()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// UpdateStep records the transcoder step being executed.
func (pt *ProgressTracker) UpdateStep(name string, index, total int) {
	pt.mu.Lock()
	pt.step = &StepDetails{Name: name, Index: index, Total: total}
	event := pt.eventLocked()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// SetError moves the tracker to the error stage.
func (pt *ProgressTracker) SetError(err error) {
	pt.mu.Lock()
	pt.stage = StageError
	pt.err = err
	pt.message = err.Error()
	event := pt.eventLocked()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

func (pt *ProgressTracker) eventLocked() Event {
	event := Event{
		Stage:     pt.stage,
		Progress:  pt.progress,
		Message:   pt.message,
		Timestamp: pt.now(),
	}
	if pt.step != nil {
		step := *pt.step
		event.Step = &step
	}
	if pt.err != nil {
		event.Error = pt.err.Error()
	}
	return event
}

// notifyListeners runs outside the lock so listeners may call back into the tracker.
func (pt *ProgressTracker) notifyListeners(event Event) {
	pt.mu.RLock()
	listeners := make([]func(Event), 0, len(pt.listeners))
	for _, l := range pt.listeners {
		listeners = append(listeners, l)
	}
	pt.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// GetCurrentState returns the current progress state.
func (pt *ProgressTracker) GetCurrentState() Event {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.eventLocked()
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
