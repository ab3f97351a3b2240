package progress

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker()
	assert.Equal(t, StageQueued, tracker.GetCurrentState().Stage)
	assert.Empty(t, tracker.GetCurrentState().Error)

	var received []Event
	tracker.AddListener(func(event Event) {
		received = append(received, event)
	})

	tracker.UpdateProgress(StageRendering, 50, "Rendering")
	tracker.UpdateProgress(StageRendering, 30, "Rendering")
	tracker.UpdateProgress(StageComplete, 100, "Done")

	require.Len(t, received, 3)
	assert.Equal(t, 50, received[1].Progress, "progress never moves backwards within a stage")
	assert.Equal(t, StageComplete, received[2].Stage)

	tracker.SetError(context.Canceled)
	state := tracker.GetCurrentState()
	assert.Equal(t, StageError, state.Stage)
	assert.Equal(t, context.Canceled.Error(), state.Error)
}

func TestUpdateStep(t *testing.T) {
	tracker := NewProgressTracker()

	var received []Event
	tracker.AddListener(func(event Event) { received = append(received, event) })

	tracker.UpdateStep("trim input0.mp4", 1, 3)
	tracker.UpdateStep("render", 3, 3)

	require.Len(t, received, 2)
	for i, want := range []StepDetails{{"trim input0.mp4", 1, 3}, {"render", 3, 3}} {
		require.NotNil(t, received[i].Step)
		assert.Equal(t, want, *received[i].Step)
	}
}

func TestRemoveListener(t *testing.T) {
	tracker := NewProgressTracker()

	var a, b int
	removeA := tracker.AddListener(func(Event) { a++ })
	tracker.AddListener(func(Event) { b++ })

	tracker.UpdateProgress(StageRendering, 10, "")
	removeA()
	removeA()
	tracker.UpdateProgress(StageRendering, 20, "")

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestListenerMayReadState(t *testing.T) {
	tracker := NewProgressTracker()
	done := make(chan Event, 1)
	tracker.AddListener(func(Event) { done <- tracker.GetCurrentState() })

	tracker.UpdateProgress(StagePreparing, 5, "Writing inputs")

	select {
	case state := <-done:
		assert.Equal(t, StagePreparing, state.Stage)
	case <-time.After(time.Second):
		t.Fatal("listener deadlocked")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tracker := NewProgressTracker()
	var mu sync.Mutex
	count := 0
	tracker.AddListener(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			tracker.UpdateProgress(StageRendering, p, "")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	assert.Equal(t, 19, tracker.GetCurrentState().Progress)
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageComplete.Terminal())
	assert.True(t, StageError.Terminal())
	assert.True(t, StageCancelled.Terminal())
	assert.False(t, StageRendering.Terminal())
}

func TestEventJSON(t *testing.T) {
	event := Event{
		Stage:     StageRendering,
		Progress:  42,
		Message:   "Rendering",
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 500, time.UTC),
		Step:      &StepDetails{Name: "render", Index: 1, Total: 1},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2024-03-01T10:00:00.0000005Z"`)
	assert.NotContains(t, string(data), `"error"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event, decoded)
}
