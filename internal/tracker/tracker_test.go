package tracker_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lyzr/flowengine/internal/tracker"
)

func TestCountersAccumulate(t *testing.T) {
	tr := tracker.New()
	tr.SetTotalNodes(3)
	tr.NodeStarted("p", "a")
	tr.NodeCompleted("p", "a", nil, "")
	tr.NodeStarted("p", "b")
	tr.NodeFailed("p", "b", assert.AnError)

	total, started, completed, failed := tr.Counters()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, started)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}

func TestWorkflowCompletedFiresWhenAllRunnersUnregister(t *testing.T) {
	tr := tracker.New()
	var mu sync.Mutex
	var events []tracker.EventType
	tr.Subscribe(func(e tracker.Event) {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
	})

	tr.RegisterRunner("p1")
	tr.RegisterRunner("p2")
	tr.UnregisterRunner("p1")

	mu.Lock()
	assert.NotContains(t, events, tracker.EventWorkflowCompleted)
	mu.Unlock()

	tr.UnregisterRunner("p2")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, tracker.EventWorkflowCompleted)
}

func TestStatusTransitionsToSucceededOnCleanCompletion(t *testing.T) {
	tr := tracker.New()
	tr.RegisterRunner("p")
	tr.UnregisterRunner("p")

	status, err := tr.Status()
	assert.Equal(t, tracker.StatusSucceeded, status)
	assert.NoError(t, err)
}

func TestWorkflowFailedSetsTerminalError(t *testing.T) {
	tr := tracker.New()
	tr.WorkflowStarted()
	tr.WorkflowFailed(assert.AnError)

	status, err := tr.Status()
	assert.Equal(t, tracker.StatusFailed, status)
	assert.Equal(t, assert.AnError, err)
}

func TestResetClearsTerminalStatus(t *testing.T) {
	tr := tracker.New()
	tr.WorkflowFailed(assert.AnError)
	tr.Reset()

	status, err := tr.Status()
	assert.Equal(t, tracker.StatusCreated, status)
	assert.NoError(t, err)
}

// TestListenerPanicDoesNotPropagate: a panicking listener must not crash the
// publisher or prevent other listeners from receiving the event.
func TestListenerPanicDoesNotPropagate(t *testing.T) {
	tr := tracker.New()
	secondCalled := false
	tr.Subscribe(func(e tracker.Event) { panic("bad listener") })
	tr.Subscribe(func(e tracker.Event) { secondCalled = true })

	assert.NotPanics(t, func() {
		tr.NodeStarted("p", "n")
	})
	assert.True(t, secondCalled)
}

func TestNodeFailedDoesNotAloneFailWorkflow(t *testing.T) {
	tr := tracker.New()
	tr.WorkflowStarted()
	tr.NodeFailed("p", "n", assert.AnError)

	status, err := tr.Status()
	assert.Equal(t, tracker.StatusRunning, status)
	assert.NoError(t, err)
}
