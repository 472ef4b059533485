// Package tracker implements the Event / State Tracker: an in-process
// subscription fan-out of lifecycle events, plus per-workflow counters and
// status.
package tracker

import (
	"sync"
)

// EventType enumerates the lifecycle events the Tracker publishes.
type EventType string

const (
	EventNodeStarted        EventType = "nodeStarted"
	EventNodeCompleted      EventType = "nodeCompleted"
	EventNodeFailed         EventType = "nodeFailed"
	EventWorkflowStarted    EventType = "workflowStarted"
	EventWorkflowFailed     EventType = "workflowFailed"
	EventWorkflowCompleted  EventType = "workflowCompleted"
	EventRunnerRegistered   EventType = "runnerRegistered"
	EventRunnerUnregistered EventType = "runnerUnregistered"
)

// Event is the payload delivered to listeners.
type Event struct {
	Type       EventType
	NodeID     string
	ProducerID string
	Route      string
	Data       map[string]interface{}
	Err        error
}

// Status is the workflow's coarse lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Listener receives events. Delivery is best-effort; the Tracker recovers a
// panicking listener, so a misbehaving subscriber cannot be fatal to the
// engine.
type Listener func(Event)

// Tracker is the in-process Event/State Tracker. One Tracker is owned per
// Engine instance; there is no process-wide singleton.
type Tracker struct {
	mu sync.Mutex

	listeners []Listener

	totalNodes     int
	startedCount   int
	completedCount int
	failedCount    int
	perNodeStatus  map[string]EventType

	registeredRunners   map[string]bool
	inProgress          map[string]bool
	status              Status
	lastErr             error
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		perNodeStatus:     make(map[string]EventType),
		registeredRunners: make(map[string]bool),
		inProgress:        make(map[string]bool),
		status:            StatusCreated,
	}
}

// Subscribe registers a listener. Delivery is best-effort and ordered per
// producer.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// SetTotalNodes records the total node count for this workflow load.
func (t *Tracker) SetTotalNodes(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalNodes = n
}

// RegisterRunner marks producerID as an active Runner.
func (t *Tracker) RegisterRunner(producerID string) {
	t.mu.Lock()
	t.registeredRunners[producerID] = true
	if t.status == StatusCreated {
		t.status = StatusRunning
	}
	t.mu.Unlock()
	t.publish(Event{Type: EventRunnerRegistered, ProducerID: producerID})
}

// UnregisterRunner marks producerID's Runner as stopped, and emits
// workflowCompleted once every registered Runner has unregistered and no
// node is in progress.
func (t *Tracker) UnregisterRunner(producerID string) {
	t.mu.Lock()
	delete(t.registeredRunners, producerID)
	// The producer's final invocation (the one yielding ExecutionCompleted)
	// emits nodeStarted but no nodeCompleted; a stopped Runner's producer is
	// no longer in progress.
	delete(t.inProgress, producerID)
	done := len(t.registeredRunners) == 0 && len(t.inProgress) == 0
	if done && t.status == StatusRunning {
		t.status = StatusSucceeded
	}
	t.mu.Unlock()
	t.publish(Event{Type: EventRunnerUnregistered, ProducerID: producerID})
	if done {
		t.publish(Event{Type: EventWorkflowCompleted})
	}
}

// NodeStarted records a node entering execution.
func (t *Tracker) NodeStarted(producerID, nodeID string) {
	t.mu.Lock()
	t.startedCount++
	t.inProgress[nodeID] = true
	t.perNodeStatus[nodeID] = EventNodeStarted
	t.mu.Unlock()
	t.publish(Event{Type: EventNodeStarted, NodeID: nodeID, ProducerID: producerID})
}

// NodeCompleted records a node's successful completion.
func (t *Tracker) NodeCompleted(producerID, nodeID string, data map[string]interface{}, route string) {
	t.mu.Lock()
	t.completedCount++
	delete(t.inProgress, nodeID)
	t.perNodeStatus[nodeID] = EventNodeCompleted
	t.mu.Unlock()
	t.publish(Event{Type: EventNodeCompleted, NodeID: nodeID, ProducerID: producerID, Data: data, Route: route})
}

// NodeFailed records a node-level failure. A node-level failure never
// transitions the workflow status to failed on its own; only an unhandled
// Runner failure does, via WorkflowFailed.
func (t *Tracker) NodeFailed(producerID, nodeID string, err error) {
	t.mu.Lock()
	t.failedCount++
	delete(t.inProgress, nodeID)
	t.perNodeStatus[nodeID] = EventNodeFailed
	t.mu.Unlock()
	t.publish(Event{Type: EventNodeFailed, NodeID: nodeID, ProducerID: producerID, Err: err})
}

// WorkflowStarted marks the overall run as started.
func (t *Tracker) WorkflowStarted() {
	t.mu.Lock()
	t.status = StatusRunning
	t.mu.Unlock()
	t.publish(Event{Type: EventWorkflowStarted})
}

// WorkflowFailed marks the workflow as failed. The terminal error is
// retained until the next Load clears it.
func (t *Tracker) WorkflowFailed(err error) {
	t.mu.Lock()
	t.status = StatusFailed
	t.lastErr = err
	t.mu.Unlock()
	t.publish(Event{Type: EventWorkflowFailed, Err: err})
}

// Reset clears counters and terminal status on a fresh load.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusCreated
	t.lastErr = nil
	t.startedCount, t.completedCount, t.failedCount = 0, 0, 0
	t.perNodeStatus = make(map[string]EventType)
	t.registeredRunners = make(map[string]bool)
	t.inProgress = make(map[string]bool)
}

// Status returns the current workflow status and its terminal error, if any.
func (t *Tracker) Status() (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.lastErr
}

// Counters returns the total/started/completed/failed counters.
func (t *Tracker) Counters() (total, started, completed, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalNodes, t.startedCount, t.completedCount, t.failedCount
}

func (t *Tracker) publish(evt Event) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		t.deliver(l, evt)
	}
}

// deliver recovers a panicking listener so a bad subscriber can't take down
// the engine.
func (t *Tracker) deliver(l Listener, evt Event) {
	defer func() { recover() }()
	l(evt)
}
