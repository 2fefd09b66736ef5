package workflow

import (
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// StateObserver receives a snapshot whenever an agent's execution state
// changes. Observers run on the writer's goroutine and must not block.
type StateObserver func(agentID string, state core.WorkflowExecutionState)

// StateStore is the process-wide map from agent id to live execution state.
// Writers are the workflow executor and the cancellation path; any component
// may read. Terminal states linger for a grace delay before being cleared so
// observers have a chance to read them.
type StateStore struct {
	mu        sync.Mutex
	states    map[string]core.WorkflowExecutionState
	timers    map[string]*time.Timer
	observers map[uint64]StateObserver
	nextObsID uint64
}

// NewStateStore constructs an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		states:    make(map[string]core.WorkflowExecutionState),
		timers:    make(map[string]*time.Timer),
		observers: make(map[uint64]StateObserver),
	}
}

// Set replaces an agent's state and notifies observers. Any pending deferred
// clear for the agent is dropped, so a new run started inside the grace
// window is not wiped by the previous run's timer.
func (s *StateStore) Set(agentID string, state core.WorkflowExecutionState) {
	s.mu.Lock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
	s.states[agentID] = state.Clone()
	observers := s.observersLocked()
	s.mu.Unlock()

	snapshot := state.Clone()
	for _, obs := range observers {
		obs(agentID, snapshot)
	}
}

// Clear removes an agent's state immediately, resetting it to idle.
func (s *StateStore) Clear(agentID string) {
	s.mu.Lock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
	delete(s.states, agentID)
	observers := s.observersLocked()
	s.mu.Unlock()

	idle := core.IdleExecutionState()
	for _, obs := range observers {
		obs(agentID, idle)
	}
}

// ClearAfter schedules a Clear once the grace delay elapses. A subsequent
// Set or Clear for the same agent drops the schedule.
func (s *StateStore) ClearAfter(agentID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
	}
	s.timers[agentID] = time.AfterFunc(delay, func() { s.Clear(agentID) })
}

// Get returns the agent's state, defaulting to idle when absent.
func (s *StateStore) Get(agentID string) core.WorkflowExecutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[agentID]; ok {
		return state.Clone()
	}
	return core.IdleExecutionState()
}

// IsRunning reports whether the agent has a live run.
func (s *StateStore) IsRunning(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[agentID].IsRunning
}

// AnyRunning reports whether any tracked agent has a live run.
func (s *StateStore) AnyRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.states {
		if state.IsRunning {
			return true
		}
	}
	return false
}

// Subscribe registers an observer for state changes across all agents. The
// returned function removes the subscription.
func (s *StateStore) Subscribe(obs StateObserver) func() {
	s.mu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers[id] = obs
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// observersLocked snapshots the observer set; caller must hold the lock.
func (s *StateStore) observersLocked() []StateObserver {
	observers := make([]StateObserver, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	return observers
}
