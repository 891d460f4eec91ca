package task

import (
	"context"
	"log"
	"sync"
)

// Event is published on every task state transition.
type Event struct {
	TaskID string `json:"taskId"`
	Status Status `json:"status"`
	Task   Task   `json:"task"`
}

// Registry holds the lifecycle state of every task in the current session.
// All mutation goes through its methods under one mutex; reads hand out
// copies so callers never observe a half-applied transition. Terminal states
// are sticky: no mutator moves a task out of success or error.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	subs    map[int]chan Event
	nextSub int
}

func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
		subs:  make(map[int]chan Event),
	}
}

func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return snapshot(t), true
}

func (r *Registry) List() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		list = append(list, snapshot(t))
	}
	return list
}

// Subscribe returns a channel of transition events plus a cancel function.
// Slow consumers lose events rather than block the orchestrator.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, 16)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (r *Registry) add(t *Task) {
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.notifyLocked(t)
	r.mu.Unlock()
}

// remove deletes a task, returning its poll cancellation handle (nil when the
// task was unknown or had no pending poll).
func (r *Registry) remove(id string) (context.CancelFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	delete(r.tasks, id)
	return t.cancelFunc, true
}

// markProcessing records the external job id and moves the task to
// processing. The job id is written exactly once.
func (r *Registry) markProcessing(id, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.terminal() {
		return
	}
	if t.ExternalJobID == "" {
		t.ExternalJobID = jobID
	}
	t.Status = StatusProcessing
	r.notifyLocked(t)
}

// recordAttempt bumps the poll counter and reports the new value, or false
// when the task no longer exists (cancelled) or is already terminal.
func (r *Registry) recordAttempt(id string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.terminal() {
		return 0, false
	}
	t.Attempts++
	return t.Attempts, true
}

// markSuccess installs the full result list in one step.
func (r *Registry) markSuccess(id string, results []Result, degraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.terminal() {
		return
	}
	t.Status = StatusSuccess
	t.Results = results
	t.Degraded = degraded
	r.notifyLocked(t)
}

func (r *Registry) markError(id string, kind ErrorKind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.terminal() {
		return
	}
	t.Status = StatusError
	t.ErrorKind = kind
	t.ErrorDetail = detail
	r.notifyLocked(t)
}

func (r *Registry) notifyLocked(t *Task) {
	ev := Event{TaskID: t.ID, Status: t.Status, Task: snapshot(t)}
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("Dropping registry event for task %s: subscriber not keeping up", t.ID)
		}
	}
}

func snapshot(t *Task) Task {
	copied := *t
	copied.cancelFunc = nil
	if t.Results != nil {
		copied.Results = append([]Result(nil), t.Results...)
	}
	return copied
}
