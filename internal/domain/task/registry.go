package task

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/HomePanel/backend/internal/shared/id"
)

var (
	ErrNotFound = errors.New("task not found")
	ErrTerminal = errors.New("task already finished")
)

// Phase is the lifecycle state of a task
type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseRunning  Phase = "running"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"

	// PhaseUnknown is reported for IDs the registry has never seen or has
	// already swept. It is never stored.
	PhaseUnknown Phase = "unknown"
)

// Terminal reports whether no further transitions are possible
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Snapshot is a copy of a task's state at one instant
type Snapshot struct {
	ID        string    `json:"taskId"`
	Target    string    `json:"target,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Phase     Phase     `json:"phase"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type entry struct {
	mu   sync.Mutex
	snap Snapshot
}

// Registry holds provisioning task state. The runner that created a task
// is its only writer; any number of readers poll it.
type Registry struct {
	tasks     sync.Map // map[string]*entry
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry creates a registry. Terminal tasks older than retention are
// removed by Sweep; zero keeps them forever.
func NewRegistry(retention time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Create seeds a pending task for target
func (r *Registry) Create(target, kind string) Snapshot {
	now := r.now()
	e := &entry{snap: Snapshot{
		ID:        id.NewTaskID(target).String(),
		Target:    target,
		Kind:      kind,
		Phase:     PhasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.tasks.Store(e.snap.ID, e)

	r.logger.Debug("Task created", zap.String("task_id", e.snap.ID), zap.String("kind", kind))
	return e.snap
}

// Advance moves a task to running with a new progress and message.
// Progress never goes backwards and is capped at 100.
func (r *Registry) Advance(taskID string, progress int, message string) error {
	return r.update(taskID, func(s *Snapshot) {
		s.Phase = PhaseRunning
		s.Progress = clamp(progress, s.Progress)
		s.Message = message
	})
}

// Complete marks a task finished successfully
func (r *Registry) Complete(taskID, message string) error {
	return r.update(taskID, func(s *Snapshot) {
		s.Phase = PhaseComplete
		s.Progress = 100
		s.Message = message
	})
}

// Fail marks a task failed. Progress stays where it stopped.
func (r *Registry) Fail(taskID, message string) error {
	return r.update(taskID, func(s *Snapshot) {
		s.Phase = PhaseFailed
		s.Message = message
	})
}

func (r *Registry) update(taskID string, apply func(*Snapshot)) error {
	v, ok := r.tasks.Load(taskID)
	if !ok {
		return ErrNotFound
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Phase.Terminal() {
		return ErrTerminal
	}
	apply(&e.snap)
	e.snap.UpdatedAt = r.now()
	return nil
}

// Get returns the current snapshot. Unknown IDs yield a snapshot in
// PhaseUnknown rather than an error.
func (r *Registry) Get(taskID string) Snapshot {
	v, ok := r.tasks.Load(taskID)
	if !ok {
		return Snapshot{ID: taskID, Phase: PhaseUnknown}
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// List returns every task, newest first
func (r *Registry) List() []Snapshot {
	var out []Snapshot
	r.tasks.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		out = append(out, e.snap)
		e.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Active counts tasks not yet in a terminal phase
func (r *Registry) Active() int {
	n := 0
	r.tasks.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.snap.Phase.Terminal() {
			n++
		}
		e.mu.Unlock()
		return true
	})
	return n
}

// Sweep drops terminal tasks whose last update is older than the
// retention window.
func (r *Registry) Sweep(now time.Time) int {
	if r.retention <= 0 {
		return 0
	}
	removed := 0
	r.tasks.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		expired := e.snap.Phase.Terminal() && now.Sub(e.snap.UpdatedAt) > r.retention
		e.mu.Unlock()
		if expired {
			r.tasks.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		r.logger.Debug("Swept finished tasks", zap.Int("count", removed))
	}
	return removed
}

// Run sweeps on an interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			r.Sweep(t)
		}
	}
}

func clamp(progress, current int) int {
	if progress > 100 {
		progress = 100
	}
	if progress < current {
		return current
	}
	return progress
}
