package provision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/inventory"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/task"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/HomePanel/backend/internal/providers/installer"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnknownServerType = errors.New("unknown server type")
	ErrDuplicateName     = errors.New("server with this name already exists")
)

// StepError records which step of an installation failed
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Downloader fetches an artifact with percentage progress
type Downloader interface {
	Download(ctx context.Context, url, dest string, progress func(pct int)) (int64, error)
}

// Extractor unpacks an archive into a directory
type Extractor interface {
	Extract(ctx context.Context, archive, dest string) (int, error)
}

// CommandRunner runs one external command to completion
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (*installer.CommandResult, error)
}

// Request asks for a new game server
type Request struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Port int    `json:"port"`
	RAM  int    `json:"ram,omitempty"`
}

// Options configures the runner
type Options struct {
	BaseDir    string
	Locale     string
	DefaultRAM int
}

// Deps are the runner's collaborators
type Deps struct {
	Tasks      *task.Registry
	Inventory  *inventory.Store
	Catalog    *Catalog
	Downloader Downloader
	Extractor  Extractor
	Commands   CommandRunner
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Runner starts installations in the background and reports their
// progress through the task registry.
type Runner struct {
	tasks      *task.Registry
	inventory  *inventory.Store
	catalog    *Catalog
	downloader Downloader
	extractor  Extractor
	commands   CommandRunner
	marker     func(dir string, patterns []string) (int, error)

	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics

	wg sync.WaitGroup
}

// NewRunner creates a runner
func NewRunner(deps Deps, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultRAM <= 0 {
		opts.DefaultRAM = 4
	}
	if opts.Locale == "" {
		opts.Locale = "de"
	}
	return &Runner{
		tasks:      deps.Tasks,
		inventory:  deps.Inventory,
		catalog:    deps.Catalog,
		downloader: deps.Downloader,
		extractor:  deps.Extractor,
		commands:   deps.Commands,
		marker:     installer.MarkExecutable,
		opts:       opts,
		logger:     logger,
	}
}

// WithMetrics adds task metrics
func (r *Runner) WithMetrics(m *monitoring.Metrics) *Runner {
	r.metrics = m
	return r
}

// Create validates req, records the server and starts its installation.
// Nothing is created when validation fails.
func (r *Runner) Create(ctx context.Context, req Request) (string, error) {
	req.Type = strings.TrimSpace(req.Type)
	req.Name = strings.TrimSpace(req.Name)

	if req.Type == "" || req.Name == "" || req.Port == 0 {
		return "", fmt.Errorf("%w: type, name and port are required", ErrInvalidRequest)
	}
	if !validName.MatchString(req.Name) {
		return "", fmt.Errorf("%w: name %q may only contain letters, digits, '.', '_' and '-'", ErrInvalidRequest, req.Name)
	}
	if req.Port < 1 || req.Port > 65535 {
		return "", fmt.Errorf("%w: port %d out of range", ErrInvalidRequest, req.Port)
	}
	if req.RAM == 0 {
		req.RAM = r.opts.DefaultRAM
	}
	if req.RAM < 1 || req.RAM > 256 {
		return "", fmt.Errorf("%w: ram %d out of range", ErrInvalidRequest, req.RAM)
	}

	prov, ok := provisioners[req.Type]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownServerType, req.Type)
	}
	spec, ok := r.catalog.Spec(req.Type)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownServerType, req.Type)
	}

	if r.inventory.Exists(req.Name) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateName, req.Name)
	}

	dir := filepath.Join(r.opts.BaseDir, req.Name)
	_, err := r.inventory.Create(inventory.Record{
		Type:       req.Type,
		Name:       req.Name,
		Port:       req.Port,
		RAM:        req.RAM,
		Status:     inventory.StatusInstalling,
		Directory:  dir,
		ConfigFile: filepath.Join(dir, spec.ConfigFile),
	})
	if errors.Is(err, inventory.ErrExists) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateName, req.Name)
	}
	if err != nil {
		return "", err
	}

	snap := r.tasks.Create(req.Name, req.Type)
	if err := r.inventory.SetTask(req.Name, snap.ID); err != nil {
		r.logger.Warn("Failed to link task to server", zap.String("server", req.Name), zap.Error(err))
	}

	j := &job{
		runner: r,
		kind:   req.Type,
		spec:   spec,
		data: templateData{
			Name: req.Name,
			Dir:  dir,
			Port: req.Port,
			RAM:  req.RAM,
			Spec: spec,
		},
	}

	if r.metrics != nil {
		r.metrics.ProvisionStarted()
	}
	r.logger.Info("Provisioning started",
		zap.String("task_id", snap.ID),
		zap.String("type", req.Type),
		zap.String("server", req.Name),
	)

	// The installation outlives the request that started it.
	r.wg.Add(1)
	go r.run(context.WithoutCancel(ctx), snap.ID, j, prov.steps())

	return snap.ID, nil
}

func (r *Runner) run(ctx context.Context, taskID string, j *job, steps []step) {
	defer r.wg.Done()
	start := time.Now()

	phase := task.PhaseFailed
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Provisioning panicked", zap.String("task_id", taskID), zap.Any("panic", rec))
			r.fail(taskID, fmt.Sprintf("%s: %v", localize(r.opts.Locale, msgInternal), rec))
			phase = task.PhaseFailed
		}
		r.finish(taskID, j, phase, time.Since(start))
	}()

	if err := r.execute(ctx, taskID, j, steps); err != nil {
		r.logger.Warn("Provisioning failed", zap.String("task_id", taskID), zap.Error(err))
		r.fail(taskID, err.Error())
		return
	}

	if err := r.tasks.Complete(taskID, localize(r.opts.Locale, msgComplete)); err != nil {
		r.logger.Error("Failed to complete task", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	phase = task.PhaseComplete
}

func (r *Runner) execute(ctx context.Context, taskID string, j *job, steps []step) error {
	for i, s := range steps {
		message := localize(r.opts.Locale, s.message)
		if err := r.tasks.Advance(taskID, s.progress, message); err != nil {
			return err
		}

		// Download progress is spread over the gap up to the next step.
		hi := 100
		if i+1 < len(steps) {
			hi = steps[i+1].progress
		}
		lo := s.progress
		j.download = func(pct int) {
			p := lo + (hi-lo)*pct/100
			if p >= hi {
				p = hi - 1
			}
			_ = r.tasks.Advance(taskID, p, message)
		}

		if err := s.run(ctx, j); err != nil {
			return &StepError{Step: message, Err: err}
		}
	}
	return nil
}

func (r *Runner) fail(taskID, message string) {
	if err := r.tasks.Fail(taskID, message); err != nil && !errors.Is(err, task.ErrTerminal) {
		r.logger.Error("Failed to record task failure", zap.String("task_id", taskID), zap.Error(err))
	}
}

// finish moves the inventory record out of installing
func (r *Runner) finish(taskID string, j *job, phase task.Phase, elapsed time.Duration) {
	status := inventory.StatusError
	if phase == task.PhaseComplete {
		status = inventory.StatusStopped
	}
	if err := r.inventory.SetStatus(j.data.Name, status); err != nil {
		r.logger.Error("Failed to update server status", zap.String("server", j.data.Name), zap.Error(err))
	}

	if r.metrics != nil {
		r.metrics.ProvisionFinished(j.kind, string(phase), elapsed)
	}
	r.logger.Info("Provisioning finished",
		zap.String("task_id", taskID),
		zap.String("phase", string(phase)),
		zap.Duration("elapsed", elapsed),
	)
}

// Status returns the task snapshot, with a localized message for IDs the
// registry does not know.
func (r *Runner) Status(taskID string) task.Snapshot {
	snap := r.tasks.Get(taskID)
	if snap.Phase == task.PhaseUnknown {
		snap.Message = localize(r.opts.Locale, msgNotFound)
	}
	return snap
}

// Servers lists the inventory
func (r *Runner) Servers() []inventory.Record {
	return r.inventory.List()
}

// ActiveTasks counts installations not yet finished
func (r *Runner) ActiveTasks() int {
	return r.tasks.Active()
}

// StartedMessage is the localized acknowledgement for a new installation
func (r *Runner) StartedMessage() string {
	return localize(r.opts.Locale, msgStarted)
}

// Wait blocks until every background installation has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}
