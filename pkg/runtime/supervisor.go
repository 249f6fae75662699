package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// RunHandle identifies one background workflow run
type RunHandle struct {
	ID        string    `json:"id"`
	Request   string    `json:"request"`
	StartedAt time.Time `json:"started_at"`

	done   chan struct{}
	report string
	err    error
}

// Done is closed when the run has finished.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// IsAlive reports whether the run is still executing.
func (h *RunHandle) IsAlive() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the run finishes and returns its report or error.
func (h *RunHandle) Wait() (string, error) {
	<-h.done
	return h.report, h.err
}

// RunSupervisor launches workflow runs in the background, at most one at a time.
type RunSupervisor struct {
	engine    WorkflowRunner
	log       *runlog.RunLog
	artifacts storage.ArtifactStore
	logger    logging.Logger
	baseCtx   context.Context

	mu      sync.Mutex
	active  bool
	current *RunHandle

	cronMu    sync.Mutex
	scheduler *cron.Cron
}

// NewRunSupervisor creates a supervisor. Runs inherit ctx's values; ctx is
// not used to cancel them.
func NewRunSupervisor(
	ctx context.Context,
	engine WorkflowRunner,
	log *runlog.RunLog,
	artifacts storage.ArtifactStore,
	logger logging.Logger,
) *RunSupervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &RunSupervisor{
		engine:    engine,
		log:       log,
		artifacts: artifacts,
		logger:    logger,
		baseCtx:   context.WithoutCancel(ctx),
	}
}

// StartIfIdle launches a run for request unless one is already active. It
// returns the new handle and true, or the active handle and false.
func (s *RunSupervisor) StartIfIdle(request string) (*RunHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return s.current, false
	}

	h := &RunHandle{
		ID:        uuid.New().String(),
		Request:   request,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.active = true
	s.current = h

	s.logger.Info("Starting workflow run", logging.F("run_id", h.ID))
	go s.execute(h)

	return h, true
}

func (s *RunSupervisor) execute(h *RunHandle) {
	defer func() {
		if r := recover(); r != nil {
			h.report = ""
			h.err = fmt.Errorf("workflow panicked: %v", r)
			s.logger.Error("Workflow run panicked", logging.F("run_id", h.ID), logging.F("panic", r))
		}
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		close(h.done)
	}()

	h.report, h.err = s.engine.RunWithID(s.baseCtx, h.ID, h.Request)
	if h.err != nil {
		s.logger.Error("Workflow run failed", logging.F("run_id", h.ID), logging.Err(h.err))
		return
	}
	s.logger.Info("Workflow run finished",
		logging.F("run_id", h.ID),
		logging.F("duration", time.Since(h.StartedAt).String()))
}

// IsAlive reports whether handle's run is still executing.
func (s *RunSupervisor) IsAlive(h *RunHandle) bool {
	return h.IsAlive()
}

// Active reports whether a run is in progress.
func (s *RunSupervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Current returns the most recently started handle, or nil.
func (s *RunSupervisor) Current() *RunHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ClearAll empties the run log and deletes every artifact. It is refused
// with ErrBusy while a run is active.
func (s *RunSupervisor) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrBusy
	}
	if err := s.log.Clear(); err != nil {
		return fmt.Errorf("clear run log: %w", err)
	}
	if err := s.artifacts.Clear(); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	s.logger.LogSystemEvent("cleared", nil)
	return nil
}

// Schedule starts request on a cron schedule. Both six field (with seconds)
// and standard five field specs are accepted. Ticks that find a run in
// progress are skipped.
func (s *RunSupervisor) Schedule(spec, request string) (cron.EntryID, error) {
	schedule, err := parseSchedule(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.scheduler == nil {
		s.scheduler = cron.New(cron.WithSeconds())
		s.scheduler.Start()
	}

	id := s.scheduler.Schedule(schedule, cron.FuncJob(func() {
		if h, started := s.StartIfIdle(request); !started {
			s.logger.Info("Skipping scheduled run, workflow busy", logging.F("active_run_id", h.ID))
		}
	}))
	s.logger.Info("Scheduled workflow run",
		logging.F("schedule", spec),
		logging.F("next", schedule.Next(time.Now()).Format(time.RFC3339)))
	return id, nil
}

// StopSchedules stops the scheduler and waits for running jobs to return.
// Runs already launched keep going.
func (s *RunSupervisor) StopSchedules() {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
	s.scheduler = nil
}

func parseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(spec)
	if err == nil {
		return schedule, nil
	}
	return cron.ParseStandard(spec)
}
