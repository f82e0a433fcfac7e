package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
)

// Defaults for the supervisor configuration.
const (
	defaultSweepInterval  = time.Minute
	defaultStuckThreshold = 30 * time.Minute
	defaultStaleThreshold = 24 * time.Hour
	defaultErrorCooldown  = 15 * time.Minute
	defaultDrainTimeout   = 30 * time.Second
)

// Scheduler errors.
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobRunning    = errors.New("job already running")
	ErrJobStopped    = errors.New("job is stopped")
	ErrNotStarted    = errors.New("scheduler not started")
	ErrDrainTimedOut = errors.New("drain timed out, in-flight runs abandoned")
)

// Runner executes one ingestion run for a source.
type Runner interface {
	Run(ctx context.Context, source string) (*domain.RunStats, error)
}

// Config holds supervisor settings.
type Config struct {
	// StaggerMinutes is the per-job offset added to cadence (jobIndex
	// multiples) so jobs never all fire together
	StaggerMinutes int
	// Overrides replaces a source's plugin-declared cadence (minutes)
	Overrides map[string]int
	// SweepInterval is how often the health sweep runs
	SweepInterval time.Duration
	// StuckThreshold flags jobs running beyond it as anomalies
	StuckThreshold time.Duration
	// StaleThreshold flags jobs whose last success is older
	StaleThreshold time.Duration
	// ErrorCooldown re-promotes errored jobs to scheduled after it
	ErrorCooldown time.Duration
	// DrainTimeout bounds how long Stop waits for in-flight runs
	DrainTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.SweepInterval == 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.StuckThreshold == 0 {
		c.StuckThreshold = defaultStuckThreshold
	}
	if c.StaleThreshold == 0 {
		c.StaleThreshold = defaultStaleThreshold
	}
	if c.ErrorCooldown == 0 {
		c.ErrorCooldown = defaultErrorCooldown
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
}

// Coordinator messages. All job state lives in the coordinator loop and
// is mutated only by message handling, keeping transitions race-free
// under concurrent ticks.
type (
	triggerMsg struct {
		source string
		manual bool
		reply  chan error
	}
	doneMsg struct {
		source string
		stats  *domain.RunStats
		err    error
	}
	sweepMsg  struct{}
	controlMsg struct {
		source string
		stop   bool
		reply  chan error
	}
	jobsReq struct {
		reply chan []domain.ScheduledJob
	}
	healthReq struct {
		reply chan HealthReport
	}
)

// jobState pairs a job record with its activation timer.
type jobState struct {
	job   domain.ScheduledJob
	timer *time.Timer
}

// Scheduler owns one recurring job per source. A single coordinating
// goroutine applies every state transition; timers and runs communicate
// with it exclusively through messages.
type Scheduler struct {
	logger  logger.Interface
	runner  Runner
	cfg     Config
	metrics *Metrics

	msgs   chan any
	ctx    context.Context
	cancel context.CancelFunc
	runCtx context.Context

	loopWG sync.WaitGroup
	runWG  sync.WaitGroup

	accepting atomic.Bool

	// jobs is owned by the coordinator goroutine after Start.
	jobs map[string]*jobState

	// health is rebuilt by each sweep; coordinator-owned.
	health HealthReport
}

// New creates a scheduler over the given plugin metadata. Cadence per
// job: override if present, else the plugin's schedule, plus stagger.
func New(metas []plugin.Metadata, runner Runner, cfg Config, log logger.Interface) (*Scheduler, error) {
	cfg.applyDefaults()

	s := &Scheduler{
		logger:  log.WithComponent("scheduler"),
		runner:  runner,
		cfg:     cfg,
		metrics: NewMetrics(),
		msgs:    make(chan any, 64),
		jobs:    make(map[string]*jobState),
	}

	for i := range metas {
		meta := &metas[i]
		interval, err := ResolveCadence(meta, cfg.Overrides[meta.Name], i, cfg.StaggerMinutes)
		if err != nil {
			return nil, err
		}
		s.jobs[meta.Name] = &jobState{
			job: domain.ScheduledJob{
				Source:   meta.Name,
				Interval: interval,
				Status:   domain.JobScheduled,
			},
		}
	}

	return s, nil
}

// Start launches the coordinator and health sweeper and arms every job's
// first activation. Runs inherit ctx, not the scheduler's internal
// context: stopping the scheduler abandons in-flight runs, it never
// force-kills them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.runCtx = ctx
	s.accepting.Store(true)

	// Arm initial activations before the coordinator starts consuming
	// messages so nothing else touches the jobs map concurrently.
	now := time.Now()
	for _, js := range s.jobs {
		s.armTimer(js, js.job.Interval)
		js.job.NextRunAt = now.Add(js.job.Interval)
	}

	s.loopWG.Add(1)
	go s.coordinate()

	s.loopWG.Add(1)
	go s.sweeper()

	s.logger.Info("Scheduler started",
		"jobs", len(s.jobs),
		"sweep_interval", s.cfg.SweepInterval,
	)
	return nil
}

// Stop stops accepting new triggers immediately, waits up to the drain
// timeout for in-flight runs, then shuts the coordinator down. Runs
// exceeding the timeout are abandoned and logged.
func (s *Scheduler) Stop() error {
	if s.cancel == nil {
		return ErrNotStarted
	}

	s.accepting.Store(false)
	s.logger.Info("Scheduler stopping, draining in-flight runs",
		"timeout", s.cfg.DrainTimeout,
	)

	drained := make(chan struct{})
	go func() {
		s.runWG.Wait()
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-time.After(s.cfg.DrainTimeout):
		drainErr = ErrDrainTimedOut
		s.logger.Warn("Drain timeout exceeded, abandoning in-flight runs")
	}

	s.cancel()
	s.loopWG.Wait()

	s.logger.Info("Scheduler stopped")
	return drainErr
}

// Trigger requests an immediate run for one source. A job already
// running ignores the trigger rather than overlapping itself.
func (s *Scheduler) Trigger(source string) error {
	reply := make(chan error, 1)
	if err := s.post(triggerMsg{source: source, manual: true, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// StartJob re-enables a stopped job.
func (s *Scheduler) StartJob(source string) error {
	reply := make(chan error, 1)
	if err := s.post(controlMsg{source: source, stop: false, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// StopJob stops one job. A running job finishes its current run and is
// not rescheduled.
func (s *Scheduler) StopJob(source string) error {
	reply := make(chan error, 1)
	if err := s.post(controlMsg{source: source, stop: true, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Jobs returns a snapshot of every job, sorted by source.
func (s *Scheduler) Jobs() ([]domain.ScheduledJob, error) {
	reply := make(chan []domain.ScheduledJob, 1)
	if err := s.post(jobsReq{reply: reply}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// Health returns the report assembled by the most recent sweep.
func (s *Scheduler) Health() (HealthReport, error) {
	reply := make(chan HealthReport, 1)
	if err := s.post(healthReq{reply: reply}); err != nil {
		return HealthReport{}, err
	}
	return <-reply, nil
}

// GetMetrics returns a snapshot of the scheduler counters.
func (s *Scheduler) GetMetrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// post delivers a message to the coordinator unless it has shut down.
func (s *Scheduler) post(msg any) error {
	if s.ctx == nil {
		return ErrNotStarted
	}
	// Checked first: a buffered send would otherwise race the done
	// channel and could accept a message no coordinator will read.
	select {
	case <-s.ctx.Done():
		return ErrNotStarted
	default:
	}
	select {
	case s.msgs <- msg:
		return nil
	case <-s.ctx.Done():
		return ErrNotStarted
	}
}

// coordinate is the single coordinating timeline: every state
// transition happens here.
func (s *Scheduler) coordinate() {
	defer s.loopWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.stopAllTimers()
			return
		case msg := <-s.msgs:
			s.handle(msg)
		}
	}
}

func (s *Scheduler) handle(msg any) {
	switch m := msg.(type) {
	case triggerMsg:
		err := s.handleTrigger(m.source, m.manual)
		if m.reply != nil {
			m.reply <- err
		}
	case doneMsg:
		s.handleDone(m)
	case sweepMsg:
		s.sweep()
	case controlMsg:
		err := s.handleControl(m.source, m.stop)
		if m.reply != nil {
			m.reply <- err
		}
	case jobsReq:
		m.reply <- s.snapshotJobs()
	case healthReq:
		m.reply <- s.health.clone()
	}
}

// handleTrigger starts a run for the job unless it is already running
// or stopped.
func (s *Scheduler) handleTrigger(source string, manual bool) error {
	js, ok := s.jobs[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, source)
	}

	switch js.job.Status {
	case domain.JobRunning:
		s.logger.Warn("Trigger ignored, job already running", "source", source)
		return ErrJobRunning
	case domain.JobStopped:
		if !manual {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrJobStopped, source)
	case domain.JobScheduled, domain.JobError:
		// Runnable.
	}

	if !s.accepting.Load() {
		return ErrNotStarted
	}

	js.stopTimer()
	js.job.Status = domain.JobRunning
	js.job.LastRunAt = time.Now()
	s.metrics.IncrementRunning()

	s.runWG.Add(1)
	go s.runJob(source)
	return nil
}

// runJob executes one run and reports back. Panics are caught at this
// boundary: a fatal job error marks the job errored, never the process.
func (s *Scheduler) runJob(source string) {
	defer s.runWG.Done()

	var (
		stats  *domain.RunStats
		runErr error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("job panicked: %v", r)
				s.logger.Error("Job panicked",
					"source", source,
					"panic", r,
				)
			}
		}()
		stats, runErr = s.runner.Run(s.runCtx, source)
	}()

	select {
	case s.msgs <- doneMsg{source: source, stats: stats, err: runErr}:
	case <-s.ctx.Done():
		s.logger.Warn("Run finished after scheduler shutdown, result dropped",
			"source", source,
		)
	}
}

// handleDone applies a run's outcome and re-arms the job.
func (s *Scheduler) handleDone(m doneMsg) {
	js, ok := s.jobs[m.source]
	if !ok {
		return
	}

	s.metrics.DecrementRunning()
	s.metrics.IncrementTotalRuns()
	now := time.Now()

	if m.stats != nil {
		s.metrics.ObserveDuration(m.stats.Duration)
	}

	// A stop issued mid-run wins over the outcome.
	if js.job.Status == domain.JobStopped {
		return
	}

	if m.err != nil {
		js.job.Status = domain.JobError
		js.job.ErrorCount++
		js.job.LastError = m.err.Error()
		js.job.EnteredErrorAt = now
		s.metrics.IncrementFailed()
		s.logger.Error("Job failed",
			"source", m.source,
			"error", m.err,
		)
		return
	}

	js.job.Status = domain.JobScheduled
	js.job.RunCount++
	js.job.LastSuccessAt = now
	js.job.LastError = ""
	js.job.NextRunAt = now.Add(js.job.Interval)
	s.armTimer(js, js.job.Interval)
	s.metrics.IncrementCompleted()

	s.logger.Info("Job completed",
		"source", m.source,
		"next_run_at", js.job.NextRunAt,
	)
}

// handleControl starts or stops one job.
func (s *Scheduler) handleControl(source string, stop bool) error {
	js, ok := s.jobs[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, source)
	}

	if stop {
		js.stopTimer()
		js.job.Status = domain.JobStopped
		s.logger.Info("Job stopped", "source", source)
		return nil
	}

	if js.job.Status != domain.JobStopped {
		return nil
	}
	js.job.Status = domain.JobScheduled
	js.job.NextRunAt = time.Now().Add(js.job.Interval)
	s.armTimer(js, js.job.Interval)
	s.logger.Info("Job started", "source", source)
	return nil
}

// sweep is the periodic supervisor tick: it flags stuck and stale jobs
// and re-promotes errored jobs past their cool-down.
func (s *Scheduler) sweep() {
	now := time.Now()
	report := HealthReport{SweptAt: now}

	for source, js := range s.jobs {
		switch js.job.Status {
		case domain.JobRunning:
			if now.Sub(js.job.LastRunAt) > s.cfg.StuckThreshold {
				// Reported, not force-killed: the work may be
				// legitimately slow.
				report.StuckJobs = append(report.StuckJobs, source)
				s.logger.Warn("Job running beyond stuck threshold",
					"source", source,
					"running_for", now.Sub(js.job.LastRunAt),
				)
			}

		case domain.JobError:
			if now.Sub(js.job.EnteredErrorAt) > s.cfg.ErrorCooldown {
				js.job.Status = domain.JobScheduled
				js.job.NextRunAt = now.Add(js.job.Interval)
				s.armTimer(js, js.job.Interval)
				s.logger.Info("Errored job re-promoted after cool-down",
					"source", source,
				)
			} else {
				report.ErroredJobs = append(report.ErroredJobs, source)
			}

		case domain.JobScheduled:
			if !js.job.LastSuccessAt.IsZero() &&
				now.Sub(js.job.LastSuccessAt) > s.cfg.StaleThreshold {
				report.StaleJobs = append(report.StaleJobs, source)
			}

		case domain.JobStopped:
			// Nothing to supervise.
		}
	}

	report.sortAll()
	s.health = report
	s.metrics.UpdateLastSweep()
}

// sweeper posts the periodic supervisor tick.
func (s *Scheduler) sweeper() {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			select {
			case s.msgs <- sweepMsg{}:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// armTimer schedules the job's next activation through the message loop.
func (s *Scheduler) armTimer(js *jobState, delay time.Duration) {
	source := js.job.Source
	js.stopTimer()
	js.timer = time.AfterFunc(delay, func() {
		select {
		case s.msgs <- triggerMsg{source: source}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Scheduler) stopAllTimers() {
	for _, js := range s.jobs {
		js.stopTimer()
	}
}

func (s *Scheduler) snapshotJobs() []domain.ScheduledJob {
	jobs := make([]domain.ScheduledJob, 0, len(s.jobs))
	for _, js := range s.jobs {
		jobs = append(jobs, js.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Source < jobs[j].Source })
	return jobs
}

func (js *jobState) stopTimer() {
	if js.timer != nil {
		js.timer.Stop()
		js.timer = nil
	}
}
