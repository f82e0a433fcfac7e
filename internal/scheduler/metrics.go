package scheduler

import (
	"sync"
	"time"
)

// Metrics tracks scheduler activity. All methods are safe for
// concurrent use.
type Metrics struct {
	mu sync.RWMutex

	runningJobs   int64
	totalRuns     int64
	completedRuns int64
	failedRuns    int64
	totalDuration time.Duration
	lastSweepAt   time.Time
	startedAt     time.Time
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	RunningJobs     int64         `json:"running_jobs"`
	TotalRuns       int64         `json:"total_runs"`
	CompletedRuns   int64         `json:"completed_runs"`
	FailedRuns      int64         `json:"failed_runs"`
	AverageDuration time.Duration `json:"average_duration"`
	LastSweepAt     time.Time     `json:"last_sweep_at"`
	Uptime          time.Duration `json:"uptime"`
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// IncrementRunning records a run starting.
func (m *Metrics) IncrementRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningJobs++
}

// DecrementRunning records a run finishing.
func (m *Metrics) DecrementRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runningJobs > 0 {
		m.runningJobs--
	}
}

// IncrementTotalRuns records a completed run attempt, success or not.
func (m *Metrics) IncrementTotalRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRuns++
}

// IncrementCompleted records a successful run.
func (m *Metrics) IncrementCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedRuns++
}

// IncrementFailed records a failed run.
func (m *Metrics) IncrementFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedRuns++
}

// ObserveDuration accumulates run duration for the average.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDuration += d
}

// UpdateLastSweep records a completed health sweep.
func (m *Metrics) UpdateLastSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSweepAt = time.Now()
}

// Snapshot returns a consistent copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg time.Duration
	if m.totalRuns > 0 {
		avg = m.totalDuration / time.Duration(m.totalRuns)
	}

	return MetricsSnapshot{
		RunningJobs:     m.runningJobs,
		TotalRuns:       m.totalRuns,
		CompletedRuns:   m.completedRuns,
		FailedRuns:      m.failedRuns,
		AverageDuration: avg,
		LastSweepAt:     m.lastSweepAt,
		Uptime:          time.Since(m.startedAt),
	}
}
