package scheduler

import (
	"sort"
	"time"
)

// HealthReport is the outcome of one health sweep.
type HealthReport struct {
	// SweptAt is when the sweep ran; zero before the first sweep.
	SweptAt time.Time `json:"swept_at"`
	// StuckJobs have been running beyond the stuck threshold.
	StuckJobs []string `json:"stuck_jobs,omitempty"`
	// StaleJobs have not succeeded within the stale threshold.
	StaleJobs []string `json:"stale_jobs,omitempty"`
	// ErroredJobs are in error and still inside their cool-down.
	ErroredJobs []string `json:"errored_jobs,omitempty"`
}

// Healthy reports whether the sweep found no anomalies.
func (r HealthReport) Healthy() bool {
	return len(r.StuckJobs) == 0 && len(r.StaleJobs) == 0 && len(r.ErroredJobs) == 0
}

func (r HealthReport) clone() HealthReport {
	out := HealthReport{SweptAt: r.SweptAt}
	out.StuckJobs = append(out.StuckJobs, r.StuckJobs...)
	out.StaleJobs = append(out.StaleJobs, r.StaleJobs...)
	out.ErroredJobs = append(out.ErroredJobs, r.ErroredJobs...)
	return out
}

func (r *HealthReport) sortAll() {
	sort.Strings(r.StuckJobs)
	sort.Strings(r.StaleJobs)
	sort.Strings(r.ErroredJobs)
}
