// Package scheduler owns one recurring ingestion job per source on an
// independent, staggered cadence, with health monitoring and automatic
// recovery of errored jobs.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/gigharvest/internal/plugin"
)

// minCadence floors the resolved cadence so a misconfigured source can
// never hot-loop.
const minCadence = time.Minute

// ResolveCadence computes a job's effective interval: a cron expression
// when the plugin declares one, otherwise its interval minutes, with a
// per-job stagger offset (jobIndex * stagger minutes) added so jobs for
// different sources never all fire together.
func ResolveCadence(meta *plugin.Metadata, overrideMinutes, jobIndex, staggerMinutes int) (time.Duration, error) {
	var base time.Duration

	switch {
	case overrideMinutes > 0:
		base = time.Duration(overrideMinutes) * time.Minute
	case meta.Schedule != "":
		interval, err := cronInterval(meta.Schedule)
		if err != nil {
			return 0, fmt.Errorf("source %s: %w", meta.Name, err)
		}
		base = interval
	default:
		base = time.Duration(meta.ScheduleMinutes) * time.Minute
	}

	base += time.Duration(jobIndex*staggerMinutes) * time.Minute

	if base < minCadence {
		base = minCadence
	}
	return base, nil
}

// cronInterval reduces a standard 5-field cron expression to its
// effective interval: the gap between its next two activations.
func cronInterval(expr string) (time.Duration, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	first := sched.Next(time.Now())
	second := sched.Next(first)
	return second.Sub(first), nil
}
