package domain

import (
	"time"
)

// RunStats records the outcome of one ingestion run for one source.
// Immutable once the run completes; appended to run history.
type RunStats struct {
	// ID uniquely identifies the run
	ID string `json:"id" db:"id"`
	// Source is the source the run ingested
	Source string `json:"source" db:"source"`
	// RawCount is the number of raw records fetched
	RawCount int `json:"raw_count" db:"raw_count"`
	// NormalizedCount is the number of records surviving normalization
	// and validation
	NormalizedCount int `json:"normalized_count" db:"normalized_count"`
	// NewCount is the number of records classified as new
	NewCount int `json:"new_count" db:"new_count"`
	// UpdatedCount is the number of records classified as updated
	UpdatedCount int `json:"updated_count" db:"updated_count"`
	// UnchangedCount is the number of records classified as unchanged
	UnchangedCount int `json:"unchanged_count" db:"unchanged_count"`
	// ErrorCount is the number of records dropped or failed
	ErrorCount int `json:"error_count" db:"error_count"`
	// Errors holds the messages collected during the run
	Errors []string `json:"errors,omitempty" db:"-"`
	// StartedAt is when the run began
	StartedAt time.Time `json:"started_at" db:"started_at"`
	// Duration is how long the run took
	Duration time.Duration `json:"duration" db:"duration_ms"`
	// Success reports whether the run completed without a fatal error
	Success bool `json:"success" db:"success"`
}

// RecordError appends an error message and bumps the error count.
func (s *RunStats) RecordError(msg string) {
	s.Errors = append(s.Errors, msg)
	s.ErrorCount++
}

// JobStatus represents a scheduled job's state.
type JobStatus string

const (
	// JobScheduled means the job is waiting for its next activation.
	JobScheduled JobStatus = "scheduled"
	// JobRunning means an ingestion run is in flight for the job.
	JobRunning JobStatus = "running"
	// JobStopped means the job was manually stopped.
	JobStopped JobStatus = "stopped"
	// JobError means the last run failed and the job is cooling down.
	JobError JobStatus = "error"
)

// ScheduledJob tracks one recurring ingestion job owned by the scheduler.
type ScheduledJob struct {
	// Source is the source this job ingests
	Source string `json:"source"`
	// Interval is the resolved cadence after override and stagger
	Interval time.Duration `json:"interval"`
	// Status of the job
	Status JobStatus `json:"status"`
	// RunCount is the total number of completed runs
	RunCount int `json:"run_count"`
	// ErrorCount is the total number of failed runs
	ErrorCount int `json:"error_count"`
	// LastRunAt is when the job last started
	LastRunAt time.Time `json:"last_run_at,omitzero"`
	// LastSuccessAt is when the job last completed successfully
	LastSuccessAt time.Time `json:"last_success_at,omitzero"`
	// NextRunAt is when the job will next activate
	NextRunAt time.Time `json:"next_run_at,omitzero"`
	// LastError is the message from the most recent failure
	LastError string `json:"last_error,omitempty"`
	// EnteredErrorAt is when the job entered the error state
	EnteredErrorAt time.Time `json:"entered_error_at,omitzero"`
}
