// Package operations implements the operation manager: it registers
// long-running jobs, schedules them by priority, and tracks
// progress/cancellation/pause-resume for each.
package operations

import (
	"context"
	"time"
)

// Priority orders queued operations; higher-priority operations preempt
// slot allocation but never interrupt an already-running operation.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// State is one of the tagged-variant operation states.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Type names one of the operation kinds. The manager treats these as opaque
// labels; the façade maps each to its concrete engine/storage entry point.
type Type string

const (
	TypeProcessVideos         Type = "process_videos"
	TypeAnalyzeVideos         Type = "analyze_videos"
	TypeRegenerateThumbnails  Type = "regenerate_thumbnails"
	TypePopulateThumbnails    Type = "populate_thumbnails"
	TypeCleanThumbnails       Type = "clean_thumbnails"
	TypePopulateDatabase      Type = "populate_database"
	TypeOptimizeDatabase      Type = "optimize_database"
	TypeClearDatabase         Type = "clear_database"
	TypeBackupDatabase        Type = "backup_database"
	TypeAnalyzeCharacters     Type = "analyze_characters"
	TypeCleanFalsePositives   Type = "clean_false_positives"
	TypeVerifyIntegrity       Type = "verify_integrity"
)

// Operation is the manager's record of one job.
type Operation struct {
	ID              string
	Type            Type
	Priority        Priority
	State           State
	TotalItems      int
	ProcessedCount  int
	ProgressPercent float64
	Message         string
	StartedAt       *time.Time
	FinishedAt      *time.Time
	LastProgressAt  time.Time
	Error           string
	Result          any
}

// snapshot returns a value copy safe to hand to a caller without exposing
// the manager's internal pointer.
func (o *Operation) snapshot() Operation {
	cp := *o
	return cp
}

// Body is the function an operation runs under the manager's supervision.
// It cooperatively polls the Handle for cancellation/pause and reports
// progress through it; its return value becomes the operation's terminal
// result (nil error => completed, non-nil => failed, ErrCancelled => cancelled).
type Body func(ctx context.Context, h *Handle) (any, error)
