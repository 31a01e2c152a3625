package jobregistry

import (
	"time"

	"github.com/repomotion/repomotion/pkg/render"
)

// Step is the lifecycle stage of a visualization job.
//
// NOTE: The numeric values are part of the status API contract and are
// what pollers key their progress display off.
type Step int

const (
	StepInitializing Step = 1
	StepAnalyzing    Step = 2
	StepGenerating   Step = 3
)

func (s Step) String() string {
	switch s {
	case StepInitializing:
		return "initializing_project"
	case StepAnalyzing:
		return "analyzing_history"
	case StepGenerating:
		return "generating_visualization"
	default:
		return "unknown"
	}
}

// Job is one visualization request's tracked state. VideoURL and Error
// are mutually exclusive; once either is set the job is terminal and is
// never mutated again.
type Job struct {
	ID        string          `json:"job_id"`
	RepoURL   string          `json:"repo_url"`
	Step      Step            `json:"step"`
	VideoURL  string          `json:"video_url,omitempty"`
	Error     string          `json:"error,omitempty"`
	Settings  render.Resolved `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

// Terminal reports whether the job has reached an end state.
func (j *Job) Terminal() bool {
	return j.VideoURL != "" || j.Error != ""
}

// StopResult is the outcome of a stop request.
type StopResult int

const (
	StopNotFound StopResult = iota
	StopAlreadyTerminal
	Stopped
)

// StoppedByUserMessage is the terminal error recorded for an external
// stop request.
const StoppedByUserMessage = "stopped by user"
