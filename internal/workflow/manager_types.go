package workflow

import (
	"errors"

	"bobbin/internal/services"
	"bobbin/internal/source"
	"bobbin/internal/stage"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("run already in progress")

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Acquisition   stage.Handler
	Transcription stage.Handler
	Postprocess   stage.Handler
	Export        stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
}

// PipelineState is the coarse state reported by Status.
type PipelineState string

const (
	PipelineIdle       PipelineState = "idle"
	PipelineInProgress PipelineState = "in_progress"
	PipelineCompleted  PipelineState = "completed"
	PipelineFailed     PipelineState = "failed"
)

// SubmitOptions carries the caller's hints and filters for one submission.
type SubmitOptions struct {
	Hints      source.Hints
	Exclusions []string
	Cutoff     *source.Date
	Diarize    bool
}

// SubmitReport summarizes what a submission did with each candidate.
type SubmitReport struct {
	Added    []int64
	Metadata []string
	Excluded int
	Skipped  []services.Outcome
}

// RunSummary reports the jobs a run touched.
type RunSummary struct {
	Completed []int64
	FailedID  int64
	Reset     int64
}
