package model

import (
	"time"

	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// RunStatus is the state of a run or of one of its steps
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// StepName identifies a pipeline step
type StepName string

const (
	StepCheckout StepName = "checkout"
	StepSetup    StepName = "setup"
	StepInstall  StepName = "install"
	StepBuild    StepName = "build"
	StepPublish  StepName = "publish"
)

// StepRecord is the outcome of one step of a run
type StepRecord struct {
	Name       StepName  `json:"name" firestore:"name"`
	Status     RunStatus `json:"status" firestore:"status"`
	StartedAt  time.Time `json:"started_at" firestore:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" firestore:"finished_at"`
	Error      string    `json:"error,omitempty" firestore:"error"`
}

// Run is one execution of the pipeline for one trigger event
type Run struct {
	ID         types.RunID  `json:"id" firestore:"id"`
	Tag        string       `json:"tag" firestore:"tag"`
	CommitSHA  string       `json:"commit_sha" firestore:"commit_sha"`
	Repository Repository   `json:"repository" firestore:"repository"`
	Status     RunStatus    `json:"status" firestore:"status"`
	Steps      []StepRecord `json:"steps" firestore:"steps"`
	Artifacts  []string     `json:"artifacts,omitempty" firestore:"artifacts"`
	Error      string       `json:"error,omitempty" firestore:"error"`
	CreatedAt  time.Time    `json:"created_at" firestore:"created_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty" firestore:"finished_at"`
}

// NewRun creates a running Run for a matched tag
func NewRun(tag string, ev *TriggerEvent, now time.Time) *Run {
	return &Run{
		ID:         types.NewRunID(),
		Tag:        tag,
		CommitSHA:  ev.CommitSHA,
		Repository: ev.Repository,
		Status:     RunStatusRunning,
		CreatedAt:  now,
	}
}

// StartStep appends a running record for step and returns it
func (x *Run) StartStep(name StepName, now time.Time) *StepRecord {
	x.Steps = append(x.Steps, StepRecord{
		Name:      name,
		Status:    RunStatusRunning,
		StartedAt: now,
	})
	return &x.Steps[len(x.Steps)-1]
}

// Finish closes the run. A nil err marks it succeeded.
func (x *Run) Finish(err error, now time.Time) {
	x.FinishedAt = now
	if err != nil {
		x.Status = RunStatusFailed
		x.Error = err.Error()
		return
	}
	x.Status = RunStatusSucceeded
}

// FailedStep returns the name of the step that failed, if any
func (x *Run) FailedStep() (StepName, bool) {
	for _, step := range x.Steps {
		if step.Status == RunStatusFailed {
			return step.Name, true
		}
	}
	return "", false
}
