// Package stage defines the contract between the workflow manager and the
// four processing stages.
package stage

import (
	"context"

	"bobbin/internal/queue"
)

// Handler is one processing stage. Prepare validates the job before it is
// marked in progress for the stage; Execute does the work and records its
// outputs on the item.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health is a stage's readiness as reported by status.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Ready reports a stage that can run.
func Ready(name string) Health { return Health{Name: name, Ready: true} }

// NotReady reports a stage that cannot run and why.
func NotReady(name, detail string) Health { return Health{Name: name, Detail: detail} }
