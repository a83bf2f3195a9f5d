package stage

import (
	"context"
	"log/slog"
)

// Handler describes the contract the pipeline needs from each stage.
type Handler interface {
	Prepare(context.Context, *Work) error
	Execute(context.Context, *Work) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the stage-scoped logger before Prepare.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Health reports whether a stage has the collaborators it needs.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy returns a ready record for name.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy returns a not-ready record explaining what is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// NotReady filters health down to the stages that cannot run.
func NotReady(health []Health) []Health {
	var out []Health
	for _, h := range health {
		if !h.Ready {
			out = append(out, h)
		}
	}
	return out
}
