// Package otelobs records Merlin's installer signals into OpenTelemetry.
package otelobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/merlin-labs/merlin/exec"
)

// InstallObserver records executor observations as metrics and spans.
type InstallObserver struct {
	tracer trace.Tracer

	steps    metric.Int64Counter
	installs metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewInstallObserver creates an observer bound to the provided meter/tracer.
func NewInstallObserver(meter metric.Meter, tracer trace.Tracer) (*InstallObserver, error) {
	steps, err := meter.Int64Counter(
		"merlin.install.steps",
		metric.WithDescription("Number of executed plan steps"),
	)
	if err != nil {
		return nil, err
	}
	installs, err := meter.Int64Counter(
		"merlin.install.runs",
		metric.WithDescription("Number of finished install attempts"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"merlin.install.step.latency",
		metric.WithDescription("Plan step latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InstallObserver{
		tracer:   tracer,
		steps:    steps,
		installs: installs,
		latency:  latency,
	}, nil
}

// ObserveStep records one executed plan step.
func (o *InstallObserver) ObserveStep(observation exec.StepObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.Int("step_index", observation.StepIndex),
		attribute.String("kind", string(observation.Kind)),
		attribute.String("confidence", string(observation.Confidence)),
		attribute.Bool("success", observation.Success),
	}
	if observation.TimedOut {
		attrs = append(attrs, attribute.Bool("timed_out", true))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.steps.Add(ctx, 1, options)
	o.latency.Record(ctx, float64(time.Duration(observation.DurationMS)*time.Millisecond)/float64(time.Second), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "install.step", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, "step failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveInstall records one finished install attempt.
func (o *InstallObserver) ObserveInstall(observation exec.InstallObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.String("status", string(observation.Status)),
		attribute.Int("steps", observation.Steps),
	}
	if observation.FailedStep >= 0 {
		attrs = append(attrs, attribute.Int("failed_step", observation.FailedStep))
	}

	o.installs.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

var _ exec.Observer = (*InstallObserver)(nil)
