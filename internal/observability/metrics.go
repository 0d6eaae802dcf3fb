package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the service's golden signals:
// - Latency: request and deployment durations
// - Traffic: request, deployment and step throughput
// - Errors: failed requests, deployments and callbacks
// - Saturation: deployments in flight
type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	DeploymentDuration    metric.Float64Histogram
	DeploymentsTotal      metric.Int64Counter
	DeploymentErrorsTotal metric.Int64Counter
	DeploymentsActive     metric.Int64UpDownCounter

	StepDuration metric.Float64Histogram
	StepsTotal   metric.Int64Counter

	CallbackDuration  metric.Float64Histogram
	CallbackDelivered metric.Int64Counter
	CallbackFailed    metric.Int64Counter
	CallbackDropped   metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("deployd")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DeploymentDuration, err = meter.Float64Histogram(
		"deployment_duration_seconds",
		metric.WithDescription("Deployment execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 900, 1800, 3600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DeploymentsTotal, err = meter.Int64Counter(
		"deployments_total",
		metric.WithDescription("Total number of deployments submitted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DeploymentErrorsTotal, err = meter.Int64Counter(
		"deployment_errors_total",
		metric.WithDescription("Total number of failed deployments"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DeploymentsActive, err = meter.Int64UpDownCounter(
		"deployments_active",
		metric.WithDescription("Number of deployments currently running (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepDuration, err = meter.Float64Histogram(
		"deployment_step_duration_seconds",
		metric.WithDescription("Step execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 300, 600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepsTotal, err = meter.Int64Counter(
		"deployment_steps_total",
		metric.WithDescription("Total number of executed steps"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallbackDuration, err = meter.Float64Histogram(
		"callback_duration_seconds",
		metric.WithDescription("Callback delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallbackDelivered, err = meter.Int64Counter(
		"callback_delivered_total",
		metric.WithDescription("Total callback events delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallbackFailed, err = meter.Int64Counter(
		"callback_failed_total",
		metric.WithDescription("Total callback events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallbackDropped, err = meter.Int64Counter(
		"callback_dropped_total",
		metric.WithDescription("Total callback events dropped (buffer full or circuit open)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(methodAttr(method), pathAttr(path), statusAttr(statusCode))
	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordDeploymentSubmitted records a deployment being accepted.
func (m *Metrics) RecordDeploymentSubmitted(ctx context.Context, kind string) {
	m.DeploymentsTotal.Add(ctx, 1, WithKind(kind))
}

// RecordDeploymentStarted records a deployment entering running.
func (m *Metrics) RecordDeploymentStarted(ctx context.Context, kind string) {
	m.DeploymentsActive.Add(ctx, 1, WithKind(kind))
}

// RecordDeploymentFinished records a running deployment reaching a terminal status.
func (m *Metrics) RecordDeploymentFinished(ctx context.Context, kind string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(kindAttr(kind), successAttr(success))
	m.DeploymentDuration.Record(ctx, durationSeconds, attrs)
	m.DeploymentsActive.Add(ctx, -1, WithKind(kind))

	if !success {
		m.DeploymentErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordStep records one executed step.
func (m *Metrics) RecordStep(ctx context.Context, stepType, outcome string, durationSeconds float64) {
	m.StepDuration.Record(ctx, durationSeconds, WithStepType(stepType))
	m.StepsTotal.Add(ctx, 1, metric.WithAttributes(stepTypeAttr(stepType), outcomeAttr(outcome)))
}

// RecordCallbackDelivered records a delivered callback event with its duration.
func (m *Metrics) RecordCallbackDelivered(ctx context.Context, durationSeconds float64) {
	m.CallbackDelivered.Add(ctx, 1)
	m.CallbackDuration.Record(ctx, durationSeconds)
}

// RecordCallbackFailed records a callback event that failed after retries.
func (m *Metrics) RecordCallbackFailed(ctx context.Context) {
	m.CallbackFailed.Add(ctx, 1)
}

// RecordCallbackDropped records a callback event that was never sent.
func (m *Metrics) RecordCallbackDropped(ctx context.Context) {
	m.CallbackDropped.Add(ctx, 1)
}
