// Package observability provides metrics for the deployment service.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrKind     = "kind"
	attrStepType = "step_type"
	attrOutcome  = "outcome"
	attrSuccess  = "success"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String(attrKind, kind)
}

func stepTypeAttr(stepType string) attribute.KeyValue {
	return attribute.String(attrStepType, stepType)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// pathPatterns maps routes with a trailing dynamic segment to their pattern.
var pathPatterns = []struct {
	prefix  string
	pattern string
}{
	{"/deployments/", "/deployments/{id}"},
	{"/templates/", "/templates/{name}"},
	{"/inventory/resolve/", "/inventory/resolve/{name}"},
}

// normalizePath replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	for _, p := range pathPatterns {
		rest, ok := strings.CutPrefix(path, p.prefix)
		if !ok || rest == "" {
			continue
		}
		if _, sub, found := strings.Cut(rest, "/"); found {
			return p.pattern + "/" + sub
		}
		return p.pattern
	}
	return path
}

// WithKind returns a metric option with the deployment kind attribute.
func WithKind(kind string) metric.MeasurementOption {
	return metric.WithAttributes(kindAttr(kind))
}

// WithStepType returns a metric option with the step type attribute.
func WithStepType(stepType string) metric.MeasurementOption {
	return metric.WithAttributes(stepTypeAttr(stepType))
}
