package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Sampler strategies accepted in telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// createSampler builds the root sampler for strategy. Requests arriving
// with a sampled traceparent follow their parent's decision, and server
// spans for ignored paths are always dropped:
//
//	telemetry:
//	  tracing:
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    ignore_paths: [/healthz, /readyz, /metrics]
func createSampler(strategy string, ratio float64, ignorePaths []string) (sdktrace.Sampler, error) {
	var base sdktrace.Sampler
	switch strategy {
	case SamplerAlways:
		base = sdktrace.AlwaysSample()
	case SamplerNever:
		base = sdktrace.NeverSample()
	case SamplerRatio:
		if ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %g", ratio)
		}
		base = sdktrace.TraceIDRatioBased(ratio)
	default:
		return nil, fmt.Errorf("unknown sampler %q (valid: always, never, ratio)", strategy)
	}

	sampler := sdktrace.ParentBased(base)
	if len(ignorePaths) == 0 {
		return sampler, nil
	}

	ignored := make(map[string]struct{}, len(ignorePaths))
	for _, p := range ignorePaths {
		if p != "" {
			ignored[p] = struct{}{}
		}
	}
	return probeFilter{next: sampler, ignored: ignored}, nil
}

// probeFilter drops server spans for health probes and metrics scrapes,
// which would otherwise dominate sampled traces on a busy instance.
type probeFilter struct {
	next    sdktrace.Sampler
	ignored map[string]struct{}
}

func (f probeFilter) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if p.Kind == trace.SpanKindServer {
		for _, attr := range p.Attributes {
			if attr.Key != "http.target" {
				continue
			}
			if _, skip := f.ignored[attr.Value.AsString()]; skip {
				return sdktrace.SamplingResult{
					Decision:   sdktrace.Drop,
					Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
				}
			}
		}
	}
	return f.next.ShouldSample(p)
}

func (f probeFilter) Description() string {
	return fmt.Sprintf("ProbeFilter{ignored:%d}/%s", len(f.ignored), f.next.Description())
}
