package observability

import (
	"os"
	"strconv"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Standard OTEL sampling env vars, read directly rather than through config.
const (
	envTracesSampler    = "OTEL_TRACES_SAMPLER"
	envTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

const defaultTraceIDRatio = 1.0

func samplerFromEnv() sdktrace.Sampler {
	return newSampler(os.Getenv(envTracesSampler), parseTraceIDRatio(os.Getenv(envTracesSamplerArg)))
}

// newSampler maps an OTEL_TRACES_SAMPLER name to a sampler. Unknown names (including empty)
// are parentbased_always_on, so analysis spans follow the incoming HTTP request's decision.
func newSampler(name string, ratio float64) sdktrace.Sampler {
	switch name {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(ratio)
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// parseTraceIDRatio returns the ratio in [0,1], or 1.0 when s is missing or out of range.
func parseTraceIDRatio(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return defaultTraceIDRatio
	}

	return f
}
