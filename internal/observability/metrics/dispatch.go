package metrics

import (
	"time"

	obserrors "github.com/gitgauge/gitgauge/internal/observability/errors"
	"github.com/gitgauge/gitgauge/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// DispatchMetric captures details about a dispatch cycle for metric emission.
type DispatchMetric struct {
	Queue    string
	Outcome  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitDispatchCycle emits standardised dispatch cycle metrics.
func EmitDispatchCycle(sink statsd.Sink, in DispatchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"queue":   in.Queue,
		"outcome": in.Outcome,
		"result":  in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("dispatch.cycle", 1, tags)

	if in.Duration > 0 {
		sink.Timing("dispatch.duration", in.Duration, CloneTags(tags))
	}
}

// EmitWorkerHandoff emits metrics for the asynchronous worker hand-off leg.
func EmitWorkerHandoff(sink statsd.Sink, result string, err error) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": result}
	if err != nil && result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("dispatch.handoff", 1, tags)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
