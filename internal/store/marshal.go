package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/monitor"
)

// storedInput mirrors the canonical form of monitor.GenerationInput.
// Times are unix nanoseconds.
type storedInput struct {
	Target        string `json:"target"`
	ScheduledTime int64  `json:"scheduled_time"`
	Generation    int64  `json:"generation"`
	Counters      struct {
		Total             int64 `json:"total"`
		ExecutionFailures int64 `json:"execution_failures"`
		TimerFailures     int64 `json:"timer_failures"`
		Unhealthy         int64 `json:"unhealthy"`
	} `json:"counters"`
}

// marshalInput converts a GenerationInput to canonical JSON TEXT and its
// digest.
func marshalInput(in monitor.GenerationInput) (data string, digest string, err error) {
	obj := in.Canonical()
	raw, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", "", fmt.Errorf("marshal input: %w", err)
	}
	digest, err = ir.GenerationDigest(obj)
	if err != nil {
		return "", "", fmt.Errorf("marshal input: %w", err)
	}
	return string(raw), digest, nil
}

func unmarshalInput(data string) (monitor.GenerationInput, error) {
	var s storedInput
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return monitor.GenerationInput{}, fmt.Errorf("unmarshal input: %w", err)
	}
	return monitor.GenerationInput{
		Target:        s.Target,
		ScheduledTime: fromNanos(s.ScheduledTime),
		Generation:    s.Generation,
		Counters: monitor.Counters{
			Total:             s.Counters.Total,
			ExecutionFailures: s.Counters.ExecutionFailures,
			TimerFailures:     s.Counters.TimerFailures,
			Unhealthy:         s.Counters.Unhealthy,
		},
	}, nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
