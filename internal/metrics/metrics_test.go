package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorderRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, func() float64 { return 3 })

	r.Transition("amount_input", "advanced")
	r.Operation("open", "ok", 2*time.Second)
	r.RateLimited()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"liquidity_pilot_workflow_transitions_total",
		"liquidity_pilot_lifecycle_operations_total",
		"liquidity_pilot_lifecycle_operation_seconds",
		"liquidity_pilot_rate_limited_total",
		"liquidity_pilot_workflow_active_sessions",
	} {
		if !names[want] {
			t.Fatalf("missing metric %s", want)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Transition("x", "y")
	r.Operation("open", "ok", time.Second)
	r.RateLimited()
}
