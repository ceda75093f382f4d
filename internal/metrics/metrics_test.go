package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of a counter family whose labels include
// all of want.
func counterValue(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if match {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestObserve(t *testing.T) {
	t.Parallel()
	m := New()

	m.Observe("post_cost", time.Now(), nil)
	m.Observe("post_cost", time.Now(), nil)
	m.Observe("post_cost", time.Now(), errors.New("boom"))

	assert.InDelta(t, 2, counterValue(t, m, "farm_operations_total", map[string]string{"operation": "post_cost", "outcome": "ok"}), 0)
	assert.InDelta(t, 1, counterValue(t, m, "farm_operations_total", map[string]string{"outcome": "error"}), 0)
}

func TestCounters(t *testing.T) {
	t.Parallel()
	m := New()

	m.SoftFailure("inventory", "receive")
	m.Rederived(3)
	m.Rederived(0)
	m.AllocationsWritten(4)

	assert.InDelta(t, 1, counterValue(t, m, "farm_soft_failures_total", map[string]string{"collaborator": "inventory"}), 0)
	assert.InDelta(t, 3, counterValue(t, m, "farm_harvest_entries_rederived_total", nil), 0)
	assert.InDelta(t, 4, counterValue(t, m, "farm_allocations_written_total", nil), 0)
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("x", time.Now(), nil)
		m.SoftFailure("inventory", "x")
		m.Rederived(1)
		m.AllocationsWritten(1)
	})
}
