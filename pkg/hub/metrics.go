package hub

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitwall-sim/pitwall/log"
)

//nolint:lll // readability
func (h *Hub) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("pitwall.hub")
	register := func(metricName, desc, unit string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit(unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider())
				return nil
			})); err != nil {
			h.l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	type data struct {
		name  string
		desc  string
		unit  string
		value func() int64
	}
	for _, d := range []*data{
		{
			"pitwall.hub.agents", "Number of connected agents", "{count}",
			func() int64 { return int64(h.NumAgents()) },
		},
		{
			"pitwall.hub.clients", "Number of connected clients", "{count}",
			func() int64 { return int64(h.NumClients()) },
		},
		{
			"pitwall.hub.broadcasts", "Number of broadcast payloads", "{count}",
			func() int64 { h.mu.Lock(); defer h.mu.Unlock(); return h.numBroadcasts },
		},
		{
			"pitwall.hub.dropped", "Number of clients dropped on write error", "{count}",
			func() int64 { h.mu.Lock(); defer h.mu.Unlock(); return h.numDropped },
		},
	} {
		register(d.name, d.desc, d.unit, d.value)
	}
}
