package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	engineMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirescript",
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "Messages decoded from the inbound stream.",
		},
		[]string{"protocol", "message"},
	)
	engineBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirescript",
			Subsystem: "engine",
			Name:      "bytes_total",
			Help:      "Bytes written to or sent by an engine.",
		},
		[]string{"protocol", "direction"},
	)
	engineEnds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirescript",
			Subsystem: "engine",
			Name:      "ends_total",
			Help:      "Protocol runs that reached end of protocol.",
		},
		[]string{"protocol"},
	)
	engineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wirescript",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Engine failures by kind.",
		},
		[]string{"protocol", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(engineMessages, engineBytes, engineEnds, engineErrors)
	})
}

func RecordMessage(protocol, message string) {
	RegisterMetrics()
	engineMessages.WithLabelValues(protocol, message).Inc()
}

func RecordBytes(protocol, direction string, n int) {
	RegisterMetrics()
	engineBytes.WithLabelValues(protocol, direction).Add(float64(n))
}

func RecordEnd(protocol string) {
	RegisterMetrics()
	engineEnds.WithLabelValues(protocol).Inc()
}

func RecordError(protocol, kind string) {
	RegisterMetrics()
	engineErrors.WithLabelValues(protocol, kind).Inc()
}

// Summary totals the engine counters recorded for one protocol label.
type Summary struct {
	Messages float64
	BytesIn  float64
	BytesOut float64
	Ends     float64
	Errors   float64
}

func Summarize(g prometheus.Gatherer, protocol string) (Summary, error) {
	var s Summary
	families, err := g.Gather()
	if err != nil {
		return s, err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["protocol"] != protocol || m.GetCounter() == nil {
				continue
			}
			v := m.GetCounter().GetValue()
			switch mf.GetName() {
			case "wirescript_engine_messages_total":
				s.Messages += v
			case "wirescript_engine_bytes_total":
				if labels["direction"] == DirectionOut {
					s.BytesOut += v
				} else {
					s.BytesIn += v
				}
			case "wirescript_engine_ends_total":
				s.Ends += v
			case "wirescript_engine_errors_total":
				s.Errors += v
			}
		}
	}
	return s, nil
}
