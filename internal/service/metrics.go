package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HubMetrics 是 gateway 即時連線的指標；nil 可安全使用
type HubMetrics struct {
	connections prometheus.Gauge
	frames      *prometheus.CounterVec
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	f := promauto.With(reg)
	return &HubMetrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_gateway",
			Name:      "live_connections",
			Help:      "Currently open live chat connections.",
		}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "frames_relayed_total",
			Help:      "Frames broadcast to live clients by kind.",
		}, []string{"kind"}),
	}
}

func (m *HubMetrics) connected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *HubMetrics) disconnected() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *HubMetrics) relayed(kind string) {
	if m != nil {
		m.frames.WithLabelValues(kind).Inc()
	}
}
