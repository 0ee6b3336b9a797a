package chatclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 是聊天 session 的 prometheus 指標。nil 的 *Metrics 可安全使用。
type Metrics struct {
	transitions       *prometheus.CounterVec
	reconnects        prometheus.Counter
	frames            *prometheus.CounterVec
	protocolErrors    prometheus.Counter
	bootstrapFailures *prometheus.CounterVec
	sends             *prometheus.CounterVec
}

// NewMetrics 建立指標並註冊到 reg；reg 為 nil 時不註冊
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatclient",
			Name:      "state_transitions_total",
			Help:      "Connection manager state transitions by target state.",
		}, []string{"state"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chatclient",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after an abnormal closure.",
		}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatclient",
			Name:      "frames_received_total",
			Help:      "Decoded inbound frames by kind.",
		}, []string{"kind"}),
		protocolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chatclient",
			Name:      "protocol_errors_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		}),
		bootstrapFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatclient",
			Name:      "bootstrap_failures_total",
			Help:      "History loader sub-fetch failures by step.",
		}, []string{"step"}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatclient",
			Name:      "sends_total",
			Help:      "Outbound messages by transport path and result.",
		}, []string{"path", "result"}),
	}
}

func (m *Metrics) transition(s State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) frame(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) protocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

func (m *Metrics) bootstrapFailure(step string) {
	if m == nil {
		return
	}
	m.bootstrapFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) send(path string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sends.WithLabelValues(path, result).Inc()
}
