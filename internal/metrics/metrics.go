package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters and histograms for the chat routing flow.
type ChatMetrics struct {
	answersTotal    *prometheus.CounterVec
	stageFailures   *prometheus.CounterVec
	intakeCompleted prometheus.Counter
	whatsappInbound *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		answersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swasthya",
			Subsystem: "cascade",
			Name:      "answers_total",
			Help:      "Answers produced by the answer-source cascade, by source",
		}, []string{"source"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swasthya",
			Subsystem: "cascade",
			Name:      "stage_failures_total",
			Help:      "Cascade stages that produced no usable answer",
		}, []string{"stage", "reason"}),
		intakeCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swasthya",
			Subsystem: "intake",
			Name:      "completed_total",
			Help:      "Conversations that finished the profile intake script",
		}),
		whatsappInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swasthya",
			Subsystem: "whatsapp",
			Name:      "inbound_total",
			Help:      "Inbound WhatsApp webhooks",
		}, []string{"status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swasthya",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a single chat turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.answersTotal, m.stageFailures, m.intakeCompleted, m.whatsappInbound, m.turnLatency)
	return m
}

func (m *ChatMetrics) ObserveAnswer(source string) {
	if m == nil {
		return
	}
	m.answersTotal.WithLabelValues(source).Inc()
}

func (m *ChatMetrics) ObserveStageFailure(stage, reason string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

func (m *ChatMetrics) ObserveIntakeCompleted() {
	if m == nil {
		return
	}
	m.intakeCompleted.Inc()
}

func (m *ChatMetrics) ObserveWhatsAppInbound(status string) {
	if m == nil {
		return
	}
	m.whatsappInbound.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveTurnLatency(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(phase).Observe(seconds)
}
