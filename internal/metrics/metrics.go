// Package metrics provides Prometheus metrics for sessions and transports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hark"

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	// Decode metrics, labelled by session kind.
	DecodeCalls     *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	DecodeBatchSize *prometheus.HistogramVec
	DecodeLatency   *prometheus.HistogramVec
	StreamsActive   *prometheus.GaugeVec

	// Streaming outcomes
	Endpoints *prometheus.CounterVec
	Keywords  *prometheus.CounterVec

	// Synthesis
	SynthChunks    prometheus.Counter
	SynthCancelled prometheus.Counter
	SynthLatency   prometheus.Histogram

	DenoiseLatency prometheus.Histogram

	// Event publishing
	PublishTotal   *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec

	// Remote engine server
	RPCTotal   *prometheus.CounterVec
	RPCLatency *prometheus.HistogramVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecodeCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_calls_total",
			Help:      "Batched engine invocations",
		}, []string{"session"}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Batched engine invocations that failed",
		}, []string{"session"}),
		DecodeBatchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_batch_size",
			Help:      "Streams per batched engine invocation",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"session"}),
		DecodeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_latency_seconds",
			Help:      "Latency of batched engine invocations",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"session"}),
		StreamsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Streams created and not yet closed",
		}, []string{"session"}),
		Endpoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoints_total",
			Help:      "Utterance endpoints detected, by rule",
		}, []string{"rule"}),
		Keywords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_detected_total",
			Help:      "Keyword matches, by keyword",
		}, []string{"keyword"}),
		SynthChunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_chunks_total",
			Help:      "Audio chunks produced by synthesis",
		}),
		SynthCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_cancelled_total",
			Help:      "Generations stopped early by the caller",
		}),
		SynthLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_chunk_latency_seconds",
			Help:      "Time to synthesize one chunk",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		DenoiseLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "denoise_latency_seconds",
			Help:      "Time to denoise one signal",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Result events published",
		}, []string{"topic", "status"}),
		PublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "events_publish_latency_seconds",
			Help:      "Latency of result event publishing",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"topic"}),
		RPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_total",
			Help:      "Remote engine RPCs served",
		}, []string{"method", "code"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "Remote engine RPC latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

// RecordDecode records one batched engine invocation.
func (m *Metrics) RecordDecode(session string, batch int, err error, seconds float64) {
	if m == nil {
		return
	}
	m.DecodeCalls.WithLabelValues(session).Inc()
	m.DecodeBatchSize.WithLabelValues(session).Observe(float64(batch))
	m.DecodeLatency.WithLabelValues(session).Observe(seconds)
	if err != nil {
		m.DecodeErrors.WithLabelValues(session).Inc()
	}
}

func (m *Metrics) StreamOpened(session string) {
	if m == nil {
		return
	}
	m.StreamsActive.WithLabelValues(session).Inc()
}

func (m *Metrics) StreamClosed(session string) {
	if m == nil {
		return
	}
	m.StreamsActive.WithLabelValues(session).Dec()
}

func (m *Metrics) RecordEndpoint(rule string) {
	if m == nil {
		return
	}
	m.Endpoints.WithLabelValues(rule).Inc()
}

func (m *Metrics) RecordKeyword(keyword string) {
	if m == nil {
		return
	}
	m.Keywords.WithLabelValues(keyword).Inc()
}

// RecordSynthChunk records one produced chunk and how long it took.
func (m *Metrics) RecordSynthChunk(seconds float64) {
	if m == nil {
		return
	}
	m.SynthChunks.Inc()
	m.SynthLatency.Observe(seconds)
}

func (m *Metrics) RecordSynthCancelled() {
	if m == nil {
		return
	}
	m.SynthCancelled.Inc()
}

func (m *Metrics) RecordDenoise(seconds float64) {
	if m == nil {
		return
	}
	m.DenoiseLatency.Observe(seconds)
}

// RecordPublish records an event publish attempt.
func (m *Metrics) RecordPublish(topic string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PublishTotal.WithLabelValues(topic, status).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(seconds)
}

func (m *Metrics) RecordRPC(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(seconds)
}
