package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcomes
const (
	OutcomeDelivered      = "delivered"
	OutcomeDiscardedShort = "discarded_short"
	OutcomeEmpty          = "empty"
	OutcomeAborted        = "aborted"
	OutcomeFailed         = "failed"
)

// Transcript sources
const (
	SourceStream = "stream"
	SourceBatch  = "batch"
)

var (
	// Session metrics
	recordingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "justspeak_recording",
		Help: "1 while a dictation session is recording",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_sessions_total",
		Help: "Total number of dictation sessions by outcome",
	}, []string{"outcome"})

	sessionAudioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "justspeak_session_audio_seconds",
		Help:    "Captured audio duration per session in seconds",
		Buckets: []float64{0.3, 1, 2, 5, 10, 30, 60, 120},
	})

	transcriptSource = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_transcripts_total",
		Help: "Transcripts produced by source",
	}, []string{"source"})

	// STT metrics
	streamResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_stream_results_total",
		Help: "Streaming pipeline results by status",
	}, []string{"status"})

	batchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_batch_requests_total",
		Help: "Total number of batch transcription requests",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "justspeak_transcription_latency_seconds",
		Help:    "Time from release to transcript in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"source"})

	audioBytesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "justspeak_audio_bytes_streamed_total",
		Help: "PCM bytes sent over streaming connections",
	})

	// Delivery metrics
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_deliveries_total",
		Help: "Transcript deliveries by status",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "justspeak_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "justspeak_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single dictation session
type Metrics struct {
	sessionID   string
	releaseTime time.Time
	mu          sync.Mutex
	ended       bool
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{sessionID: sessionID}
}

// SessionID returns the session the metrics belong to
func (m *Metrics) SessionID() string {
	return m.sessionID
}

// RecordSessionStart records the start of a recording
func (m *Metrics) RecordSessionStart() {
	recordingSessions.Set(1)
}

// RecordRelease marks the moment the trigger was released
func (m *Metrics) RecordRelease() {
	m.mu.Lock()
	m.releaseTime = time.Now()
	m.mu.Unlock()
}

// RecordSessionEnd records the outcome of a session. Only the first call counts.
func (m *Metrics) RecordSessionEnd(outcome string, audio time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return
	}
	m.ended = true

	recordingSessions.Set(0)
	sessionsTotal.WithLabelValues(outcome).Inc()
	if audio > 0 {
		sessionAudioDuration.Observe(audio.Seconds())
	}
}

// RecordTranscript records which path produced the transcript
func (m *Metrics) RecordTranscript(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	transcriptSource.WithLabelValues(source).Inc()
	if !m.releaseTime.IsZero() {
		transcriptionLatency.WithLabelValues(source).Observe(time.Since(m.releaseTime).Seconds())
	}
}

// RecordDelivery records the result of handing text to the delivery collaborator
func (m *Metrics) RecordDelivery(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	deliveries.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordStreamResult records how a streaming pipeline ended
func RecordStreamResult(status string) {
	streamResults.WithLabelValues(status).Inc()
}

// RecordBatchRequest records a batch upload
func RecordBatchRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	batchRequests.WithLabelValues(status).Inc()
}

// RecordAudioBytes records PCM bytes sent to the service
func RecordAudioBytes(bytes int) {
	audioBytesStreamed.Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
