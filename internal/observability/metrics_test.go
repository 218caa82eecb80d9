package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue reads a labelled counter from the default registry
func counterValue(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecordSessionEnd_CountsOnce(t *testing.T) {
	before := counterValue(t, "justspeak_sessions_total", "outcome", OutcomeEmpty)

	m := NewSessionMetrics("session-1")
	m.RecordSessionStart()
	m.RecordSessionEnd(OutcomeEmpty, time.Second)
	m.RecordSessionEnd(OutcomeEmpty, time.Second)

	after := counterValue(t, "justspeak_sessions_total", "outcome", OutcomeEmpty)
	if after-before != 1 {
		t.Errorf("Expected one session counted, got %v", after-before)
	}
	if m.SessionID() != "session-1" {
		t.Errorf("Expected session ID 'session-1', got '%s'", m.SessionID())
	}
}

func TestRecordTranscriptAndDelivery(t *testing.T) {
	transcripts := counterValue(t, "justspeak_transcripts_total", "source", SourceBatch)
	failures := counterValue(t, "justspeak_deliveries_total", "status", "error")

	m := NewSessionMetrics("session-2")
	m.RecordRelease()
	m.RecordTranscript(SourceBatch)
	m.RecordDelivery(false)

	if got := counterValue(t, "justspeak_transcripts_total", "source", SourceBatch); got-transcripts != 1 {
		t.Errorf("Expected one batch transcript, got %v", got-transcripts)
	}
	if got := counterValue(t, "justspeak_deliveries_total", "status", "error"); got-failures != 1 {
		t.Errorf("Expected one failed delivery, got %v", got-failures)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	before := counterValue(t, "justspeak_circuit_breaker_failures_total", "service", "metrics-test")

	IncrementCircuitBreakerFailures("metrics-test")
	IncrementCircuitBreakerFailures("metrics-test")
	UpdateCircuitBreakerState("metrics-test", 1)

	if got := counterValue(t, "justspeak_circuit_breaker_failures_total", "service", "metrics-test"); got-before != 2 {
		t.Errorf("Expected two failures, got %v", got-before)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSessionID(NewLogger(&buf, "warn", false), "abc")

	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "kept" {
		t.Errorf("Expected message 'kept', got %v", entry["message"])
	}
	if entry["session_id"] != "abc" {
		t.Errorf("Expected session_id 'abc', got %v", entry["session_id"])
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Errorf("Expected distinct IDs, got '%s' and '%s'", a, b)
	}
}
