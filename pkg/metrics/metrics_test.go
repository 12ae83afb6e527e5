package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Event("visual", "movement")
	m.Event("visual", "movement")
	m.Event("audio", "sound")
	m.Verdict("audio", "quiet")
	m.CaptureError("audio")

	if got := testutil.ToFloat64(m.events.WithLabelValues("visual", "movement")); got != 2 {
		t.Errorf("events{visual,movement}: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("audio", "sound")); got != 1 {
		t.Errorf("events{audio,sound}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.captureErrors.WithLabelValues("audio")); got != 1 {
		t.Errorf("capture_errors{audio}: got %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetCount(4)
	m.SetBaseline(0.02)
	m.SetRunning("visual", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		"proctor_suspicion_count 4",
		"proctor_audio_baseline_rms 0.02",
		`proctor_monitor_running{modality="visual"} 1`,
		`proctor_monitor_running{modality="audio"} 0`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Event("visual", "multiface")
	m.Verdict("visual", "normal")
	m.CaptureError("visual")
	m.ArtifactError("visual")
	m.CounterError()
	m.Started("audio")
	m.SetCount(1)
	m.SetBaseline(0.1)
	m.SetRunning("audio", true)
}
