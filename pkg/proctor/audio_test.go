package proctor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-proctor/pkg/audioio"
)

func startedSource(t *testing.T, opts ...audioio.MockSourceOption) *audioio.MockSource {
	t.Helper()
	cfg := audioio.DefaultConfig()
	cfg.SampleRate = 8000
	cfg.BufferDuration = 100 * time.Millisecond

	src := audioio.NewMockSource(cfg, nil, append(opts, audioio.WithoutPacing())...)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestCalibrator_Baseline(t *testing.T) {
	src := startedSource(t, audioio.WithLevels(0.02))

	b, err := DefaultCalibrator().Calibrate(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if math.Abs(b.RMS-0.02) > 0.0005 {
		t.Errorf("RMS: got %.5f, want 0.02", b.RMS)
	}
	if math.Abs(b.Threshold-0.03) > 0.001 {
		t.Errorf("Threshold: got %.5f, want 0.03", b.Threshold)
	}
	if b.Samples != 4*8000 {
		t.Errorf("Samples: got %d, want %d", b.Samples, 4*8000)
	}
}

func TestCalibrator_Silence(t *testing.T) {
	src := startedSource(t, audioio.WithLevels(0))

	b, err := DefaultCalibrator().Calibrate(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if b.RMS != 0 {
		t.Errorf("RMS: got %v, want 0", b.RMS)
	}
	if b.Threshold != 0 {
		t.Errorf("Threshold: got %v, want 0", b.Threshold)
	}
	v := NewVolumeClassifier(b)
	if got := v.Classify(0); got != VerdictQuiet {
		t.Errorf("Classify(0): got %s, want %s", got, VerdictQuiet)
	}
	if got := v.Classify(0.001); got != VerdictLoud {
		t.Errorf("Classify(0.001): got %s, want %s", got, VerdictLoud)
	}
}

func TestCalibrator_WholeWindow(t *testing.T) {
	// One loud second among quiet ones still raises the baseline
	src := startedSource(t, audioio.WithLevels(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0, 0))

	b, err := DefaultCalibrator().Calibrate(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	// sqrt(0.4^2 * 10/40) = 0.2
	if math.Abs(b.RMS-0.2) > 0.002 {
		t.Errorf("RMS: got %.4f, want 0.2", b.RMS)
	}
}

func TestCalibrator_Stopped(t *testing.T) {
	src := startedSource(t)

	polls := 0
	stopped := func() bool {
		polls++
		return polls > 2
	}

	_, err := DefaultCalibrator().Calibrate(context.Background(), src, stopped)
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if got := src.Stats().ChunksRead; got != 20 {
		t.Errorf("chunks read before abort: got %d, want 20", got)
	}
}

func TestCalibrator_DeviceError(t *testing.T) {
	errGone := errors.New("device unplugged")
	src := startedSource(t, audioio.WithReadErrors(errGone, -1))

	_, err := DefaultCalibrator().Calibrate(context.Background(), src, nil)
	if !errors.Is(err, errGone) {
		t.Errorf("expected device error, got %v", err)
	}
}

func TestVolumeClassifier(t *testing.T) {
	tests := []struct {
		name     string
		baseline float64
		rms      float64
		expect   Verdict
	}{
		{"quiet room", 0.02, 0.025, VerdictQuiet},
		{"at threshold", 0.02, 0.03, VerdictQuiet},
		{"talking", 0.02, 0.05, VerdictLoud},
		{"zero baseline silent", 0, 0, VerdictQuiet},
		{"zero baseline any sound", 0, 0.0001, VerdictLoud},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVolumeClassifier(NewBaseline(tc.baseline, DefaultMultiplier))
			if got := v.Classify(tc.rms); got != tc.expect {
				t.Errorf("Classify(%v): got %s, want %s", tc.rms, got, tc.expect)
			}
		})
	}
}

func TestVerdict_Flagged(t *testing.T) {
	flagged := map[Verdict]bool{
		VerdictNormal:       false,
		VerdictNoSubject:    false,
		VerdictQuiet:        false,
		VerdictMovement:     true,
		VerdictMultiSubject: true,
		VerdictLoud:         true,
	}
	for v, want := range flagged {
		if got := v.Flagged(); got != want {
			t.Errorf("%s.Flagged: got %v, want %v", v, got, want)
		}
		if want && v.EventType() == "" {
			t.Errorf("%s: flagged verdict without event type", v)
		}
	}
}

func TestEventType(t *testing.T) {
	if EventSound.Ext() != "wav" || EventSound.Modality() != ModalityAudio {
		t.Error("sound events are audio WAV files")
	}
	if EventMultiface.Ext() != "jpg" || EventMovement.Modality() != ModalityVisual {
		t.Error("face events are visual JPEG files")
	}
	if EventPhoto.Counted() {
		t.Error("photo snapshots must not be counted")
	}
}

func TestParseModality(t *testing.T) {
	if m, ok := ParseModality("audio"); !ok || m != ModalityAudio {
		t.Errorf("ParseModality(audio): got %v %v", m, ok)
	}
	if _, ok := ParseModality("smell"); ok {
		t.Error("ParseModality accepted unknown modality")
	}
}
