package proctor

import (
	"testing"

	"github.com/teslashibe/go-proctor/pkg/detection"
)

func face(cx, cy float64) []detection.Box {
	return []detection.Box{detection.FaceAt(cx, cy, 100, 100)}
}

func TestFaceClassifier_Sequence(t *testing.T) {
	c := NewFaceClassifier(DefaultFaceConfig())

	tests := []struct {
		name   string
		boxes  []detection.Box
		expect Verdict
	}{
		{"first sighting", face(100, 100), VerdictNormal},
		{"small shift", face(105, 103), VerdictNormal},
		{"large shift", face(130, 130), VerdictMovement},
		{"holds still", face(130, 130), VerdictNormal},
	}

	movements := 0
	for _, tc := range tests {
		res := c.Classify(tc.boxes)
		if res.Verdict != tc.expect {
			t.Errorf("%s: got %s, want %s", tc.name, res.Verdict, tc.expect)
		}
		if res.Verdict.EventType() == EventMovement {
			movements++
		}
	}
	if movements != 1 {
		t.Errorf("movement events: got %d, want 1", movements)
	}
}

func TestFaceClassifier_StationaryNeverMoves(t *testing.T) {
	c := NewFaceClassifier(DefaultFaceConfig())
	for i := 0; i < 50; i++ {
		if res := c.Classify(face(640, 360)); res.Verdict != VerdictNormal {
			t.Fatalf("frame %d: got %s, want normal", i, res.Verdict)
		}
	}
}

func TestFaceClassifier_MultiFace(t *testing.T) {
	tests := []struct {
		name  string
		faces int
	}{
		{"two", 2},
		{"three", 3},
		{"crowd", 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewFaceClassifier(DefaultFaceConfig())
			c.Classify(face(100, 100))

			var boxes []detection.Box
			for i := 0; i < tc.faces; i++ {
				boxes = append(boxes, detection.FaceAt(float64(100+200*i), 100, 80, 80))
			}
			res := c.Classify(boxes)
			if res.Verdict != VerdictMultiSubject {
				t.Fatalf("Verdict: got %s, want multi_subject", res.Verdict)
			}
			if res.Verdict.EventType() != EventMultiface {
				t.Errorf("EventType: got %s, want multiface", res.Verdict.EventType())
			}
			if _, _, ok := c.LastCenter(); ok {
				t.Error("multi-face frame should clear the tracked center")
			}
		})
	}
}

func TestFaceClassifier_GapClearsHistory(t *testing.T) {
	c := NewFaceClassifier(DefaultFaceConfig())

	c.Classify(face(100, 100))
	c.Classify(face(103, 100))
	if len(c.Window()) != 1 {
		t.Fatalf("window: got %d entries, want 1", len(c.Window()))
	}

	if res := c.Classify(nil); res.Verdict != VerdictNoSubject {
		t.Fatalf("empty frame: got %s, want no_subject", res.Verdict)
	}
	if _, _, ok := c.LastCenter(); ok {
		t.Error("empty frame should clear the tracked center")
	}
	if len(c.Window()) != 0 {
		t.Error("empty frame should clear the window")
	}

	// Reappearing far away is a first sighting, not movement
	if res := c.Classify(face(900, 500)); res.Verdict != VerdictNormal {
		t.Errorf("after gap: got %s, want normal", res.Verdict)
	}
}

func TestFaceClassifier_WindowBounded(t *testing.T) {
	cfg := DefaultFaceConfig()
	cfg.Window = 3
	c := NewFaceClassifier(cfg)

	for i := 0; i < 10; i++ {
		c.Classify(face(float64(100+i), 100))
	}
	w := c.Window()
	if len(w) != 3 {
		t.Fatalf("window: got %d entries, want 3", len(w))
	}
	for i, d := range w {
		if d != 1 {
			t.Errorf("window[%d]: got %v, want 1", i, d)
		}
	}

	// Oldest evicted first
	c.Classify(face(109, 105))
	w = c.Window()
	if w[2] != 5 || w[0] != 1 {
		t.Errorf("window after push: got %v", w)
	}
}

func TestFaceClassifier_NormalizedPolicy(t *testing.T) {
	cfg := DefaultFaceConfig()
	cfg.Policy = PolicyNormalized
	cfg.NormalizedThreshold = 0.1

	tests := []struct {
		name   string
		width  float64
		shift  float64
		expect Verdict
	}{
		// 15px on a 300px face is 5% of its width
		{"close face", 300, 15, VerdictNormal},
		// 15px on a 60px face is 25% of its width
		{"distant face", 60, 15, VerdictMovement},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewFaceClassifier(cfg)
			c.Classify([]detection.Box{detection.FaceAt(400, 400, tc.width, tc.width)})
			res := c.Classify([]detection.Box{detection.FaceAt(400+tc.shift, 400, tc.width, tc.width)})
			if res.Verdict != tc.expect {
				t.Errorf("Verdict: got %s, want %s", res.Verdict, tc.expect)
			}
		})
	}
}

func TestFaceClassifier_SmoothedPolicy(t *testing.T) {
	cfg := DefaultFaceConfig()
	cfg.Policy = PolicySmoothed
	c := NewFaceClassifier(cfg)

	c.Classify(face(100, 100))
	// A single 24px jump averages to 24 > 10
	if res := c.Classify(face(124, 100)); res.Verdict != VerdictMovement {
		t.Errorf("jump: got %s, want movement", res.Verdict)
	}
	// Mean of {24, 0} = 12 > 10
	if res := c.Classify(face(124, 100)); res.Verdict != VerdictMovement {
		t.Errorf("settle 1: got %s, want movement", res.Verdict)
	}
	// Mean of {24, 0, 0} = 8 <= 10
	if res := c.Classify(face(124, 100)); res.Verdict != VerdictNormal {
		t.Errorf("settle 2: got %s, want normal", res.Verdict)
	}
}

func TestFaceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FaceConfig)
		wantErr bool
	}{
		{"defaults", func(c *FaceConfig) {}, false},
		{"unknown policy", func(c *FaceConfig) { c.Policy = "kalman" }, true},
		{"negative threshold", func(c *FaceConfig) { c.MovementThreshold = -1 }, true},
		{"empty window", func(c *FaceConfig) { c.Window = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultFaceConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate: got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
