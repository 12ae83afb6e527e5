package counter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		count, total int
		expect       int
	}{
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{5, 10, 50},
		{10, 10, 100},
		{25, 10, 100},
		{3, 0, 0},
		{3, -5, 0},
	}
	for _, tc := range tests {
		if got := Percent(tc.count, tc.total); got != tc.expect {
			t.Errorf("Percent(%d, %d): got %d, want %d", tc.count, tc.total, got, tc.expect)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"memory", Config{Backend: BackendMemory}, false},
		{"sqlite without path", Config{Backend: BackendSQLite}, true},
		{"unknown", Config{Backend: "redis", Path: "x"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate: got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

// counterContract runs the shared behavior every backend must satisfy.
func counterContract(t *testing.T, c Counter) {
	t.Helper()
	ctx := context.Background()

	if n, err := c.Read(ctx); err != nil || n != 0 {
		t.Fatalf("initial Read: got %d, %v; want 0", n, err)
	}
	for want := 1; want <= 3; want++ {
		n, err := c.Increment(ctx)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != want {
			t.Errorf("Increment: got %d, want %d", n, want)
		}
	}
	if n, _ := c.Read(ctx); n != 3 {
		t.Errorf("Read: got %d, want 3", n)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := c.Read(ctx); n != 0 {
		t.Errorf("Read after Reset: got %d, want 0", n)
	}
}

func TestMemoryCounter(t *testing.T) {
	counterContract(t, NewMemoryCounter())
}

func TestMemoryCounter_FailWith(t *testing.T) {
	c := NewMemoryCounter()
	errDisk := errors.New("disk full")
	c.FailWith(errDisk)

	if _, err := c.Increment(context.Background()); !errors.Is(err, errDisk) {
		t.Errorf("Increment: expected injected error, got %v", err)
	}
	c.FailWith(nil)
	if n, err := c.Increment(context.Background()); err != nil || n != 1 {
		t.Errorf("Increment after recovery: got %d, %v", n, err)
	}
}

func TestFileCounter(t *testing.T) {
	c, err := NewFileCounter(filepath.Join(t.TempDir(), "suspect_count.json"))
	if err != nil {
		t.Fatalf("NewFileCounter: %v", err)
	}
	counterContract(t, c)
}

func TestFileCounter_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "suspect_count.json")
	c, err := NewFileCounter(path)
	if err != nil {
		t.Fatalf("NewFileCounter: %v", err)
	}
	c.Increment(context.Background())
	c.Increment(context.Background())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"current":2}` {
		t.Errorf("file contents: got %s", data)
	}
}

func TestFileCounter_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suspect_count.json")
	if err := os.WriteFile(path, []byte(`{"current": 7}`), 0644); err != nil {
		t.Fatal(err)
	}
	c, _ := NewFileCounter(path)
	if n, err := c.Increment(context.Background()); err != nil || n != 8 {
		t.Errorf("Increment: got %d, %v; want 8", n, err)
	}
}

func TestFileCounter_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suspect_count.json")
	os.WriteFile(path, []byte("{not json"), 0644)
	c, _ := NewFileCounter(path)
	if _, err := c.Increment(context.Background()); err == nil {
		t.Error("expected error for corrupt counter file")
	}
}

func TestFileCounter_ConcurrentInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suspect_count.json")
	a, _ := NewFileCounter(path)
	b, _ := NewFileCounter(path)

	const perWriter = 50
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range []*FileCounter{a, a, b, b} {
		wg.Add(1)
		go func(c *FileCounter) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := c.Increment(ctx); err != nil {
					t.Errorf("Increment: %v", err)
					return
				}
			}
		}(c)
	}
	wg.Wait()

	n, err := a.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4*perWriter {
		t.Errorf("lost updates: got %d, want %d", n, 4*perWriter)
	}
}

func TestFileCounter_Cancelled(t *testing.T) {
	c, _ := NewFileCounter(filepath.Join(t.TempDir(), "c.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Increment(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSQLiteCounter(t *testing.T) {
	c, err := NewSQLiteCounter(filepath.Join(t.TempDir(), "proctor.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCounter: %v", err)
	}
	defer c.Close()
	counterContract(t, c)
}

func TestSQLiteCounter_ConcurrentConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proctor.db")
	a, err := NewSQLiteCounter(path)
	if err != nil {
		t.Fatalf("NewSQLiteCounter: %v", err)
	}
	defer a.Close()
	b, err := NewSQLiteCounter(path)
	if err != nil {
		t.Fatalf("NewSQLiteCounter: %v", err)
	}
	defer b.Close()

	const perWriter = 25
	var wg sync.WaitGroup
	for _, c := range []*SQLiteCounter{a, b} {
		wg.Add(1)
		go func(c *SQLiteCounter) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := c.Increment(context.Background()); err != nil {
					t.Errorf("Increment: %v", err)
					return
				}
			}
		}(c)
	}
	wg.Wait()

	if n, _ := a.Read(context.Background()); n != 2*perWriter {
		t.Errorf("got %d, want %d", n, 2*perWriter)
	}
}

func TestSQLiteCounter_Ledger(t *testing.T) {
	c, err := NewSQLiteCounter(filepath.Join(t.TempDir(), "proctor.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCounter: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []proctor.Event{
		{ID: "e1", SessionID: "s1", Modality: proctor.ModalityVisual, Type: proctor.EventMovement, Verdict: proctor.VerdictMovement, Artifact: "movement_1.jpg", Count: 1, At: base},
		{ID: "e2", SessionID: "s2", Modality: proctor.ModalityAudio, Type: proctor.EventSound, Verdict: proctor.VerdictLoud, Artifact: "sound_1.wav", Count: 2, At: base.Add(time.Second)},
	}
	for _, ev := range events {
		if err := c.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := c.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent: got %d events, want 2", len(got))
	}
	if got[0].ID != "e2" || got[0].Type != proctor.EventSound || got[0].Modality != proctor.ModalityAudio {
		t.Errorf("newest event: got %+v", got[0])
	}
	if !got[1].At.Equal(base) {
		t.Errorf("At: got %v, want %v", got[1].At, base)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, cfg := range []Config{
		{Backend: BackendFile, Path: filepath.Join(dir, "c.json")},
		{Backend: BackendSQLite, Path: filepath.Join(dir, "c.db")},
		{Backend: BackendMemory},
	} {
		c, closeFn, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open(%s): %v", cfg.Backend, err)
		}
		if _, err := c.Increment(context.Background()); err != nil {
			t.Errorf("%s Increment: %v", cfg.Backend, err)
		}
		if err := closeFn(); err != nil {
			t.Errorf("%s close: %v", cfg.Backend, err)
		}
	}
}
