//go:build opencv

package vision

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/camera"
)

const openCVAvailable = true

// Camera captures frames from a webcam or stream through gocv.VideoCapture.
type Camera struct {
	cfg    camera.Config
	logger *slog.Logger

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

func newGoCVCamera(cfg camera.Config, logger *slog.Logger) (camera.Source, error) {
	return &Camera{cfg: cfg, logger: logger}, nil
}

// Open opens the capture device and applies the configured resolution.
func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return camera.ErrClosed
	}
	if c.cap != nil {
		return nil
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(c.cfg.Device); convErr == nil {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(c.cfg.Device)
	}
	if err != nil {
		return fmt.Errorf("open video source %s: %w", c.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("video source not opened: %s", c.cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	if c.cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(c.cfg.Framerate))
	}
	if c.cfg.Autofocus {
		vc.Set(gocv.VideoCaptureAutoFocus, 1)
	}

	c.cap = vc
	c.frame = gocv.NewMat()

	c.logger.Info("camera opened",
		"device", c.cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return nil
}

// Capture reads one frame and encodes it as JPEG.
// A concurrent Close waits for the in-flight read, which is bounded by one
// frame period of the device.
func (c *Camera) Capture(ctx context.Context) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap == nil {
		return camera.Frame{}, camera.ErrClosed
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return camera.Frame{}, fmt.Errorf("read frame from %s failed", c.cfg.Device)
	}
	captured := time.Now()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.frame, []int{int(gocv.IMWriteJpegQuality), c.cfg.Quality})
	if err != nil {
		return camera.Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return camera.Frame{
		JPEG:       data,
		Width:      c.frame.Cols(),
		Height:     c.frame.Rows(),
		CapturedAt: captured,
	}, nil
}

// Name returns "gocv".
func (c *Camera) Name() string {
	return CameraGoCV
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.cap == nil {
		return nil
	}
	c.frame.Close()
	err := c.cap.Close()
	c.cap = nil
	c.logger.Info("camera closed", "device", c.cfg.Device)
	return err
}

var _ camera.Source = (*Camera)(nil)
