//go:build opencv

package vision

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/detection"
)

// HaarDetector runs a Haar cascade over grayscale frames.
type HaarDetector struct {
	classifier gocv.CascadeClassifier
	config     detection.Config
	logger     *slog.Logger
	mu         sync.Mutex
}

func newHaar(cfg detection.Config, logger *slog.Logger) (detection.Detector, error) {
	return NewHaar(cfg, logger)
}

// NewHaar loads a cascade XML file.
func NewHaar(cfg detection.Config, logger *slog.Logger) (*HaarDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("cascade file not found: %s", cfg.ModelPath)
	}
	if logger == nil {
		logger = slog.Default()
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade from %s", cfg.ModelPath)
	}

	return &HaarDetector{
		classifier: classifier,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Detect finds faces in the JPEG image. Cascades have no score, so every
// box carries confidence 1.
func (d *HaarDetector) Detect(jpeg []byte) ([]detection.Box, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	minSize := image.Pt(d.config.MinFaceSize, d.config.MinFaceSize)
	rects := d.classifier.DetectMultiScaleWithParams(gray, d.config.ScaleFactor, d.config.MinNeighbors, 0, minSize, image.Pt(0, 0))

	boxes := make([]detection.Box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, detection.Box{
			X:          float64(r.Min.X),
			Y:          float64(r.Min.Y),
			W:          float64(r.Dx()),
			H:          float64(r.Dy()),
			Confidence: 1,
		})
	}

	if len(boxes) > 0 {
		d.logger.Debug("haar detection", "faces", len(boxes))
	}
	return boxes, nil
}

// Name returns "haar".
func (d *HaarDetector) Name() string {
	return string(detection.BackendHaar)
}

// Close releases the classifier.
func (d *HaarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
