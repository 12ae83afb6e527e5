//go:build !opencv

package vision

import (
	"log/slog"

	"github.com/teslashibe/go-proctor/pkg/camera"
	"github.com/teslashibe/go-proctor/pkg/detection"
)

const openCVAvailable = false

func newGoCVCamera(cfg camera.Config, logger *slog.Logger) (camera.Source, error) {
	return nil, ErrNotCompiled
}

func newYuNet(cfg detection.Config, logger *slog.Logger) (detection.Detector, error) {
	return nil, ErrNotCompiled
}

func newHaar(cfg detection.Config, logger *slog.Logger) (detection.Detector, error) {
	return nil, ErrNotCompiled
}

func newAnnotator() (Annotator, error) {
	return nil, ErrNotCompiled
}
