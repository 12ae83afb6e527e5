//go:build opencv

package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-proctor/pkg/detection"
)

var boxColor = color.RGBA{255, 0, 0, 0}

// BoxAnnotator draws face boxes and their index onto frames.
type BoxAnnotator struct {
	Thickness int
	Quality   int
}

func newAnnotator() (Annotator, error) {
	return &BoxAnnotator{Thickness: 2, Quality: 90}, nil
}

// Annotate decodes the frame, draws every box and re-encodes it.
func (a *BoxAnnotator) Annotate(jpeg []byte, boxes []detection.Box) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	for i, b := range boxes {
		rect := image.Rect(int(b.X), int(b.Y), int(b.X+b.W), int(b.Y+b.H))
		gocv.Rectangle(&img, rect, boxColor, a.Thickness)
		label := fmt.Sprintf("face %d", i+1)
		gocv.PutText(&img, label, image.Pt(rect.Min.X, rect.Min.Y-6), gocv.FontHersheySimplex, 0.5, boxColor, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), a.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
