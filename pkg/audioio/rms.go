package audioio

import (
	"context"
	"math"
	"time"
)

// fullScale converts PCM16 samples to the [-1, 1] range.
const fullScale = 32768.0

// RMS returns the root-mean-square level of the samples, normalized so that
// a full-scale square wave is 1.0. An empty slice has level 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level returns the RMS level of the chunk.
func (c *AudioChunk) Level() float64 {
	return RMS(c.Samples)
}

// Record reads from src until at least d of audio has been captured and
// returns it as a single chunk. The context is checked between reads, so a
// cancelled recording returns after at most one buffer.
func Record(ctx context.Context, src Source, d time.Duration) (AudioChunk, error) {
	cfg := src.Config()
	want := cfg.FramesFor(d) * cfg.Channels

	out := AudioChunk{
		Samples:    make([]int16, 0, want),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
	for len(out.Samples) < want {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		chunk, err := src.Read(ctx)
		if err != nil {
			return out, err
		}
		out.Append(chunk)
	}
	return out, nil
}
