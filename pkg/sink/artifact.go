package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/teslashibe/go-proctor/pkg/audioio"
)

// timestampLayout is the artifact timestamp, millisecond resolution.
const timestampLayout = "20060102_150405.000"

// maxCollisions bounds the -N suffix search for same-millisecond artifacts.
const maxCollisions = 100

// ArtifactName returns the base file name for an event at t.
func ArtifactName(eventType string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", eventType, t.Format(timestampLayout), ext)
}

// createExclusive opens a new file in dir, never overwriting an existing one.
func createExclusive(dir, eventType string, t time.Time, ext string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	stem := fmt.Sprintf("%s_%s", eventType, t.Format(timestampLayout))
	for i := 0; i < maxCollisions; i++ {
		name := stem + "." + ext
		if i > 0 {
			name = fmt.Sprintf("%s-%d.%s", stem, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free artifact name for %s in %s", stem, dir)
}

// writeFile writes data to a new artifact and returns its path.
func writeFile(dir, eventType string, t time.Time, ext string, data []byte) (string, error) {
	f, err := createExclusive(dir, eventType, t, ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// writeWAV encodes chunk as 16-bit PCM WAV in a new artifact.
func writeWAV(dir, eventType string, t time.Time, chunk *audioio.AudioChunk) (string, error) {
	f, err := createExclusive(dir, eventType, t, "wav")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := encodeWAV(f, chunk); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func encodeWAV(w io.WriteSeeker, chunk *audioio.AudioChunk) error {
	enc := wav.NewEncoder(w, chunk.SampleRate, 16, chunk.Channels, 1)

	data := make([]int, len(chunk.Samples))
	for i, s := range chunk.Samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: chunk.Channels,
			SampleRate:  chunk.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}
