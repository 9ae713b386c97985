package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tcolgate/mp3"
)

// Prober measures the playback duration of a downloaded clip
type Prober interface {
	Duration(path string) (time.Duration, error)
}

// MP3Prober sums the durations of the MPEG audio frames in a file
type MP3Prober struct{}

// Duration decodes every frame header in path and returns the total length
func (MP3Prober) Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open clip: %w", err)
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)

	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			// a truncated last frame still leaves a usable length
			if errors.Is(err, io.EOF) || (errors.Is(err, io.ErrUnexpectedEOF) && frames > 0) {
				break
			}
			return 0, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		total += frame.Duration()
		frames++
	}

	if frames == 0 {
		return 0, fmt.Errorf("no mp3 frames in %s", path)
	}

	return total, nil
}
