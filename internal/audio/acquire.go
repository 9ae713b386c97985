package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// MaxDuration is the exclusive upper bound for an accepted clip. The
// provider's "word not found" placeholder is longer than any real
// pronunciation of a single word.
const MaxDuration = 5 * time.Second

// ErrTooLong marks a clip rejected for its duration
var ErrTooLong = errors.New("audio clip too long")

// Accept reports whether a clip of duration d is kept
func Accept(d time.Duration) bool {
	return d < MaxDuration
}

// FileName is the deterministic media file name for an expression. Fetching
// the same pair again overwrites the earlier file.
func FileName(expression, reading string) string {
	return fmt.Sprintf("k2a_%s_%s.mp3", expression, phoneticKey(expression, reading))
}

// SoundRef is the field value Anki uses to play a media file
func SoundRef(fileName string) string {
	return "[sound:" + fileName + "]"
}

// Clip is an accepted pronunciation clip in the media directory
type Clip struct {
	FileName string
	Path     string
	Duration time.Duration
	Source   string
}

// SoundRef returns the field value referencing the clip
func (c *Clip) SoundRef() string {
	return SoundRef(c.FileName)
}

// Acquirer fetches, probes and validates clips from an ordered list of sources
type Acquirer struct {
	mediaDir string
	sources  []Source
	prober   Prober
	logger   *zap.Logger
}

// NewAcquirer creates an acquirer writing into mediaDir
func NewAcquirer(mediaDir string, prober Prober, logger *zap.Logger, sources ...Source) *Acquirer {
	if prober == nil {
		prober = MP3Prober{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		mediaDir: mediaDir,
		sources:  sources,
		prober:   prober,
		logger:   logger,
	}
}

// Acquire returns the first accepted clip. Every rejected download is
// removed from the media directory. On failure the error of the last source
// tried is returned; it wraps ErrTooLong when that clip was too long.
func (a *Acquirer) Acquire(ctx context.Context, expression, reading string) (*Clip, error) {
	if len(a.sources) == 0 {
		return nil, fmt.Errorf("no audio sources configured")
	}

	name := FileName(expression, reading)
	path := filepath.Join(a.mediaDir, name)

	var lastErr error
	for _, src := range a.sources {
		d, err := a.try(ctx, src, expression, reading, path)
		if err == nil {
			return &Clip{FileName: name, Path: path, Duration: d, Source: src.Name()}, nil
		}

		a.logger.Debug("Audio clip rejected",
			zap.String("expression", expression),
			zap.String("source", src.Name()),
			zap.Error(err))
		lastErr = err
	}

	return nil, lastErr
}

func (a *Acquirer) try(ctx context.Context, src Source, expression, reading, path string) (time.Duration, error) {
	if err := src.Fetch(ctx, expression, reading, path); err != nil {
		a.discard(path)
		return 0, fmt.Errorf("%s: %w", src.Name(), err)
	}

	d, err := a.prober.Duration(path)
	if err != nil {
		a.discard(path)
		return 0, fmt.Errorf("%s: %w", src.Name(), err)
	}

	if !Accept(d) {
		a.discard(path)
		return d, fmt.Errorf("%s: clip is %.2fs: %w", src.Name(), d.Seconds(), ErrTooLong)
	}

	return d, nil
}

// discard removes a rejected artifact if it was written
func (a *Acquirer) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("Failed to remove rejected clip", zap.String("path", path), zap.Error(err))
	}
}
