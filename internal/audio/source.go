package audio

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Source defines the interface for pronunciation clip providers
type Source interface {
	// Fetch downloads the clip for expression/reading and saves it to outputFile
	Fetch(ctx context.Context, expression, reading, outputFile string) error

	// Name returns the source name
	Name() string
}

// Config holds configuration for the audio sources
type Config struct {
	MediaDir string        // Collection media directory, clips are written here
	Timeout  time.Duration // HTTP timeout for the LanguagePod101 source

	// OpenAI text-to-speech fallback, tried when the primary clip is rejected
	OpenAIFallback    bool
	OpenAIKey         string
	OpenAIModel       string  // "tts-1", "tts-1-hd", or "gpt-4o-mini-tts"
	OpenAIVoice       string  // "alloy", "nova", "shimmer", ...
	OpenAISpeed       float64 // 0.25 to 4.0
	OpenAIInstruction string  // Voice instructions for gpt-4o-mini-tts model
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		OpenAIModel:       "gpt-4o-mini-tts",
		OpenAIVoice:       "nova",
		OpenAISpeed:       1.0,
		OpenAIInstruction: "You are a native Japanese speaker (日本語). Pronounce the word once, slowly and clearly, with standard Tokyo pitch accent for language learners.",
	}
}

// NewSources creates the ordered source chain for the configuration.
// LanguagePod101 always comes first.
func NewSources(config *Config, logger *zap.Logger) ([]Source, error) {
	if config == nil {
		config = DefaultConfig()
	}

	sources := []Source{
		NewPod101Source(&Pod101Options{Timeout: config.Timeout, Logger: logger}),
	}

	if config.OpenAIFallback {
		if config.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required for the TTS fallback")
		}
		tts, err := NewOpenAISource(config)
		if err != nil {
			return nil, err
		}
		sources = append(sources, tts)
	}

	return sources, nil
}

// phoneticKey is the kana sent to providers, the expression stands in for
// an empty reading
func phoneticKey(expression, reading string) string {
	if reading == "" {
		return expression
	}
	return reading
}
