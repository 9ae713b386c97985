package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAISource implements Source with OpenAI text-to-speech. It is only
// used as a fallback when no recorded clip is available.
type OpenAISource struct {
	client *openai.Client
	config *Config
}

// NewOpenAISource creates a new OpenAI TTS source
func NewOpenAISource(config *Config) (*OpenAISource, error) {
	if config.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return newOpenAISourceWithClient(openai.NewClient(config.OpenAIKey), config), nil
}

func newOpenAISourceWithClient(client *openai.Client, config *Config) *OpenAISource {
	return &OpenAISource{
		client: client,
		config: config,
	}
}

// Fetch synthesises the phonetic key of the expression as MP3
func (s *OpenAISource) Fetch(ctx context.Context, expression, reading, outputFile string) error {
	text := preprocessJapaneseText(phoneticKey(expression, reading))
	if text == "" {
		return fmt.Errorf("nothing to synthesise for %q", expression)
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.OpenAIModel),
		Input:          text,
		Voice:          openai.SpeechVoice(s.config.OpenAIVoice),
		Speed:          s.config.OpenAISpeed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}

	// Instructions are only understood by the gpt-4o family
	if s.config.OpenAIInstruction != "" && strings.HasPrefix(s.config.OpenAIModel, "gpt-4o") {
		req.Instructions = s.config.OpenAIInstruction
	}

	response, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "does not have access to model") {
			return fmt.Errorf("OpenAI TTS API error: %w\nNote: the %s model requires access, try openai_model = tts-1", err, s.config.OpenAIModel)
		}
		return fmt.Errorf("OpenAI TTS API error: %w", err)
	}
	defer response.Close()

	if dir := filepath.Dir(outputFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, response)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	if written == 0 {
		return fmt.Errorf("no audio data received from OpenAI")
	}

	return nil
}

// Name returns the source name
func (s *OpenAISource) Name() string {
	return "openai"
}

// preprocessJapaneseText strips punctuation that TTS engines tend to read out
func preprocessJapaneseText(text string) string {
	cleaned := strings.TrimSpace(text)

	punctuationToRemove := []string{"。", "、", "！", "？", "「", "」", "『", "』", "（", "）", "!", "?", ".", ",", "\"", "'", "(", ")"}
	for _, punct := range punctuationToRemove {
		cleaned = strings.ReplaceAll(cleaned, punct, "")
	}

	return strings.TrimSpace(cleaned)
}

// Models returns the text-to-speech models available to the API key,
// sorted by id
func (s *OpenAISource) Models(ctx context.Context) ([]string, error) {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var tts []string
	for _, m := range list.Models {
		if strings.Contains(m.ID, "tts") {
			tts = append(tts, m.ID)
		}
	}
	sort.Strings(tts)
	return tts, nil
}
