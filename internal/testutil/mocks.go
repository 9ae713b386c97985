package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/snonux/k2a/internal/dictionary"
)

// MockDictionary mocks the dictionary client
type MockDictionary struct {
	Entries map[string]*dictionary.Lookup
	Errors  map[string]error
	Calls   []string
}

// Lookup returns the configured entry, nil when none is configured
func (m *MockDictionary) Lookup(ctx context.Context, expression string) (*dictionary.Lookup, error) {
	m.Calls = append(m.Calls, expression)

	if err, ok := m.Errors[expression]; ok {
		return nil, err
	}

	return m.Entries[expression], nil
}

// WordEntry builds a dictionary lookup for a kanji word
func WordEntry(word, reading string, english ...string) *dictionary.Lookup {
	return &dictionary.Lookup{Entry: dictionary.Entry{
		Slug:     word,
		Japanese: []dictionary.SurfaceForm{{Word: &word, Reading: &reading}},
		Senses:   []dictionary.Sense{{EnglishDefinitions: english}},
	}}
}

// KanaEntry builds a dictionary lookup for a kana-only word
func KanaEntry(kana string, english ...string) *dictionary.Lookup {
	return &dictionary.Lookup{
		Entry: dictionary.Entry{
			Slug:     kana,
			Japanese: []dictionary.SurfaceForm{{Reading: &kana}},
			Senses:   []dictionary.Sense{{EnglishDefinitions: english}},
		},
		KanaOnly: true,
	}
}

// MockAudioSource mocks an audio source by writing fixed bytes
type MockAudioSource struct {
	SourceName string
	Data       []byte
	Errors     map[string]error // keyed by expression
	Calls      []string
}

// Fetch records the call and writes Data to outputFile
func (m *MockAudioSource) Fetch(ctx context.Context, expression, reading, outputFile string) error {
	m.Calls = append(m.Calls, fmt.Sprintf("%s|%s", expression, reading))

	if err, ok := m.Errors[expression]; ok {
		return err
	}

	data := m.Data
	if data == nil {
		data = []byte("mock audio data")
	}
	return os.WriteFile(outputFile, data, 0644)
}

// Name returns the mock source name
func (m *MockAudioSource) Name() string {
	if m.SourceName == "" {
		return "mock"
	}
	return m.SourceName
}

// MockProber returns durations keyed by file base name
type MockProber struct {
	Durations map[string]time.Duration
	Default   time.Duration
	Errors    map[string]error
	Calls     []string
}

// Duration returns the configured duration for path
func (m *MockProber) Duration(path string) (time.Duration, error) {
	name := filepath.Base(path)
	m.Calls = append(m.Calls, name)

	if err, ok := m.Errors[name]; ok {
		return 0, err
	}

	if d, ok := m.Durations[name]; ok {
		return d, nil
	}
	return m.Default, nil
}
