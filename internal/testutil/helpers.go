package testutil

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// CreateTestFile creates a test file with content
func CreateTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory for test file: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContent checks if a file has expected content
func AssertFileContent(t *testing.T, path string, expected []byte) {
	t.Helper()

	actual, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if !bytes.Equal(actual, expected) {
		t.Errorf("File content mismatch in %s\nExpected: %q\nActual: %q", path, expected, actual)
	}
}

// AssertContains checks that output contains a substring
func AssertContains(t *testing.T, output, substring string) {
	t.Helper()

	if !strings.Contains(output, substring) {
		t.Errorf("Output does not contain %q:\n%s", substring, output)
	}
}

// MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, no padding, no CRC
var mp3FrameHeader = []byte{0xFF, 0xFB, 0x90, 0x00}

const (
	mp3FrameSize    = 417 // 144 * 128000 / 44100
	mp3FrameSamples = 1152
	mp3SampleRate   = 44100
)

// MP3Frames returns a silent MP3 stream lasting at least d
func MP3Frames(d time.Duration) []byte {
	frameSeconds := float64(mp3FrameSamples) / mp3SampleRate
	n := int(math.Ceil(d.Seconds() / frameSeconds))
	if n < 1 {
		n = 1
	}

	frame := make([]byte, mp3FrameSize)
	copy(frame, mp3FrameHeader)

	return bytes.Repeat(frame, n)
}
