package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/snonux/k2a/internal/testutil"
)

func TestAccept(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want bool
	}{
		{3 * time.Second, true},
		{4990 * time.Millisecond, true},
		{5 * time.Second, false},
		{8 * time.Second, false},
		{0, true},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			if got := Accept(tt.d); got != tt.want {
				t.Errorf("Accept(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		expression string
		reading    string
		want       string
	}{
		{"猫", "ねこ", "k2a_猫_ねこ.mp3"},
		{"ねこ", "", "k2a_ねこ_ねこ.mp3"},
	}

	for _, tt := range tests {
		if got := FileName(tt.expression, tt.reading); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.expression, tt.reading, got, tt.want)
		}
	}

	if got := SoundRef("k2a_猫_ねこ.mp3"); got != "[sound:k2a_猫_ねこ.mp3]" {
		t.Errorf("SoundRef() = %q", got)
	}
}

func TestAcquire_Accepted(t *testing.T) {
	mediaDir := t.TempDir()
	source := &testutil.MockAudioSource{}
	prober := &testutil.MockProber{Default: 4990 * time.Millisecond}
	acq := NewAcquirer(mediaDir, prober, nil, source)

	clip, err := acq.Acquire(context.Background(), "猫", "ねこ")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if clip.FileName != "k2a_猫_ねこ.mp3" {
		t.Errorf("FileName = %q", clip.FileName)
	}
	if clip.SoundRef() != "[sound:k2a_猫_ねこ.mp3]" {
		t.Errorf("SoundRef() = %q", clip.SoundRef())
	}
	testutil.AssertFileExists(t, filepath.Join(mediaDir, clip.FileName))

	if len(source.Calls) != 1 || source.Calls[0] != "猫|ねこ" {
		t.Errorf("unexpected source calls: %v", source.Calls)
	}
}

func TestAcquire_TooLongRemovesArtifact(t *testing.T) {
	for _, d := range []time.Duration{5 * time.Second, 8 * time.Second} {
		t.Run(d.String(), func(t *testing.T) {
			mediaDir := t.TempDir()
			prober := &testutil.MockProber{Default: d}
			acq := NewAcquirer(mediaDir, prober, nil, &testutil.MockAudioSource{})

			clip, err := acq.Acquire(context.Background(), "猫", "ねこ")
			if clip != nil {
				t.Fatalf("Acquire() = %+v, want rejection", clip)
			}
			if !errors.Is(err, ErrTooLong) {
				t.Errorf("error = %v, want ErrTooLong", err)
			}
			testutil.AssertFileNotExists(t, filepath.Join(mediaDir, "k2a_猫_ねこ.mp3"))
		})
	}
}

func TestAcquire_FetchError(t *testing.T) {
	mediaDir := t.TempDir()
	source := &testutil.MockAudioSource{Errors: map[string]error{"猫": errors.New("timeout")}}
	prober := &testutil.MockProber{Default: time.Second}
	acq := NewAcquirer(mediaDir, prober, nil, source)

	_, err := acq.Acquire(context.Background(), "猫", "ねこ")
	if err == nil || errors.Is(err, ErrTooLong) {
		t.Fatalf("error = %v, want fetch error", err)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error %q does not mention the cause", err)
	}
	if len(prober.Calls) != 0 {
		t.Error("prober should not run after a failed fetch")
	}
}

func TestAcquire_ProbeErrorRemovesArtifact(t *testing.T) {
	mediaDir := t.TempDir()
	prober := &testutil.MockProber{Errors: map[string]error{"k2a_猫_ねこ.mp3": errors.New("not an mp3")}}
	acq := NewAcquirer(mediaDir, prober, nil, &testutil.MockAudioSource{})

	if _, err := acq.Acquire(context.Background(), "猫", "ねこ"); err == nil {
		t.Fatal("expected probe error")
	}
	testutil.AssertFileNotExists(t, filepath.Join(mediaDir, "k2a_猫_ねこ.mp3"))
}

func TestAcquire_FallbackSource(t *testing.T) {
	mediaDir := t.TempDir()
	primary := &testutil.MockAudioSource{SourceName: "primary", Data: []byte("placeholder")}
	fallback := &testutil.MockAudioSource{SourceName: "fallback", Data: []byte("tts")}

	// the prober sees the same file name for both sources, so it is driven
	// by call order
	prober := &sequenceProber{durations: []time.Duration{6 * time.Second, 2 * time.Second}}
	acq := NewAcquirer(mediaDir, prober, nil, primary, fallback)

	clip, err := acq.Acquire(context.Background(), "ねこ", "")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if clip.Source != "fallback" {
		t.Errorf("Source = %q, want fallback", clip.Source)
	}
	testutil.AssertFileContent(t, clip.Path, []byte("tts"))
	if fallback.Calls[0] != "ねこ|" {
		t.Errorf("fallback call = %q", fallback.Calls[0])
	}
}

func TestAcquire_NoSources(t *testing.T) {
	acq := NewAcquirer(t.TempDir(), nil, nil)
	if _, err := acq.Acquire(context.Background(), "猫", "ねこ"); err == nil {
		t.Error("expected error without sources")
	}
}

type sequenceProber struct {
	durations []time.Duration
	calls     int
}

func (p *sequenceProber) Duration(path string) (time.Duration, error) {
	d := p.durations[p.calls]
	p.calls++
	return d, nil
}
