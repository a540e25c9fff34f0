package keyer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2/wav"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

func TestTimeline_AudioTones(t *testing.T) {
	tl := Plan("E", durations20(t), 4, nil)

	tones := tl.AudioTones(2*time.Second, 0.5)

	if len(tones) != 1 {
		t.Fatalf("tones = %d, want 1", len(tones))
	}
	if tones[0].At != 2*time.Second || tones[0].Duration != 60*ms || tones[0].Volume != 0.5 {
		t.Errorf("tone = %+v", tones[0])
	}
}

func TestRender_WritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paris.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	settings := DefaultSettings()
	settings.WPM = 20
	settings.GroupSize = 5
	tl, err := Render(f, "PARIS", settings, 8000, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	streamer, format, err := wav.Decode(r)
	if err != nil {
		t.Fatalf("wav.Decode() error = %v", err)
	}
	defer streamer.Close()

	if format.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", format.SampleRate)
	}
	// PARIS as one group is 50 units at 60ms
	if tl.Length != 3*time.Second {
		t.Errorf("Length = %v, want 3s", tl.Length)
	}
	if got, want := streamer.Len(), 24000; got != want {
		t.Errorf("frames = %d, want %d", got, want)
	}
}

func TestRender_InvalidSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.WPM = 0

	path := filepath.Join(t.TempDir(), "bad.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if _, err := Render(f, "E", settings, 8000, nil); !errors.Is(err, cw.ErrInvalidConfiguration) {
		t.Errorf("Render() error = %v, want ErrInvalidConfiguration", err)
	}
}
