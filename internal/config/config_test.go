package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
	"github.com/ColonelBlimp/cwtrainer/internal/practice"
)

func resetViper() {
	viper.Reset()
}

// isolate points HOME and the XDG config dir at a temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	return tmpDir
}

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	})
}

func TestInit_WithDefaults(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	chdir(t, tmpDir)
	writeConfig(t, filepath.Join(tmpDir, ".config", AppName), "config.yaml", DefaultConfig)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"device_index", -1},
		{"sample_rate", 48000},
		{"buffer_size", 512},
		{"wpm", 18},
		{"farnsworth_wpm", 0},
		{"group_size", 4},
		{"tone_frequency", 750},
		{"volume", 0.7},
		{"ramp_ms", 5},
		{"fade_ms", 10},
		{"total_chars", 120},
		{"lesson", "beginner"},
		{"preamble", "VVVV"},
		{"show_text", false},
		{"history_limit", 200},
		{"debug", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v (%T), want %v", tt.key, got, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	chdir(t, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("Init() did not create config file at %s", configPath)
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	writeConfig(t, filepath.Join(tmpDir, ".config", AppName), "config.yaml", "wpm: 20")

	local := filepath.Join(tmpDir, "work")
	writeConfig(t, local, "config.yaml", "wpm: 25")
	chdir(t, local)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("wpm"); got != 25 {
		t.Errorf("viper.GetInt(wpm) = %d, want 25 (local config)", got)
	}
}

func TestInit_DotConfigTakesPrecedence(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	writeConfig(t, tmpDir, "config.yaml", "wpm: 20")
	writeConfig(t, tmpDir, ".config.yaml", "wpm: 30")
	chdir(t, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("wpm"); got != 30 {
		t.Errorf("viper.GetInt(wpm) = %d, want 30 (.config.yaml)", got)
	}
}

func TestInit_EnvOverridesFile(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	writeConfig(t, tmpDir, "config.yaml", "wpm: 20")
	chdir(t, tmpDir)
	t.Setenv("CWTRAINER_WPM", "35")

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	s, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.WPM != 35 {
		t.Errorf("WPM = %d, want 35 from environment", s.WPM)
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	writeConfig(t, tmpDir, "config.yaml", "wpm: [unclosed")
	chdir(t, tmpDir)

	if err := Init(); err == nil {
		t.Error("Init() expected error for malformed YAML")
	}
}

func TestGet_ReturnsSettings(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	writeConfig(t, tmpDir, "config.yaml", `
wpm: 22
farnsworth_wpm: 12
group_size: 5
tone_frequency: 650
volume: 0.5
lesson: "numbers"
charset: "KMRS"
preamble: "QRV"
show_text: true
`)
	chdir(t, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	s, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if s.WPM != 22 || s.FarnsworthWPM != 12 || s.GroupSize != 5 {
		t.Errorf("timing = %d/%d/%d, want 22/12/5", s.WPM, s.FarnsworthWPM, s.GroupSize)
	}
	if s.ToneFrequency != 650 || s.Volume != 0.5 {
		t.Errorf("tone = %v Hz at %v, want 650 Hz at 0.5", s.ToneFrequency, s.Volume)
	}
	if s.Lesson != "numbers" || s.Charset != "KMRS" || s.Preamble != "QRV" || !s.ShowText {
		t.Errorf("practice = %+v", s)
	}
	// unset keys keep their defaults
	if s.SampleRate != 48000 || s.TotalChars != 120 {
		t.Errorf("defaults lost: sample_rate=%v total_chars=%d", s.SampleRate, s.TotalChars)
	}
}

func TestGet_InvalidSettings(t *testing.T) {
	resetViper()
	tmpDir := isolate(t)
	writeConfig(t, tmpDir, "config.yaml", "wpm: 2")
	chdir(t, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	_, err := Get()
	if err == nil {
		t.Fatal("Get() expected error for wpm 2")
	}
	if !errors.Is(err, cw.ErrInvalidConfiguration) {
		t.Errorf("Get() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestEnsureConfigExists_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "wpm: 33")

	if err := ensureConfigExists(dir); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if string(data) != "wpm: 33" {
		t.Errorf("config overwritten: %q", data)
	}
}

func TestDefaultConfig_ContainsExpectedKeys(t *testing.T) {
	keys := []string{
		"device_index", "sample_rate", "buffer_size", "wpm", "farnsworth_wpm",
		"char_space", "word_space", "group_size", "tone_frequency", "volume",
		"ramp_ms", "fade_ms", "total_chars", "lesson", "charset", "preamble",
		"show_text", "lessons_file", "history_path", "history_limit", "log_file", "debug",
	}
	for _, key := range keys {
		if !strings.Contains(DefaultConfig, key+":") {
			t.Errorf("DefaultConfig missing key %q", key)
		}
	}
}

func TestSettings_Validate_ValidSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		field  string
	}{
		{"sample rate too low", func(s *Settings) { s.SampleRate = 4000 }, "sample_rate"},
		{"buffer not power of two", func(s *Settings) { s.BufferSize = 500 }, "buffer_size"},
		{"buffer too large", func(s *Settings) { s.BufferSize = 16384 }, "buffer_size"},
		{"wpm too low", func(s *Settings) { s.WPM = 4 }, "wpm"},
		{"wpm too high", func(s *Settings) { s.WPM = 61 }, "wpm"},
		{"farnsworth above wpm", func(s *Settings) { s.FarnsworthWPM = 30 }, "farnsworth_wpm"},
		{"farnsworth negative", func(s *Settings) { s.FarnsworthWPM = -1 }, "farnsworth_wpm"},
		{"char space zero", func(s *Settings) { s.CharSpace = 0 }, "char_space"},
		{"word space negative", func(s *Settings) { s.WordSpace = -7 }, "word_space"},
		{"group size zero", func(s *Settings) { s.GroupSize = 0 }, "group_size"},
		{"tone too low", func(s *Settings) { s.ToneFrequency = 50 }, "tone_frequency"},
		{"tone too high", func(s *Settings) { s.ToneFrequency = 3500 }, "tone_frequency"},
		{"volume above one", func(s *Settings) { s.Volume = 1.5 }, "volume"},
		{"ramp negative", func(s *Settings) { s.RampMS = -1 }, "ramp_ms"},
		{"fade longer than lead", func(s *Settings) { s.FadeMS = 500 }, "fade_ms"},
		{"total chars zero", func(s *Settings) { s.TotalChars = 0 }, "total_chars"},
		{"history limit zero", func(s *Settings) { s.HistoryLimit = 0 }, "history_limit"},
		{"tone above nyquist", func(s *Settings) { s.SampleRate = 5000; s.ToneFrequency = 2600 }, "Nyquist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !errors.Is(err, cw.ErrInvalidConfiguration) {
				t.Errorf("error %v does not wrap ErrInvalidConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %q", err, tt.field)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := validSettings()
	s.WPM = 100
	s.Volume = -1
	s.GroupSize = 0

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, field := range []string{"wpm", "volume", "group_size"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q missing %q", err, field)
		}
	}
}

func TestSettings_Keyer(t *testing.T) {
	s := validSettings()
	s.FarnsworthWPM = 10
	k := s.Keyer()

	if k.WPM != 20 || k.FarnsworthWPM != 10 || k.GroupSize != 5 {
		t.Errorf("timing = %+v", k.Timing)
	}
	if k.Frequency != 700 || k.Volume != 0.6 {
		t.Errorf("tone = %v Hz at %v", k.Frequency, k.Volume)
	}
	if k.Ramp != 4*time.Millisecond || k.Fade != 8*time.Millisecond {
		t.Errorf("ramp/fade = %v/%v, want 4ms/8ms", k.Ramp, k.Fade)
	}
	if err := k.Validate(); err != nil {
		t.Errorf("keyer settings invalid: %v", err)
	}
}

func TestSettings_Audio(t *testing.T) {
	s := validSettings()
	s.DeviceIndex = 2
	s.BufferSize = 256
	a := s.Audio()

	if a.DeviceIndex != 2 || a.SampleRate != 44100 || a.BufferSize != uint32(256) || a.Channels != 1 {
		t.Errorf("Audio() = %+v", a)
	}
}

func TestSettings_Practice(t *testing.T) {
	lessons := practice.Predefined()

	tests := []struct {
		name        string
		lesson      string
		charset     string
		wantCharset string
		wantErr     error
	}{
		{"lesson chars", "numbers", "", "0123456789", nil},
		{"charset overrides lesson", "numbers", "KM", "KM", nil},
		{"unknown lesson", "nope", "", "", practice.ErrUnknownLesson},
		{"charset skips lookup", "nope", "ABC", "ABC", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.Lesson = tt.lesson
			s.Charset = tt.charset

			opts, err := s.Practice(lessons)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Practice() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Practice() error = %v", err)
			}
			if opts.Charset != tt.wantCharset || opts.TotalChars != 60 || opts.Preamble != "VVVV" {
				t.Errorf("Practice() = %+v", opts)
			}
		})
	}
}

func TestSettings_HistoryFile(t *testing.T) {
	s := validSettings()
	if got := s.HistoryFile(); got != "/tmp/h.db" {
		t.Errorf("HistoryFile() = %q, want explicit path", got)
	}

	tmpDir := isolate(t)
	s.HistoryPath = ""
	want := filepath.Join(tmpDir, ".config", AppName, "history.db")
	if got := s.HistoryFile(); got != want {
		t.Errorf("HistoryFile() = %q, want %q", got, want)
	}
}

func validSettings() *Settings {
	return &Settings{
		DeviceIndex:   -1,
		SampleRate:    44100,
		BufferSize:    1024,
		WPM:           20,
		CharSpace:     3,
		WordSpace:     7,
		GroupSize:     5,
		ToneFrequency: 700,
		Volume:        0.6,
		RampMS:        4,
		FadeMS:        8,
		TotalChars:    60,
		Lesson:        "beginner",
		Preamble:      "VVVV",
		HistoryPath:   "/tmp/h.db",
		HistoryLimit:  50,
	}
}
