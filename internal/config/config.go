// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
	"github.com/ColonelBlimp/cwtrainer/internal/cw"
	"github.com/ColonelBlimp/cwtrainer/internal/keyer"
	"github.com/ColonelBlimp/cwtrainer/internal/practice"
)

const (
	AppName       = "cwtrainer"
	ConfigType    = "yaml"
	EnvPrefix     = "CWTRAINER"
	DefaultConfig = `# CW Trainer Configuration

# Audio device settings
device_index: -1        # -1 for default device (see 'cwtrainer devices')
sample_rate: 48000      # Output sample rate in Hz
buffer_size: 512        # Audio buffer size in frames

# Keying
wpm: 18                 # Character speed
farnsworth_wpm: 0       # Effective speed for spacing, 0 = off
char_space: 3           # Gap between characters, in units
word_space: 7           # Gap between words and groups, in units
group_size: 4           # Characters per group

# Sidetone
tone_frequency: 750     # Tone pitch in Hz
volume: 0.7             # Peak gain (0.0-1.0)
ramp_ms: 5              # Attack and release of each tone
fade_ms: 10             # Fade out when stopped

# Practice
total_chars: 120        # Characters per session
lesson: "beginner"      # Lesson id (see 'cwtrainer lessons')
charset: ""             # Overrides the lesson when set
preamble: "VVVV"        # Keyed before the text, empty to disable
show_text: false        # Show the text while it plays
lessons_file: ""        # Extra lessons (TOML)

# History
history_path: ""        # SQLite file, empty = <config dir>/history.db
history_limit: 200      # Sessions kept

# Output
log_file: ""            # Rotated JSON log, empty to disable
debug: false            # Enable debug logging
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio device settings
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	BufferSize  int     `mapstructure:"buffer_size"`

	// Keying
	WPM           int     `mapstructure:"wpm"`
	FarnsworthWPM int     `mapstructure:"farnsworth_wpm"`
	CharSpace     float64 `mapstructure:"char_space"`
	WordSpace     float64 `mapstructure:"word_space"`
	GroupSize     int     `mapstructure:"group_size"`

	// Sidetone
	ToneFrequency float64 `mapstructure:"tone_frequency"`
	Volume        float64 `mapstructure:"volume"`
	RampMS        int     `mapstructure:"ramp_ms"`
	FadeMS        int     `mapstructure:"fade_ms"`

	// Practice
	TotalChars  int    `mapstructure:"total_chars"`
	Lesson      string `mapstructure:"lesson"`
	Charset     string `mapstructure:"charset"`
	Preamble    string `mapstructure:"preamble"`
	ShowText    bool   `mapstructure:"show_text"`
	LessonsFile string `mapstructure:"lessons_file"`

	// History
	HistoryPath  string `mapstructure:"history_path"`
	HistoryLimit int    `mapstructure:"history_limit"`

	// Output
	LogFile string `mapstructure:"log_file"`
	Debug   bool   `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/cwtrainer/
func Init() error {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir := Dir()
	viper.AddConfigPath(configDir)

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	err := viper.ReadInConfig()
	if err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			if err = ensureConfigExists(configDir); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	timing := cw.DefaultTiming()
	tone := keyer.DefaultSettings()
	device := audio.DefaultConfig()

	viper.SetDefault("device_index", device.DeviceIndex)
	viper.SetDefault("sample_rate", int(device.SampleRate))
	viper.SetDefault("buffer_size", device.BufferSize)
	viper.SetDefault("wpm", timing.WPM)
	viper.SetDefault("farnsworth_wpm", 0)
	viper.SetDefault("char_space", timing.CharSpace)
	viper.SetDefault("word_space", timing.WordSpace)
	viper.SetDefault("group_size", timing.GroupSize)
	viper.SetDefault("tone_frequency", int(tone.Frequency))
	viper.SetDefault("volume", tone.Volume)
	viper.SetDefault("ramp_ms", int(tone.Ramp/time.Millisecond))
	viper.SetDefault("fade_ms", int(tone.Fade/time.Millisecond))
	viper.SetDefault("total_chars", 120)
	viper.SetDefault("lesson", practice.DefaultLesson)
	viper.SetDefault("charset", "")
	viper.SetDefault("preamble", "VVVV")
	viper.SetDefault("show_text", false)
	viper.SetDefault("lessons_file", "")
	viper.SetDefault("history_path", "")
	viper.SetDefault("history_limit", 200)
	viper.SetDefault("log_file", "")
	viper.SetDefault("debug", false)
}

// Dir returns the per-user configuration directory.
func Dir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, AppName)
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Watch calls fn with the re-read settings every time the config file
// changes. A file that no longer validates is passed as an error and the
// previous settings stay in force.
func Watch(fn func(*Settings, error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Get())
	})
	viper.WatchConfig()
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Audio device settings
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Keying
	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}
	if s.FarnsworthWPM < 0 || s.FarnsworthWPM > s.WPM {
		errs = append(errs, fmt.Errorf("farnsworth_wpm must be between 0 and wpm (%d), got %d", s.WPM, s.FarnsworthWPM))
	}
	if s.CharSpace <= 0 {
		errs = append(errs, fmt.Errorf("char_space must be positive, got %v", s.CharSpace))
	}
	if s.WordSpace <= 0 {
		errs = append(errs, fmt.Errorf("word_space must be positive, got %v", s.WordSpace))
	}
	if s.GroupSize < 1 || s.GroupSize > 20 {
		errs = append(errs, fmt.Errorf("group_size must be between 1 and 20, got %d", s.GroupSize))
	}

	// Sidetone
	if s.ToneFrequency < keyer.MinFrequency || s.ToneFrequency > keyer.MaxFrequency {
		errs = append(errs, fmt.Errorf("tone_frequency must be between %.0f and %.0f Hz, got %v", keyer.MinFrequency, keyer.MaxFrequency, s.ToneFrequency))
	}
	if s.Volume < 0 || s.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume must be between 0.0 and 1.0, got %v", s.Volume))
	}
	if s.RampMS < 0 || s.RampMS > 50 {
		errs = append(errs, fmt.Errorf("ramp_ms must be between 0 and 50, got %d", s.RampMS))
	}
	if s.FadeMS < 0 || int64(s.FadeMS) > keyer.DefaultLead.Milliseconds() {
		errs = append(errs, fmt.Errorf("fade_ms must be between 0 and %d, got %d", keyer.DefaultLead.Milliseconds(), s.FadeMS))
	}

	// Practice
	if s.TotalChars < 1 || s.TotalChars > 10000 {
		errs = append(errs, fmt.Errorf("total_chars must be between 1 and 10000, got %d", s.TotalChars))
	}
	if s.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("history_limit must be at least 1, got %d", s.HistoryLimit))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", cw.ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Keyer returns the keying and sidetone settings.
func (s *Settings) Keyer() keyer.Settings {
	return keyer.Settings{
		Timing: cw.Timing{
			WPM:           s.WPM,
			FarnsworthWPM: s.FarnsworthWPM,
			CharSpace:     s.CharSpace,
			WordSpace:     s.WordSpace,
			GroupSize:     s.GroupSize,
		},
		Frequency: s.ToneFrequency,
		Volume:    s.Volume,
		Ramp:      time.Duration(s.RampMS) * time.Millisecond,
		Fade:      time.Duration(s.FadeMS) * time.Millisecond,
	}
}

// Audio returns the playback device configuration.
func (s *Settings) Audio() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.DeviceIndex = s.DeviceIndex
	cfg.SampleRate = uint32(s.SampleRate)
	cfg.BufferSize = uint32(s.BufferSize)
	return cfg
}

// Practice resolves the session options. An explicit charset wins over the
// lesson.
func (s *Settings) Practice(lessons []practice.Lesson) (practice.Options, error) {
	opts := practice.Options{
		Charset:    s.Charset,
		TotalChars: s.TotalChars,
		Preamble:   s.Preamble,
	}
	if opts.Charset != "" {
		return opts, nil
	}
	lesson, err := practice.FindLesson(lessons, s.Lesson)
	if err != nil {
		return practice.Options{}, err
	}
	opts.Charset = lesson.Chars
	return opts, nil
}

// HistoryFile returns where session history is stored.
func (s *Settings) HistoryFile() string {
	if s.HistoryPath != "" {
		return s.HistoryPath
	}
	return filepath.Join(Dir(), "history.db")
}
