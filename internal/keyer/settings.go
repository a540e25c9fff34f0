package keyer

import (
	"errors"
	"fmt"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

// Audio limits
const (
	MinFrequency = 100.0
	MaxFrequency = 3000.0
)

// Settings is everything a play request is keyed with.
type Settings struct {
	cw.Timing
	// Frequency is the sidetone pitch in Hz
	Frequency float64
	// Volume is the peak gain (0.0-1.0)
	Volume float64
	// Ramp is the attack and release time of each tone
	Ramp time.Duration
	// Fade is how long a sounding tone takes to die away on Stop
	Fade time.Duration
}

// DefaultSettings returns the default timing with a 750 Hz tone.
func DefaultSettings() Settings {
	return Settings{
		Timing:    cw.DefaultTiming(),
		Frequency: 750,
		Volume:    0.7,
		Ramp:      5 * time.Millisecond,
		Fade:      10 * time.Millisecond,
	}
}

// Validate checks timing and audio values together.
func (s Settings) Validate() error {
	var errs []error
	if err := s.Timing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Frequency < MinFrequency || s.Frequency > MaxFrequency {
		errs = append(errs, fmt.Errorf("frequency must be between %.0f and %.0f Hz, got %.1f", MinFrequency, MaxFrequency, s.Frequency))
	}
	if s.Volume < 0 || s.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", s.Volume))
	}
	if s.Ramp < 0 {
		errs = append(errs, fmt.Errorf("ramp must not be negative, got %v", s.Ramp))
	}
	if s.Fade < 0 {
		errs = append(errs, fmt.Errorf("fade must not be negative, got %v", s.Fade))
	}
	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	if !errors.Is(err, cw.ErrInvalidConfiguration) {
		err = fmt.Errorf("%w: %w", cw.ErrInvalidConfiguration, err)
	}
	return err
}

// Update is a partial Settings. Nil fields are left unchanged.
type Update struct {
	WPM           *int
	FarnsworthWPM *int
	CharSpace     *float64
	WordSpace     *float64
	GroupSize     *int
	Frequency     *float64
	Volume        *float64
	Ramp          *time.Duration
	Fade          *time.Duration
}

// Apply returns s with every non-nil field of u merged in.
func (u Update) Apply(s Settings) Settings {
	if u.WPM != nil {
		s.WPM = *u.WPM
	}
	if u.FarnsworthWPM != nil {
		s.FarnsworthWPM = *u.FarnsworthWPM
	}
	if u.CharSpace != nil {
		s.CharSpace = *u.CharSpace
	}
	if u.WordSpace != nil {
		s.WordSpace = *u.WordSpace
	}
	if u.GroupSize != nil {
		s.GroupSize = *u.GroupSize
	}
	if u.Frequency != nil {
		s.Frequency = *u.Frequency
	}
	if u.Volume != nil {
		s.Volume = *u.Volume
	}
	if u.Ramp != nil {
		s.Ramp = *u.Ramp
	}
	if u.Fade != nil {
		s.Fade = *u.Fade
	}
	return s
}

// Diff returns the Update that turns s into next.
func (s Settings) Diff(next Settings) Update {
	var u Update
	if next.WPM != s.WPM {
		u.WPM = &next.WPM
	}
	if next.FarnsworthWPM != s.FarnsworthWPM {
		u.FarnsworthWPM = &next.FarnsworthWPM
	}
	if next.CharSpace != s.CharSpace {
		u.CharSpace = &next.CharSpace
	}
	if next.WordSpace != s.WordSpace {
		u.WordSpace = &next.WordSpace
	}
	if next.GroupSize != s.GroupSize {
		u.GroupSize = &next.GroupSize
	}
	if next.Frequency != s.Frequency {
		u.Frequency = &next.Frequency
	}
	if next.Volume != s.Volume {
		u.Volume = &next.Volume
	}
	if next.Ramp != s.Ramp {
		u.Ramp = &next.Ramp
	}
	if next.Fade != s.Fade {
		u.Fade = &next.Fade
	}
	return u
}
