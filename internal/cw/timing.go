package cw

import (
	"errors"
	"fmt"
	"time"
)

// Morse code timing ratios (ITU standard)
const (
	// DahDitRatio is the ratio of dah duration to dit duration (ITU: 3:1)
	DahDitRatio = 3.0
	// IntraCharSpaceRatio is the gap between marks of one character, in dits (ITU: 1:1)
	IntraCharSpaceRatio = 1.0
	// InterCharSpaceRatio is the default gap between characters, in dits (ITU: 3:1)
	InterCharSpaceRatio = 3.0
	// WordSpaceRatio is the default gap between words and groups, in dits (ITU: 7:1)
	WordSpaceRatio = 7.0

	// MillisecondsPerMinute is used for WPM calculations
	MillisecondsPerMinute = 60000.0
	// DitsPerWord is the standard word "PARIS" = 50 dit units
	DitsPerWord = 50.0
)

// ErrInvalidConfiguration indicates a non-positive speed or spacing value.
var ErrInvalidConfiguration = errors.New("invalid timing configuration")

// Timing holds the keying speed and spacing settings.
type Timing struct {
	// WPM is the character speed in words per minute
	WPM int
	// FarnsworthWPM is the effective speed used for character and word gaps.
	// 0 disables Farnsworth spacing.
	FarnsworthWPM int
	// CharSpace is the gap between characters, in units
	CharSpace float64
	// WordSpace is the gap between words and after each group, in units
	WordSpace float64
	// GroupSize is the number of characters keyed before a group gap
	GroupSize int
}

// DefaultTiming returns ITU spacing at 18 WPM in groups of four.
func DefaultTiming() Timing {
	return Timing{
		WPM:       18,
		CharSpace: InterCharSpaceRatio,
		WordSpace: WordSpaceRatio,
		GroupSize: 4,
	}
}

// Validate checks that every speed and spacing value is usable.
func (t Timing) Validate() error {
	var errs []error
	if t.WPM <= 0 {
		errs = append(errs, fmt.Errorf("wpm must be positive, got %d", t.WPM))
	}
	if t.FarnsworthWPM < 0 || (t.WPM > 0 && t.FarnsworthWPM > t.WPM) {
		errs = append(errs, fmt.Errorf("farnsworth wpm must be between 0 and wpm (%d), got %d", t.WPM, t.FarnsworthWPM))
	}
	if t.CharSpace <= 0 {
		errs = append(errs, fmt.Errorf("char space must be positive, got %v", t.CharSpace))
	}
	if t.WordSpace <= 0 {
		errs = append(errs, fmt.Errorf("word space must be positive, got %v", t.WordSpace))
	}
	if t.GroupSize < 1 {
		errs = append(errs, fmt.Errorf("group size must be at least 1, got %d", t.GroupSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Durations are the absolute lengths derived from a Timing.
type Durations struct {
	Unit     time.Duration
	Dit      time.Duration
	Dah      time.Duration
	IntraGap time.Duration
	CharGap  time.Duration
	WordGap  time.Duration
	// GroupGap follows the last character of a group. It equals WordGap.
	GroupGap time.Duration
}

// UnitDuration returns the dit length for a speed: 60000 / (wpm * 50) ms.
func UnitDuration(wpm int) time.Duration {
	ms := MillisecondsPerMinute / (float64(wpm) * DitsPerWord)
	return time.Duration(ms * float64(time.Millisecond))
}

// Durations converts the timing into absolute durations.
func (t Timing) Durations() (Durations, error) {
	if err := t.Validate(); err != nil {
		return Durations{}, err
	}
	unit := UnitDuration(t.WPM)

	// Farnsworth: marks at character speed, spacing at the slower effective speed
	spacing := unit
	if t.FarnsworthWPM > 0 && t.FarnsworthWPM < t.WPM {
		spacing = UnitDuration(t.FarnsworthWPM)
	}

	word := scale(spacing, t.WordSpace)
	return Durations{
		Unit:     unit,
		Dit:      unit,
		Dah:      scale(unit, DahDitRatio),
		IntraGap: scale(unit, IntraCharSpaceRatio),
		CharGap:  scale(spacing, t.CharSpace),
		WordGap:  word,
		GroupGap: word,
	}, nil
}

// Mark returns the tone length of m.
func (d Durations) Mark(m Mark) time.Duration {
	if m == Dah {
		return d.Dah
	}
	return d.Dit
}

// CharacterLength is the full slot of a character: its marks, the intra
// gaps between them, and the trailing gap, which replaces the last intra gap.
func (d Durations) CharacterLength(marks []Mark, trailing time.Duration) time.Duration {
	if len(marks) == 0 {
		return 0
	}
	var total time.Duration
	for _, m := range marks {
		total += d.Mark(m)
	}
	total += time.Duration(len(marks)-1) * d.IntraGap
	return total + trailing
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}
