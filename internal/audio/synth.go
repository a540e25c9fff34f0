package audio

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Tone is a keyed tone placed on the synth's sample clock.
type Tone struct {
	// At is the start time on the synth clock (see Synth.Now)
	At time.Duration
	// Duration is the nominal length; attack and release ramps fit inside it
	Duration time.Duration
	// Volume is the peak gain (0.0-1.0)
	Volume float64
}

// segment is a gain envelope in frame units.
type segment struct {
	start, end int64
	ramp       int64
	level      float64
	// release segments fall linearly from level to zero over [start, end)
	release bool
}

func (s segment) gain(f int64) float64 {
	if f < s.start || f >= s.end {
		return 0
	}
	if s.release {
		return s.level * float64(s.end-f) / float64(s.end-s.start)
	}
	g := s.level
	if s.ramp > 0 {
		if up := f - s.start; up < s.ramp {
			g *= float64(up) / float64(s.ramp)
		}
		if down := s.end - f; down < s.ramp {
			g *= float64(down) / float64(s.ramp)
		}
	}
	return g
}

// Synth is a free-running sine oscillator gated by scheduled gain envelopes.
// Its clock is the number of frames rendered, so tone timing is sample accurate
// regardless of when Schedule is called relative to the audio callback.
type Synth struct {
	mu         sync.Mutex
	sampleRate float64
	frequency  float64
	phase      float64
	pos        int64
	segments   []segment // sorted by start, non-overlapping
}

// NewSynth creates a synth rendering at sampleRate with the given tone frequency.
func NewSynth(sampleRate, frequency float64) *Synth {
	return &Synth{
		sampleRate: sampleRate,
		frequency:  frequency,
	}
}

// SampleRate returns the render rate in Hz.
func (s *Synth) SampleRate() float64 {
	return s.sampleRate
}

// Now returns the synth clock: the time of the next frame to be rendered.
func (s *Synth) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration(s.pos)
}

// Schedule adds tones to the envelope. Tones that already ended are dropped.
// ramp is the attack and release time, clamped to half of each tone.
func (s *Synth) Schedule(tones []Tone, ramp time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rampFrames := s.frames(ramp)
	for _, t := range tones {
		start := s.frames(t.At)
		end := start + s.frames(t.Duration)
		if end <= s.pos || end <= start {
			continue
		}
		r := rampFrames
		if half := (end - start) / 2; r > half {
			r = half
		}
		s.segments = append(s.segments, segment{start: start, end: end, ramp: r, level: t.Volume})
	}
	sort.SliceStable(s.segments, func(i, j int) bool {
		return s.segments[i].start < s.segments[j].start
	})
}

// Cancel drops every tone that has not started. A tone that is sounding is
// replaced by a linear release from its current gain to zero over fade.
func (s *Synth) Cancel(fade time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current float64
	for _, seg := range s.segments {
		if g := seg.gain(s.pos); g > 0 {
			current = g
			break
		}
	}
	s.segments = s.segments[:0]

	fadeFrames := s.frames(fade)
	if current > 0 && fadeFrames > 0 {
		s.segments = append(s.segments, segment{
			start:   s.pos,
			end:     s.pos + fadeFrames,
			level:   current,
			release: true,
		})
	}
}

// SetFrequency retunes the oscillator. The change is heard on the next frame.
func (s *Synth) SetFrequency(hz float64) {
	s.mu.Lock()
	s.frequency = hz
	s.mu.Unlock()
}

// Frequency returns the oscillator frequency in Hz.
func (s *Synth) Frequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

// Pending returns the number of envelopes not yet fully rendered.
func (s *Synth) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, seg := range s.segments {
		if seg.end > s.pos {
			n++
		}
	}
	return n
}

// Render fills out with mono samples and advances the clock by len(out) frames.
func (s *Synth) Render(out []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := 2 * math.Pi * s.frequency / s.sampleRate
	for i := range out {
		for len(s.segments) > 0 && s.segments[0].end <= s.pos {
			s.segments = s.segments[1:]
		}
		g := 0.0
		if len(s.segments) > 0 {
			g = s.segments[0].gain(s.pos)
		}
		out[i] = float32(g * math.Sin(s.phase))

		s.phase += step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
		s.pos++
	}
}

func (s *Synth) frames(d time.Duration) int64 {
	return int64(math.Round(d.Seconds() * s.sampleRate))
}

func (s *Synth) duration(frames int64) time.Duration {
	return time.Duration(float64(frames) * float64(time.Second) / s.sampleRate)
}
