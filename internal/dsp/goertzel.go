// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("target frequency must be positive and less than Nyquist frequency")
)

// GoertzelConfig holds configuration for the Goertzel algorithm.
type GoertzelConfig struct {
	// TargetFrequency is the sidetone pitch in Hz
	TargetFrequency float64
	// SampleRate is the audio sample rate in Hz
	SampleRate float64
	// BlockSize is the number of samples per measurement
	BlockSize int
}

// Goertzel measures the level of a single frequency, one block at a time.
type Goertzel struct {
	config      GoertzelConfig
	coefficient float64 // 2 * cos(2π * f / fs)
	normalizer  float64 // 2 / blockSize
}

// NewGoertzel creates a filter for the configured frequency.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.TargetFrequency <= 0 || cfg.TargetFrequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}

	omega := 2 * math.Pi * cfg.TargetFrequency / cfg.SampleRate
	return &Goertzel{
		config:      cfg,
		coefficient: 2 * math.Cos(omega),
		normalizer:  2 / float64(cfg.BlockSize),
	}, nil
}

// Magnitude returns the level of the target frequency in block. A full-scale
// sine at the target frequency measures about 1.0. Only the first BlockSize
// samples are used; a shorter block is measured as is.
func (g *Goertzel) Magnitude(block []float32) float64 {
	if len(block) > g.config.BlockSize {
		block = block[:g.config.BlockSize]
	}

	var s0, s1, s2 float64
	for _, x := range block {
		s0 = float64(x) + g.coefficient*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - g.coefficient*s1*s2
	// floating point can leave a tiny negative
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power) * g.normalizer
}

// BlockSize returns the configured block size
func (g *Goertzel) BlockSize() int {
	return g.config.BlockSize
}
