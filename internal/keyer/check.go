package keyer

import (
	"fmt"
	"math"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
	"github.com/ColonelBlimp/cwtrainer/internal/dsp"
)

// checkBlock is the measurement window of Check.
const checkBlock = 4 * time.Millisecond

// CheckResult compares a timeline with the tones measured in its audio.
type CheckResult struct {
	Expected int
	Detected int
	// MaxError is the largest start or end offset between a planned tone and
	// the tone measured in its place
	MaxError time.Duration
}

// OK reports whether every tone was found within tolerance.
func (r CheckResult) OK(tolerance time.Duration) bool {
	return r.Expected == r.Detected && r.MaxError <= tolerance
}

// Check synthesizes tl with settings and measures the keyed tones with a
// Goertzel filter at the sidetone frequency.
func Check(tl Timeline, settings Settings, sampleRate float64) (CheckResult, error) {
	block := int(math.Round(checkBlock.Seconds() * sampleRate))
	g, err := dsp.NewGoertzel(dsp.GoertzelConfig{
		TargetFrequency: settings.Frequency,
		SampleRate:      sampleRate,
		BlockSize:       block,
	})
	if err != nil {
		return CheckResult{}, fmt.Errorf("check filter: %w", err)
	}

	synth := audio.NewSynth(sampleRate, settings.Frequency)
	synth.Schedule(tl.AudioTones(0, settings.Volume), settings.Ramp)
	samples := make([]float32, int(math.Round(tl.Length.Seconds()*sampleRate)))
	synth.Render(samples)

	spans := dsp.Spans(samples, g, settings.Volume/2)
	res := CheckResult{Expected: len(tl.Tones), Detected: len(spans)}

	at := func(frame int) time.Duration {
		return time.Duration(float64(frame) / sampleRate * float64(time.Second))
	}
	for i := range min(len(spans), len(tl.Tones)) {
		tone := tl.Tones[i]
		startErr := (at(spans[i].Start) - tone.At).Abs()
		endErr := (at(spans[i].End) - (tone.At + tone.Duration)).Abs()
		res.MaxError = max(res.MaxError, startErr, endErr)
	}
	return res, nil
}
