package keyer

import (
	"io"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

// AudioTones places the timeline's tones on a device clock starting at base.
func (tl Timeline) AudioTones(base time.Duration, volume float64) []audio.Tone {
	tones := make([]audio.Tone, len(tl.Tones))
	for i, t := range tl.Tones {
		tones[i] = audio.Tone{At: base + t.At, Duration: t.Duration, Volume: volume}
	}
	return tones
}

// Render keys text offline and writes it to w as a WAV file at sampleRate.
// The returned timeline describes what was written. A nil table means
// cw.DefaultTable.
func Render(w io.WriteSeeker, text string, settings Settings, sampleRate float64, table cw.Table) (Timeline, error) {
	if err := settings.Validate(); err != nil {
		return Timeline{}, err
	}
	durations, err := settings.Durations()
	if err != nil {
		return Timeline{}, err
	}
	tl := Plan(text, durations, settings.GroupSize, table)

	synth := audio.NewSynth(sampleRate, settings.Frequency)
	synth.Schedule(tl.AudioTones(0, settings.Volume), settings.Ramp)
	if err := audio.WriteWAV(w, synth, tl.Length); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}
