package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Streamer exposes a synth as a stereo beep.Streamer that ends after a fixed length.
type Streamer struct {
	synth     *Synth
	remaining int
	buf       []float32
}

// NewStreamer streams length worth of frames from s.
func NewStreamer(s *Synth, length time.Duration) *Streamer {
	return &Streamer{
		synth:     s,
		remaining: int(s.frames(length)),
	}
}

// Stream implements beep.Streamer.
func (st *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	if st.remaining <= 0 {
		return 0, false
	}
	n = len(samples)
	if n > st.remaining {
		n = st.remaining
	}
	if cap(st.buf) < n {
		st.buf = make([]float32, n)
	}
	mono := st.buf[:n]
	st.synth.Render(mono)
	for i, v := range mono {
		samples[i][0] = float64(v)
		samples[i][1] = float64(v)
	}
	st.remaining -= n
	return n, true
}

// Err implements beep.Streamer.
func (st *Streamer) Err() error {
	return nil
}

// Format is the beep format matching the synth's sample rate, as 16-bit stereo.
func Format(s *Synth) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(int(s.SampleRate())),
		NumChannels: 2,
		Precision:   2,
	}
}

// WriteWAV renders length of s into w as a 16-bit stereo WAV file.
func WriteWAV(w io.WriteSeeker, s *Synth, length time.Duration) error {
	if err := wav.Encode(w, NewStreamer(s, length), Format(s)); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}
