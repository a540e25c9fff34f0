package dsp

// Span is a run of blocks where the tone was present, in samples.
type Span struct {
	Start int
	End   int
}

// Spans splits samples into blocks and returns the runs whose magnitude is at
// least threshold. Boundaries are block aligned; a trailing partial block is
// measured on its own.
func Spans(samples []float32, g *Goertzel, threshold float64) []Span {
	var (
		spans []Span
		on    bool
		start int
	)
	n := g.BlockSize()
	for i := 0; i < len(samples); i += n {
		end := min(i+n, len(samples))
		present := g.Magnitude(samples[i:end]) >= threshold
		switch {
		case present && !on:
			on = true
			start = i
		case !present && on:
			on = false
			spans = append(spans, Span{Start: start, End: i})
		}
	}
	if on {
		spans = append(spans, Span{Start: start, End: len(samples)})
	}
	return spans
}
