package keyer

import (
	"strings"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

// Tone is a mark relative to the start of a timeline.
type Tone struct {
	At       time.Duration
	Duration time.Duration
}

// Progress is delivered once per rune of the input, when its slot has elapsed.
type Progress struct {
	// Index is the rune index into the played text
	Index int
	Rune  rune
	At    time.Duration
	// GroupEnd marks the last character of a group
	GroupEnd bool
	// Unmapped runes have no code; they take no time and key nothing
	Unmapped bool
}

// Timeline is a fully planned play request. Length is when the finish fires.
type Timeline struct {
	Tones    []Tone
	Progress []Progress
	Length   time.Duration
}

// Plan lays text out on a timeline. It is deterministic for a given input.
//
// A character's slot is its marks, one intra gap between marks, and a
// trailing gap that replaces the final intra gap: the group gap when the
// character completes a group (groupSize characters, or a separator comes
// next), the character gap otherwise. A separator adds a word gap unless
// the previous slot already ended on a group gap.
func Plan(text string, d cw.Durations, groupSize int, table cw.Table) Timeline {
	if table == nil {
		table = cw.DefaultTable
	}
	if groupSize < 1 {
		groupSize = 1
	}

	runes := []rune(strings.ToUpper(text))
	var (
		tl      Timeline
		clock   time.Duration
		inGroup int
		resting = true
	)

	for i, r := range runes {
		if cw.IsSeparator(r) {
			if !resting {
				clock += d.WordGap
			}
			resting = true
			inGroup = 0
			tl.Progress = append(tl.Progress, Progress{Index: i, Rune: r, At: clock})
			continue
		}

		marks, err := table.Lookup(r)
		if err != nil {
			tl.Progress = append(tl.Progress, Progress{Index: i, Rune: r, At: clock, Unmapped: true})
			continue
		}

		for j, m := range marks {
			length := d.Mark(m)
			tl.Tones = append(tl.Tones, Tone{At: clock, Duration: length})
			clock += length
			if j < len(marks)-1 {
				clock += d.IntraGap
			}
		}

		inGroup++
		groupEnd := inGroup >= groupSize || separatorNext(runes[i+1:], table)
		if groupEnd {
			clock += d.GroupGap
			inGroup = 0
		} else {
			clock += d.CharGap
		}
		resting = groupEnd
		tl.Progress = append(tl.Progress, Progress{Index: i, Rune: r, At: clock, GroupEnd: groupEnd})
	}

	tl.Length = clock
	return tl
}

// separatorNext reports whether the next keyed or separator rune is a separator.
func separatorNext(rest []rune, table cw.Table) bool {
	for _, r := range rest {
		if cw.IsSeparator(r) {
			return true
		}
		if table.Has(r) {
			return false
		}
	}
	return false
}
