// Package score compares a transcription with the text that was keyed.
package score

import (
	"math"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/text/width"
)

// Score is the result of comparing a transcription with the played text.
type Score struct {
	Correct int
	Total   int
	// Percentage is Correct/Total on a 0-100 scale, rounded
	Percentage int
}

// Compute scores user against played. Played is split into groups on
// spaces and newlines. User is folded to ASCII width, stripped of anything
// that is not a letter or digit, upper-cased and re-chunked into groups of
// groupSize. Characters only count when they match at the same position of
// the same group. A groupSize below one treats the transcription as one group.
func Compute(played, user string, groupSize int) Score {
	groups := strings.Fields(played)
	typed := chunk(Normalize(user), groupSize)

	var s Score
	for i, g := range groups {
		want := []rune(g)
		s.Total += len(want)
		if i >= len(typed) {
			continue
		}
		got := []rune(typed[i])
		for j := 0; j < len(want) && j < len(got); j++ {
			if want[j] == got[j] {
				s.Correct++
			}
		}
	}
	if s.Total > 0 {
		s.Percentage = int(math.Round(100 * float64(s.Correct) / float64(s.Total)))
	}
	return s
}

// Normalize reduces a transcription to upper-case letters and digits.
func Normalize(s string) string {
	folded := width.Fold.String(s)
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Groups formats text into space-separated groups of size.
func Groups(text string, size int) string {
	return strings.Join(chunk(text, size), " ")
}

func chunk(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size < 1 {
		return []string{s}
	}
	return lo.ChunkString(s, size)
}
