// Package cw holds the Morse code table and the timing model used to key it.
package cw

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Mark is a single keyed element of a character.
type Mark uint8

const (
	// Dit is the short mark (one unit).
	Dit Mark = iota
	// Dah is the long mark (DahDitRatio units).
	Dah
)

// String returns "." for a dit and "-" for a dah.
func (m Mark) String() string {
	if m == Dah {
		return "-"
	}
	return "."
}

// ErrUnmappedCharacter indicates a rune has no entry in the code table.
var ErrUnmappedCharacter = errors.New("character has no morse code")

// Table maps an upper-case rune to its mark sequence.
type Table map[rune][]Mark

// patterns is the ITU table in dot/dash notation. Parsed once into DefaultTable.
var patterns = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '\'': ".----.",
	'!': "-.-.--", '/': "-..-.", '(': "-.--.", ')': "-.--.-",
	'&': ".-...", ':': "---...", ';': "-.-.-.", '=': "-...-",
	'+': ".-.-.", '-': "-....-", '_': "..--.-", '"': ".-..-.",
	'$': "...-..-", '@': ".--.-.",
}

// DefaultTable is the table used unless a caller supplies its own.
var DefaultTable = mustParse(patterns)

func mustParse(src map[rune]string) Table {
	t, err := ParseTable(src)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTable builds a Table from dot/dash strings. Keys are upper-cased.
func ParseTable(src map[rune]string) (Table, error) {
	t := make(Table, len(src))
	for r, pattern := range src {
		if pattern == "" {
			return nil, fmt.Errorf("empty pattern for %q", r)
		}
		marks := make([]Mark, 0, len(pattern))
		for _, c := range pattern {
			switch c {
			case '.':
				marks = append(marks, Dit)
			case '-':
				marks = append(marks, Dah)
			default:
				return nil, fmt.Errorf("invalid symbol %q in pattern for %q", c, r)
			}
		}
		t[unicode.ToUpper(r)] = marks
	}
	return t, nil
}

// Lookup returns the marks for r, folding case first.
func (t Table) Lookup(r rune) ([]Mark, error) {
	marks, ok := t[unicode.ToUpper(r)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnmappedCharacter, r)
	}
	return marks, nil
}

// Has reports whether r (case-folded) is in the table.
func (t Table) Has(r rune) bool {
	_, ok := t[unicode.ToUpper(r)]
	return ok
}

// Encode returns the dot/dash form of text, characters separated by a space
// and words by " / ". Unmapped runes are dropped.
func (t Table) Encode(text string) string {
	var words []string
	for _, word := range strings.Fields(text) {
		var chars []string
		for _, r := range word {
			marks, err := t.Lookup(r)
			if err != nil {
				continue
			}
			var b strings.Builder
			for _, m := range marks {
				b.WriteString(m.String())
			}
			chars = append(chars, b.String())
		}
		if len(chars) > 0 {
			words = append(words, strings.Join(chars, " "))
		}
	}
	return strings.Join(words, " / ")
}

// IsSeparator reports whether r separates words (and groups) in practice text.
func IsSeparator(r rune) bool {
	return r == ' ' || r == '\n'
}
