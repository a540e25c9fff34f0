package practice

import (
	"errors"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
)

// ErrEmptyAlphabet means the character set has nothing to draw from.
var ErrEmptyAlphabet = errors.New("character set is empty")

// linesEvery is how many group separators go by before one is a newline.
const linesEvery = 10

// Generator produces random practice text.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded with the current time.
func NewGenerator() *Generator {
	return NewSeededGenerator(time.Now().UnixNano())
}

// NewSeededGenerator returns a Generator with a fixed seed.
func NewSeededGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Alphabet returns the distinct upper-cased runes of charset, whitespace removed.
func Alphabet(charset string) []rune {
	runes := lo.Filter([]rune(strings.ToUpper(charset)), func(r rune, _ int) bool {
		return !unicode.IsSpace(r)
	})
	return lo.Uniq(runes)
}

// Generate draws total characters uniformly from charset. A separator
// follows every groupSize characters except the last group: a newline for
// every tenth separator and a space otherwise.
func (g *Generator) Generate(charset string, total, groupSize int) (string, error) {
	alphabet := Alphabet(charset)
	if len(alphabet) == 0 {
		return "", ErrEmptyAlphabet
	}
	if groupSize < 1 {
		groupSize = 1
	}

	var b strings.Builder
	separators := 0
	for i := 0; i < total; i++ {
		b.WriteRune(alphabet[g.rnd.Intn(len(alphabet))])
		if (i+1)%groupSize == 0 && i+1 < total {
			separators++
			if separators%linesEvery == 0 {
				b.WriteRune('\n')
			} else {
				b.WriteRune(' ')
			}
		}
	}
	return b.String(), nil
}
