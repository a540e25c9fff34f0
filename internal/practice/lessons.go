package practice

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

// ErrInvalidLesson means a lesson file entry lacks an id or characters.
var ErrInvalidLesson = errors.New("invalid lesson")

// ErrUnknownLesson means no lesson has the requested id.
var ErrUnknownLesson = errors.New("unknown lesson")

// Lesson is a named character set.
type Lesson struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Chars string `toml:"chars"`
}

// DefaultLesson is the lesson used when none is configured.
const DefaultLesson = "beginner"

var predefined = []Lesson{
	{ID: "beginner", Name: "Beginner (ETAIN)", Chars: "ETAIN"},
	{ID: "et", Name: "E & T", Chars: "ET"},
	{ID: "numbers", Name: "Numbers (0-9)", Chars: "0123456789"},
	{ID: "intermediate", Name: "Intermediate (ETAINMSURW)", Chars: "ETAINMSURW"},
	{ID: "full-letters", Name: "Full Letters", Chars: "ABCDEFGHIJKLMNOPQRSTUVWXYZ"},
	{ID: "full", Name: "Full (Letters + Numbers)", Chars: "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"},
}

// Predefined returns the built-in lessons.
func Predefined() []Lesson {
	return append([]Lesson(nil), predefined...)
}

type lessonFile struct {
	Lesson []Lesson `toml:"lesson"`
}

// LoadLessons returns the built-in lessons merged with those in a TOML file:
//
//	[[lesson]]
//	id = "cq"
//	name = "Calling CQ"
//	chars = "CQDEK"
//
// A file entry with a built-in id replaces it. An empty path or a missing
// file yields the built-in lessons.
func LoadLessons(path string) ([]Lesson, error) {
	if path == "" {
		return Predefined(), nil
	}

	var f lessonFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Predefined(), nil
		}
		return nil, fmt.Errorf("read lessons %s: %w", path, err)
	}

	for i, l := range f.Lesson {
		if l.ID == "" || len(Alphabet(l.Chars)) == 0 {
			return nil, fmt.Errorf("%w: entry %d in %s needs an id and chars", ErrInvalidLesson, i+1, path)
		}
	}
	return MergeLessons(Predefined(), f.Lesson), nil
}

// MergeLessons overlays extra onto base by id. New ids are appended in order;
// the first entry wins when extra repeats an id.
func MergeLessons(base, extra []Lesson) []Lesson {
	extra = lo.UniqBy(extra, func(l Lesson) string { return l.ID })
	byID := lo.KeyBy(extra, func(l Lesson) string { return l.ID })

	merged := lo.Map(base, func(l Lesson, _ int) Lesson {
		if o, ok := byID[l.ID]; ok {
			return o
		}
		return l
	})
	added := lo.Filter(extra, func(l Lesson, _ int) bool {
		return !lo.ContainsBy(base, func(b Lesson) bool { return b.ID == l.ID })
	})
	return append(merged, added...)
}

// FindLesson looks up a lesson by id.
func FindLesson(lessons []Lesson, id string) (Lesson, error) {
	l, ok := lo.Find(lessons, func(l Lesson) bool { return l.ID == id })
	if !ok {
		return Lesson{}, fmt.Errorf("%w: %q", ErrUnknownLesson, id)
	}
	return l, nil
}
