package practice

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeLessons(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lessons.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write lessons: %v", err)
	}
	return path
}

func TestPredefined(t *testing.T) {
	lessons := Predefined()

	wantIDs := []string{"beginner", "et", "numbers", "intermediate", "full-letters", "full"}
	if len(lessons) != len(wantIDs) {
		t.Fatalf("Predefined() = %d lessons, want %d", len(lessons), len(wantIDs))
	}
	for i, id := range wantIDs {
		if lessons[i].ID != id {
			t.Errorf("lesson %d = %q, want %q", i, lessons[i].ID, id)
		}
	}

	// callers get a copy
	lessons[0].Chars = "X"
	if Predefined()[0].Chars != "ETAIN" {
		t.Error("Predefined() returned shared backing storage")
	}
}

func TestLoadLessons_NoFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.toml")} {
		lessons, err := LoadLessons(path)
		if err != nil {
			t.Fatalf("LoadLessons(%q) error = %v", path, err)
		}
		if len(lessons) != len(Predefined()) {
			t.Errorf("LoadLessons(%q) = %d lessons, want the built-in set", path, len(lessons))
		}
	}
}

func TestLoadLessons_MergesFile(t *testing.T) {
	path := writeLessons(t, `
[[lesson]]
id = "cq"
name = "Calling CQ"
chars = "CQDEK"

[[lesson]]
id = "et"
name = "E and T only"
chars = "ET"
`)

	lessons, err := LoadLessons(path)
	if err != nil {
		t.Fatalf("LoadLessons() error = %v", err)
	}
	if len(lessons) != len(Predefined())+1 {
		t.Fatalf("lessons = %d, want %d", len(lessons), len(Predefined())+1)
	}

	et, err := FindLesson(lessons, "et")
	if err != nil {
		t.Fatalf("FindLesson(et) error = %v", err)
	}
	if et.Name != "E and T only" {
		t.Errorf("et name = %q, want the file's override", et.Name)
	}
	if lessons[len(lessons)-1].ID != "cq" {
		t.Errorf("last lesson = %q, want new lessons appended", lessons[len(lessons)-1].ID)
	}
}

func TestLoadLessons_Invalid(t *testing.T) {
	path := writeLessons(t, `
[[lesson]]
id = "blank"
chars = "  "
`)

	_, err := LoadLessons(path)
	if !errors.Is(err, ErrInvalidLesson) {
		t.Errorf("LoadLessons() error = %v, want ErrInvalidLesson", err)
	}
}

func TestLoadLessons_Malformed(t *testing.T) {
	path := writeLessons(t, "[[lesson]\nid=")

	if _, err := LoadLessons(path); err == nil {
		t.Error("LoadLessons() error = nil for malformed TOML")
	}
}

func TestMergeLessons_FirstDuplicateWins(t *testing.T) {
	merged := MergeLessons(nil, []Lesson{
		{ID: "x", Chars: "AB"},
		{ID: "x", Chars: "CD"},
	})

	if len(merged) != 1 || merged[0].Chars != "AB" {
		t.Errorf("MergeLessons() = %+v, want only the first x", merged)
	}
}

func TestFindLesson_Unknown(t *testing.T) {
	_, err := FindLesson(Predefined(), "nope")
	if !errors.Is(err, ErrUnknownLesson) {
		t.Errorf("FindLesson() error = %v, want ErrUnknownLesson", err)
	}
}
