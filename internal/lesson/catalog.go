// Package lesson holds the sign-language lesson catalog and the in-memory progress store.
package lesson

import (
	"embed"
	"fmt"
	"path"

	"github.com/pelletier/go-toml/v2"
)

//go:embed catalog/*.toml
var catalogFS embed.FS

// Languages lists the catalogs shipped with the binary.
var Languages = []string{"asl", "fsl"}

// Catalog is one language's modules and leaderboard.
type Catalog struct {
	Language       string             `toml:"language"`
	SpeechLanguage string             `toml:"speech_language"`
	PhraseLanguage string             `toml:"phrase_language"`
	Modules        []Module           `toml:"modules"`
	Leaderboard    []LeaderboardEntry `toml:"leaderboard"`
}

type Module struct {
	ID          string   `toml:"id"`
	Title       string   `toml:"title"`
	Description string   `toml:"description"`
	Progress    int      `toml:"-"`
	Lessons     []Lesson `toml:"lessons"`
}

type Lesson struct {
	ID         string      `toml:"id"`
	Title      string      `toml:"title"`
	Subtitle   string      `toml:"subtitle"`
	Mode       string      `toml:"mode"`
	Completed  bool        `toml:"completed"`
	Progress   int         `toml:"progress"`
	Signs      []Sign      `toml:"signs"`
	SubLessons []SubLesson `toml:"sub_lessons"`
}

type Sign struct {
	ID    string `toml:"id"`
	Label string `toml:"label"`
	Image string `toml:"image"`
}

// SubLesson is a content, practice, or quiz step of a lesson.
type SubLesson struct {
	ID        string `toml:"id"`
	Kind      string `toml:"kind"`
	Title     string `toml:"title"`
	Completed bool   `toml:"completed"`
}

type LeaderboardEntry struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	XP     int    `toml:"xp"`
	Change int    `toml:"change"`
}

// LoadCatalog decodes the embedded catalog for language.
func LoadCatalog(language string) (Catalog, error) {
	data, err := catalogFS.ReadFile(path.Join("catalog", language+".toml"))
	if err != nil {
		return Catalog{}, fmt.Errorf("unknown language %q", language)
	}

	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode %s catalog: %w", language, err)
	}
	if c.Language != language {
		return Catalog{}, fmt.Errorf("catalog %s declares language %q", language, c.Language)
	}
	return c, nil
}

// PracticeSubLessonID names the practice step of a lesson.
func PracticeSubLessonID(lessonID string) string {
	return lessonID + "-practice"
}
