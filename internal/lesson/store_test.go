package lesson

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, language string) *Store {
	t.Helper()
	s, err := Open(context.Background(), language)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadCatalogs(t *testing.T) {
	for _, lang := range Languages {
		c, err := LoadCatalog(lang)
		require.NoError(t, err)
		require.Equal(t, lang, c.Language)
		require.NotEmpty(t, c.Modules)
		require.NotEmpty(t, c.Leaderboard)
	}

	_, err := LoadCatalog("bsl")
	require.ErrorContains(t, err, "unknown language")
}

func TestFSLAlphabetIncludesFilipinoLetters(t *testing.T) {
	c, err := LoadCatalog("fsl")
	require.NoError(t, err)

	labels := map[string]string{}
	for _, sign := range c.Modules[0].Lessons[0].Signs {
		labels[sign.ID] = sign.Label
	}
	require.Equal(t, "NG", labels["ng"])
	require.Equal(t, "Ñ", labels["enye"])
	require.Equal(t, "CH", labels["ch"])
}

func TestCurrentModulesFollowsLanguage(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "asl")

	modules, err := s.CurrentModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Equal(t, "Basics of American Sign Language", modules[0].Description)
	require.Len(t, modules[0].Lessons, 4)
	require.Len(t, modules[0].Lessons[0].Signs, 26)
	require.Len(t, modules[0].Lessons[1].Signs, 11)
	require.Equal(t, "sequence", modules[0].Lessons[2].Mode)

	require.NoError(t, s.SetLanguage(ctx, "fsl"))
	modules, err = s.CurrentModules(ctx)
	require.NoError(t, err)
	require.Equal(t, "Basics of Filipino Sign Language", modules[0].Description)

	hint, err := s.SpeechLanguage(ctx)
	require.NoError(t, err)
	require.Equal(t, "fil", hint)

	phrase, err := s.PhraseLanguage(ctx)
	require.NoError(t, err)
	require.Equal(t, "tagalog", phrase)

	require.Error(t, s.SetLanguage(ctx, "bsl"))
}

func TestProgressUpdates(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "asl")

	require.NoError(t, s.UpdateLessonProgress(ctx, "lesson-2", 60))
	l, err := s.Lesson(ctx, "lesson-2")
	require.NoError(t, err)
	require.Equal(t, 60, l.Progress)
	require.False(t, l.Completed)

	require.NoError(t, s.UpdateLessonProgress(ctx, "lesson-2", 140))
	l, err = s.Lesson(ctx, "lesson-2")
	require.NoError(t, err)
	require.Equal(t, 100, l.Progress)

	require.NoError(t, s.CompleteLesson(ctx, "lesson-1"))
	modules, err := s.CurrentModules(ctx)
	require.NoError(t, err)
	require.Equal(t, 50, modules[0].Progress)

	require.NoError(t, s.CompleteSubLesson(ctx, "lesson-2", PracticeSubLessonID("lesson-2")))
	l, err = s.Lesson(ctx, "lesson-2")
	require.NoError(t, err)
	for _, sub := range l.SubLessons {
		require.Equal(t, sub.Kind == "practice", sub.Completed, sub.ID)
	}

	profile, err := s.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "lesson-1", profile.CurrentLesson)
}

func TestMissingLessonErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "asl")

	_, err := s.Lesson(ctx, "lesson-99")
	require.ErrorIs(t, err, ErrLessonNotFound)
	require.ErrorIs(t, s.UpdateLessonProgress(ctx, "lesson-99", 10), ErrLessonNotFound)
	require.ErrorIs(t, s.CompleteSubLesson(ctx, "lesson-1", "lesson-1-exam"), ErrSubLessonNotFound)
}

func TestXPStreakAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "fsl")

	require.NoError(t, s.AddXP(ctx, 30))
	require.NoError(t, s.AddXP(ctx, 10))
	require.NoError(t, s.IncrementStreak(ctx))

	profile, err := s.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, Profile{Language: "fsl", Streak: 1, XP: 40}, profile)

	board, err := s.Leaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "Maria Santos", board[0].Name)
	for i := 1; i < len(board); i++ {
		require.GreaterOrEqual(t, board[i-1].XP, board[i].XP)
	}
}

func TestStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := openStore(t, "asl")
	b := openStore(t, "asl")

	require.NoError(t, a.AddXP(ctx, 50))
	profile, err := b.Profile(ctx)
	require.NoError(t, err)
	require.Zero(t, profile.XP)
}
