package lesson

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrLessonNotFound    = errors.New("lesson not found")
	ErrSubLessonNotFound = errors.New("sub-lesson not found")
)

// Profile is the learner's running totals for this process.
type Profile struct {
	Language      string
	Streak        int
	XP            int
	CurrentLesson string
}

// Store is the lesson/progress store. It lives in a private in-memory SQLite
// database, so every Store starts from the embedded catalog and nothing
// outlives the process.
type Store struct {
	db *sql.DB
}

// Open creates a fresh store seeded from every embedded catalog.
func Open(ctx context.Context, language string) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// each :memory: connection is its own database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}

	s := &Store{db: db}
	if err := s.seed(ctx, language); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) seed(ctx context.Context, language string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, lang := range Languages {
		c, err := LoadCatalog(lang)
		if err != nil {
			return err
		}
		if err := insertCatalog(ctx, tx, c); err != nil {
			return fmt.Errorf("seed %s catalog: %w", lang, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO profile (id, language) VALUES (1, ?)", language); err != nil {
		return fmt.Errorf("seed profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func insertCatalog(ctx context.Context, tx *sql.Tx, c Catalog) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO catalogs (language, speech_language, phrase_language) VALUES (?, ?, ?)",
		c.Language, c.SpeechLanguage, c.PhraseLanguage,
	); err != nil {
		return err
	}

	for mi, m := range c.Modules {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO modules (language, id, position, title, description) VALUES (?, ?, ?, ?, ?)",
			c.Language, m.ID, mi, m.Title, m.Description,
		); err != nil {
			return fmt.Errorf("insert module %s: %w", m.ID, err)
		}
		for li, l := range m.Lessons {
			mode := l.Mode
			if mode == "" {
				mode = "static"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lessons (language, module_id, id, position, title, subtitle, mode, completed, progress)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.Language, m.ID, l.ID, li, l.Title, l.Subtitle, mode, boolToInt(l.Completed), l.Progress,
			); err != nil {
				return fmt.Errorf("insert lesson %s: %w", l.ID, err)
			}
			for si, sign := range l.Signs {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO signs (language, lesson_id, id, position, label, image) VALUES (?, ?, ?, ?, ?, ?)",
					c.Language, l.ID, sign.ID, si, sign.Label, sign.Image,
				); err != nil {
					return fmt.Errorf("insert sign %s/%s: %w", l.ID, sign.ID, err)
				}
			}
			for si, sub := range l.SubLessons {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO sub_lessons (language, lesson_id, id, position, kind, title, completed) VALUES (?, ?, ?, ?, ?, ?, ?)",
					c.Language, l.ID, sub.ID, si, sub.Kind, sub.Title, boolToInt(sub.Completed),
				); err != nil {
					return fmt.Errorf("insert sub-lesson %s: %w", sub.ID, err)
				}
			}
		}
	}

	for i, e := range c.Leaderboard {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO leaderboard (language, position, id, name, xp, change) VALUES (?, ?, ?, ?, ?, ?)",
			c.Language, i, e.ID, e.Name, e.XP, e.Change,
		); err != nil {
			return fmt.Errorf("insert leaderboard entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Language returns the active catalog language.
func (s *Store) Language(ctx context.Context) (string, error) {
	var lang string
	if err := s.db.QueryRowContext(ctx, "SELECT language FROM profile WHERE id = 1").Scan(&lang); err != nil {
		return "", fmt.Errorf("read language: %w", err)
	}
	return lang, nil
}

// SetLanguage switches the active catalog.
func (s *Store) SetLanguage(ctx context.Context, language string) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE profile SET language = ? WHERE id = 1", language); err != nil {
		return fmt.Errorf("set language %q: %w", language, err)
	}
	return nil
}

// SpeechLanguage returns the speech-engine language hint for the active catalog.
func (s *Store) SpeechLanguage(ctx context.Context) (string, error) {
	var hint string
	err := s.db.QueryRowContext(ctx,
		"SELECT c.speech_language FROM catalogs c JOIN profile p ON p.language = c.language WHERE p.id = 1",
	).Scan(&hint)
	if err != nil {
		return "", fmt.Errorf("read speech language: %w", err)
	}
	return hint, nil
}

// PhraseLanguage returns the language name the phrase recognizer expects.
func (s *Store) PhraseLanguage(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT c.phrase_language FROM catalogs c JOIN profile p ON p.language = c.language WHERE p.id = 1",
	).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("read phrase language: %w", err)
	}
	return name, nil
}

// CurrentModules returns every module of the active language with lessons,
// signs, and sub-lessons populated. Module progress is the rounded mean of
// its lessons' progress.
func (s *Store) CurrentModules(ctx context.Context) ([]Module, error) {
	lang, err := s.Language(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description FROM modules WHERE language = ? ORDER BY position", lang)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Description); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range modules {
		lessonIDs, err := s.lessonIDs(ctx, lang, modules[i].ID)
		if err != nil {
			return nil, err
		}
		total := 0
		for _, id := range lessonIDs {
			l, err := s.lesson(ctx, lang, id)
			if err != nil {
				return nil, err
			}
			total += l.Progress
			modules[i].Lessons = append(modules[i].Lessons, l)
		}
		if len(lessonIDs) > 0 {
			modules[i].Progress = int(math.Round(float64(total) / float64(len(lessonIDs))))
		}
	}
	return modules, nil
}

func (s *Store) lessonIDs(ctx context.Context, lang, moduleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM lessons WHERE language = ? AND module_id = ? ORDER BY position", lang, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lesson id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Lesson returns one lesson of the active language.
func (s *Store) Lesson(ctx context.Context, id string) (Lesson, error) {
	lang, err := s.Language(ctx)
	if err != nil {
		return Lesson{}, err
	}
	return s.lesson(ctx, lang, id)
}

func (s *Store) lesson(ctx context.Context, lang, id string) (Lesson, error) {
	var (
		l         Lesson
		completed int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, subtitle, mode, completed, progress FROM lessons WHERE language = ? AND id = ?",
		lang, id,
	).Scan(&l.ID, &l.Title, &l.Subtitle, &l.Mode, &completed, &l.Progress)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, fmt.Errorf("%w: %s/%s", ErrLessonNotFound, lang, id)
	}
	if err != nil {
		return Lesson{}, fmt.Errorf("read lesson %s: %w", id, err)
	}
	l.Completed = completed != 0

	signRows, err := s.db.QueryContext(ctx,
		"SELECT id, label, image FROM signs WHERE language = ? AND lesson_id = ? ORDER BY position", lang, id)
	if err != nil {
		return Lesson{}, fmt.Errorf("query signs: %w", err)
	}
	for signRows.Next() {
		var sign Sign
		if err := signRows.Scan(&sign.ID, &sign.Label, &sign.Image); err != nil {
			_ = signRows.Close()
			return Lesson{}, fmt.Errorf("scan sign: %w", err)
		}
		l.Signs = append(l.Signs, sign)
	}
	if err := signRows.Close(); err != nil {
		return Lesson{}, err
	}

	subRows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, title, completed FROM sub_lessons WHERE language = ? AND lesson_id = ? ORDER BY position", lang, id)
	if err != nil {
		return Lesson{}, fmt.Errorf("query sub-lessons: %w", err)
	}
	defer subRows.Close()
	for subRows.Next() {
		var (
			sub  SubLesson
			done int
		)
		if err := subRows.Scan(&sub.ID, &sub.Kind, &sub.Title, &done); err != nil {
			return Lesson{}, fmt.Errorf("scan sub-lesson: %w", err)
		}
		sub.Completed = done != 0
		l.SubLessons = append(l.SubLessons, sub)
	}
	return l, subRows.Err()
}

// UpdateLessonProgress records a 0-100 progress value for a lesson.
func (s *Store) UpdateLessonProgress(ctx context.Context, lessonID string, progress int) error {
	progress = min(max(progress, 0), 100)
	return s.updateLesson(ctx, lessonID, "UPDATE lessons SET progress = ? WHERE language = ? AND id = ?", progress)
}

// CompleteLesson marks a lesson completed at 100%.
func (s *Store) CompleteLesson(ctx context.Context, lessonID string) error {
	return s.updateLesson(ctx, lessonID, "UPDATE lessons SET completed = 1, progress = ? WHERE language = ? AND id = ?", 100)
}

func (s *Store) updateLesson(ctx context.Context, lessonID, query string, progress int) error {
	lang, err := s.Language(ctx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, progress, lang, lessonID)
	if err != nil {
		return fmt.Errorf("update lesson %s: %w", lessonID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrLessonNotFound, lang, lessonID)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE profile SET current_lesson = ? WHERE id = 1", lessonID); err != nil {
		return fmt.Errorf("record current lesson: %w", err)
	}
	return nil
}

// CompleteSubLesson marks one sub-lesson of a lesson completed.
func (s *Store) CompleteSubLesson(ctx context.Context, lessonID, subLessonID string) error {
	lang, err := s.Language(ctx)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE sub_lessons SET completed = 1 WHERE language = ? AND lesson_id = ? AND id = ?",
		lang, lessonID, subLessonID,
	)
	if err != nil {
		return fmt.Errorf("complete sub-lesson %s: %w", subLessonID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrSubLessonNotFound, lessonID, subLessonID)
	}
	return nil
}

// AddXP adds amount to the learner's XP total.
func (s *Store) AddXP(ctx context.Context, amount int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE profile SET xp = xp + ? WHERE id = 1", amount); err != nil {
		return fmt.Errorf("add xp: %w", err)
	}
	return nil
}

// IncrementStreak bumps the daily streak counter.
func (s *Store) IncrementStreak(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE profile SET streak = streak + 1 WHERE id = 1"); err != nil {
		return fmt.Errorf("increment streak: %w", err)
	}
	return nil
}

// Profile returns the learner totals.
func (s *Store) Profile(ctx context.Context) (Profile, error) {
	var (
		p       Profile
		current sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT language, streak, xp, current_lesson FROM profile WHERE id = 1",
	).Scan(&p.Language, &p.Streak, &p.XP, &current)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p.CurrentLesson = current.String
	return p, nil
}

// Leaderboard returns the active language's leaderboard ordered by XP.
func (s *Store) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	lang, err := s.Language(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, xp, change FROM leaderboard WHERE language = ? ORDER BY xp DESC, position", lang)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.XP, &e.Change); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
