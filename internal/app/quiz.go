package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rbright/kamay/internal/config"
	"github.com/rbright/kamay/internal/lesson"
	"github.com/rbright/kamay/internal/report"
)

func (r Runner) commandQuiz(ctx context.Context, cfg config.Config, lessonID, language string, logger *slog.Logger) int {
	if language == "" {
		language = cfg.Language
	}
	store, err := lesson.Open(ctx, language)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	l, err := store.Lesson(ctx, lessonID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	quiz, err := lesson.NewQuiz(l, lesson.QuizOptions{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: lesson %s: %v\n", l.ID, err)
		return 1
	}

	quizCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	in := r.Stdin
	if in == nil {
		in = os.Stdin
	}

	fmt.Fprintf(r.Stdout, "%s: %d questions, %s each\n", l.Title, quiz.Result().Total, lesson.QuizTimeLimit)
	quiz.Start()
	r.runQuiz(quizCtx, quiz, readLines(quizCtx, in))

	res := quiz.Result()
	xp := 0
	if res.Done {
		xp, err = recordQuiz(context.WithoutCancel(ctx), store, l.ID, res.Score, cfg.Practice.XPPerItem, logger)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	logger.Info("quiz finished",
		"lesson", l.ID,
		"score", res.Score,
		"total", res.Total,
		"done", res.Done,
		"xp", xp,
	)
	fmt.Fprint(r.Stdout, report.Quiz(res, xp))

	if !res.Done && ctx.Err() == nil {
		fmt.Fprintf(r.Stderr, "error: quiz input closed after %d of %d questions\n", len(res.Answers), res.Total)
		return 1
	}
	return 0
}

// runQuiz asks each question until the quiz ends, input closes, or ctx ends.
func (r Runner) runQuiz(ctx context.Context, quiz *lesson.Quiz, lines <-chan string) {
	defer quiz.Stop()
	total := quiz.Result().Total
	for {
		idx, q, ok := quiz.Current()
		if !ok {
			return
		}
		fmt.Fprintf(r.Stdout, "\nQuestion %d of %d: %s\n", idx+1, total, q.Image)
		for i, c := range q.Choices {
			fmt.Fprintf(r.Stdout, "  %d) %s\n", i+1, c)
		}
		if !r.awaitAnswer(ctx, quiz, idx, q, lines) {
			return
		}
	}
}

// awaitAnswer reads input until question idx is answered or expires. It
// returns false when the quiz should end early.
func (r Runner) awaitAnswer(ctx context.Context, quiz *lesson.Quiz, idx int, q lesson.Question, lines <-chan string) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case expired := <-quiz.Expired():
			fmt.Fprintf(r.Stdout, "Time's up! It was %s.\n", expired.Answer)
			return true
		case line, ok := <-lines:
			if !ok {
				return false
			}
			choice, ok := q.Choice(line)
			if !ok {
				fmt.Fprintf(r.Stdout, "Pick 1-%d or type a label.\n", len(q.Choices))
				continue
			}
			a, err := quiz.Answer(idx, choice)
			if err != nil {
				// the question expired first; its expiry is reported next
				continue
			}
			if a.Correct {
				fmt.Fprintln(r.Stdout, "Correct!")
			} else {
				fmt.Fprintf(r.Stdout, "Wrong, it was %s.\n", q.Answer)
			}
			return true
		}
	}
}

// recordQuiz completes the lesson's quiz step and awards XP per correct answer.
func recordQuiz(ctx context.Context, store *lesson.Store, lessonID string, score, xpPerItem int, logger *slog.Logger) (int, error) {
	err := store.CompleteSubLesson(ctx, lessonID, lesson.QuizSubLessonID(lessonID))
	switch {
	case errors.Is(err, lesson.ErrSubLessonNotFound):
		logger.Debug("lesson has no quiz step", "lesson", lessonID)
	case err != nil:
		return 0, err
	}

	xp := score * xpPerItem
	if xp > 0 {
		if err := store.AddXP(ctx, xp); err != nil {
			return 0, err
		}
	}
	return xp, nil
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
