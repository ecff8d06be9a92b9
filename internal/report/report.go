// Package report renders lessons, progress, devices, and session summaries as
// terminal tables.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/kamay/internal/audio"
	"github.com/rbright/kamay/internal/ipc"
	"github.com/rbright/kamay/internal/lesson"
	"github.com/rbright/kamay/internal/practice"
)

// Modules lists every lesson grouped by module with its progress.
func Modules(modules []lesson.Module) string {
	rows := make([][]string, 0)
	for _, m := range modules {
		for _, l := range m.Lessons {
			rows = append(rows, []string{
				m.Title,
				l.ID,
				l.Title,
				l.Mode,
				strconv.Itoa(len(l.Signs)),
				percent(l.Progress),
				check(l.Completed),
			})
		}
		rows = append(rows, []string{m.Title, "", "module total", "", "", percent(m.Progress), ""})
	}
	return renderTable(
		[]string{"Module", "Lesson", "Title", "Mode", "Signs", "Progress", "Done"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

// Profile renders the learner totals followed by the leaderboard.
func Profile(p lesson.Profile, board []lesson.LeaderboardEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s\nXP: %d\nStreak: %d\n", p.Language, p.XP, p.Streak)
	if p.CurrentLesson != "" {
		fmt.Fprintf(&b, "Current lesson: %s\n", p.CurrentLesson)
	}
	if len(board) == 0 {
		return b.String()
	}

	rows := make([][]string, 0, len(board))
	for i, e := range board {
		rows = append(rows, []string{strconv.Itoa(i + 1), e.Name, strconv.Itoa(e.XP), signed(e.Change)})
	}
	b.WriteString(renderTable(
		[]string{"Rank", "Name", "XP", "Change"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
	))
	b.WriteString("\n")
	return b.String()
}

// Devices lists PulseAudio capture sources.
func Devices(devices []audio.Device) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.ID, d.Description, d.State, check(d.Available), check(d.Muted), check(d.Default)})
	}
	return renderTable(
		[]string{"Source", "Description", "State", "Available", "Muted", "Default"},
		rows,
		nil,
	)
}

// Session summarizes a finished practice run.
func Session(res practice.Result, snap practice.Snapshot) string {
	rows := make([][]string, 0, len(snap.Items))
	for _, it := range snap.Items {
		rows = append(rows, []string{it.ID, it.ExpectedLabel, it.Status})
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"Item", "Expected", "Status"}, rows, nil))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %d/%d correct (%s)", res.State, res.Correct, res.Total, percent(res.Progress))
	if res.XP > 0 {
		fmt.Fprintf(&b, ", +%d XP", res.XP)
	}
	if !res.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
	}
	b.WriteString("\n")
	return b.String()
}

// Quiz summarizes a quiz run, one row per question that ended.
func Quiz(res lesson.QuizResult, xp int) string {
	rows := make([][]string, 0, len(res.Answers))
	for i, a := range res.Answers {
		outcome := "wrong"
		switch {
		case a.TimedOut:
			outcome = "timed out"
		case a.Correct:
			outcome = "correct"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), a.Question.SignID, a.Question.Answer, a.Given, outcome})
	}

	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"#", "Sign", "Answer", "Given", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	b.WriteString("\n")
	state := "complete"
	if !res.Done {
		state = "stopped"
	}
	fmt.Fprintf(&b, "quiz %s: %d/%d correct", state, res.Score, res.Total)
	if xp > 0 {
		fmt.Fprintf(&b, ", +%d XP", xp)
	}
	b.WriteString("\n")
	return b.String()
}

// Status renders a live session status returned over IPC.
func Status(state string, s *ipc.Status) string {
	if s == nil {
		return "state: " + state + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\nmode: %s\nprogress: %s\n", state, s.Mode, percent(s.Progress))
	if s.Lesson != "" {
		fmt.Fprintf(&b, "lesson: %s\n", s.Lesson)
	}
	if s.Selected != "" {
		fmt.Fprintf(&b, "selected: %s\n", s.Selected)
	}
	if s.Detected != "" {
		fmt.Fprintf(&b, "detected: %s\n", s.Detected)
	}
	if len(s.Sentence) > 0 {
		fmt.Fprintf(&b, "sentence: %s\n", strings.Join(s.Sentence, " "))
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "error: %s\n", s.LastError)
	}
	if s.Blocking != "" {
		fmt.Fprintf(&b, "blocked: %s\n", s.Blocking)
	}

	rows := make([][]string, 0, len(s.Items))
	for _, it := range s.Items {
		marker := ""
		if it.ID == s.Selected {
			marker = "*"
		}
		rows = append(rows, []string{marker, it.ID, it.Expected, it.Status})
	}
	b.WriteString(renderTable([]string{"", "Item", "Expected", "Status"}, rows, nil))
	b.WriteString("\n")
	return b.String()
}

func percent(v int) string { return strconv.Itoa(v) + "%" }

func check(v bool) string {
	if v {
		return "yes"
	}
	return ""
}

func signed(v int) string {
	if v > 0 {
		return "+" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
