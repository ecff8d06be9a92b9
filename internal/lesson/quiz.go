package lesson

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/kamay/internal/clock"
)

const (
	QuizLength    = 10
	QuizChoices   = 4
	QuizTimeLimit = 10 * time.Second
)

var (
	ErrNoSigns       = errors.New("lesson has no signs")
	ErrQuizOver      = errors.New("quiz is over")
	ErrStaleQuestion = errors.New("question already answered or timed out")
	ErrUnknownChoice = errors.New("not one of the choices")
)

// Question shows an unlabelled sign image and asks for its label.
type Question struct {
	SignID  string
	Image   string
	Choices []string
	Answer  string
}

// Choice resolves learner input to one of q.Choices. A label match
// (case-insensitive) wins over a 1-based choice number, so numeric labels
// are typed as themselves.
func (q Question) Choice(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	for _, c := range q.Choices {
		if strings.EqualFold(c, input) {
			return c, true
		}
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(q.Choices) {
		return "", false
	}
	return q.Choices[n-1], true
}

// QuizAnswer records how one question ended. Given is empty on timeout.
type QuizAnswer struct {
	Question Question
	Given    string
	Correct  bool
	TimedOut bool
}

type QuizResult struct {
	Score   int
	Total   int
	Done    bool
	Answers []QuizAnswer
}

type QuizOptions struct {
	// Length caps the number of questions; 0 means QuizLength.
	Length int
	// TimeLimit is the per-question limit; 0 means QuizTimeLimit.
	TimeLimit time.Duration
	Clock     clock.Clock
	Rand      *rand.Rand
}

// Quiz runs timed multiple-choice questions over a lesson's signs. An
// unanswered question expires after the time limit and counts as wrong.
type Quiz struct {
	clock     clock.Clock
	limit     time.Duration
	questions []Question
	expired   chan Question

	mu      sync.Mutex
	current int
	score   int
	answers []QuizAnswer
	timer   clock.Timer
	started bool
	done    bool
}

// NewQuiz draws up to opts.Length random signs of l, each with the right
// label and up to QuizChoices-1 distinct distractors from the same lesson.
func NewQuiz(l Lesson, opts QuizOptions) (*Quiz, error) {
	if len(l.Signs) == 0 {
		return nil, ErrNoSigns
	}
	if opts.Length <= 0 {
		opts.Length = QuizLength
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = QuizTimeLimit
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	labels := make([]string, 0, len(l.Signs))
	for _, s := range l.Signs {
		if !slices.Contains(labels, s.Label) {
			labels = append(labels, s.Label)
		}
	}

	order := opts.Rand.Perm(len(l.Signs))
	questions := make([]Question, 0, min(opts.Length, len(order)))
	for _, i := range order[:min(opts.Length, len(order))] {
		sign := l.Signs[i]
		questions = append(questions, Question{
			SignID:  sign.ID,
			Image:   strings.Replace(sign.Image, "-labelled/", "-unlabelled/", 1),
			Choices: drawChoices(opts.Rand, sign.Label, labels),
			Answer:  sign.Label,
		})
	}

	return &Quiz{
		clock:     opts.Clock,
		limit:     opts.TimeLimit,
		questions: questions,
		expired:   make(chan Question, len(questions)),
	}, nil
}

func drawChoices(r *rand.Rand, answer string, labels []string) []string {
	others := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != answer {
			others = append(others, l)
		}
	}
	r.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })

	choices := append([]string{answer}, others[:min(QuizChoices-1, len(others))]...)
	r.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	return choices
}

// Start arms the timer of the first question.
func (q *Quiz) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.done {
		return
	}
	q.started = true
	q.armLocked()
}

// Current returns the open question and its index; ok is false once the quiz is over.
func (q *Quiz) Current() (int, Question, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return q.current, Question{}, false
	}
	return q.current, q.questions[q.current], true
}

// Expired delivers each question that ran out of time.
func (q *Quiz) Expired() <-chan Question {
	return q.expired
}

// Answer answers question index with choice. An index that is no longer
// current yields ErrStaleQuestion.
func (q *Quiz) Answer(index int, choice string) (QuizAnswer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.done {
		return QuizAnswer{}, ErrQuizOver
	}
	if index != q.current {
		return QuizAnswer{}, ErrStaleQuestion
	}
	question := q.questions[index]
	if !slices.Contains(question.Choices, choice) {
		return QuizAnswer{}, ErrUnknownChoice
	}

	a := QuizAnswer{Question: question, Given: choice, Correct: choice == question.Answer}
	if a.Correct {
		q.score++
	}
	q.answers = append(q.answers, a)
	q.advanceLocked()
	return a, nil
}

// Stop abandons the remaining questions.
func (q *Quiz) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimerLocked()
	q.done = true
}

// Result reports the score so far. Done is set only when every question
// was answered or expired.
func (q *Quiz) Result() QuizResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QuizResult{
		Score:   q.score,
		Total:   len(q.questions),
		Done:    len(q.answers) == len(q.questions),
		Answers: slices.Clone(q.answers),
	}
}

func (q *Quiz) armLocked() {
	index := q.current
	q.timer = q.clock.AfterFunc(q.limit, func() { q.expire(index) })
}

func (q *Quiz) expire(index int) {
	q.mu.Lock()
	if q.done || q.current != index {
		q.mu.Unlock()
		return
	}
	question := q.questions[index]
	q.answers = append(q.answers, QuizAnswer{Question: question, TimedOut: true})
	q.timer = nil
	q.advanceLocked()
	q.mu.Unlock()

	q.expired <- question
}

func (q *Quiz) advanceLocked() {
	q.stopTimerLocked()
	q.current++
	if q.current >= len(q.questions) {
		q.done = true
		return
	}
	if q.started {
		q.armLocked()
	}
}

func (q *Quiz) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// QuizSubLessonID names the quiz step of a lesson.
func QuizSubLessonID(lessonID string) string {
	return lessonID + "-quiz"
}
