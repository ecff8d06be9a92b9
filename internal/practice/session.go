package practice

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/rbright/kamay/internal/fsm"
	"github.com/rbright/kamay/internal/recognize"
)

var (
	ErrUnknownItem  = errors.New("unknown practice item")
	ErrItemComplete = errors.New("practice item already correct")
)

// StatusPending is reported for the selected item while it awaits its first result.
const StatusPending = "pending"

// Outcome is what applying one recognizer response did to the session.
type Outcome string

const (
	OutcomeStale     Outcome = "stale"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeError     Outcome = "error"
)

// Ticket identifies the selection a recognition request was issued for.
// Responses carrying an old ticket are dropped.
type Ticket struct {
	ItemID string
	gen    uint64
}

// Active is false for the zero Ticket returned when a selection is cleared.
func (t Ticket) Active() bool { return t.ItemID != "" }

// ItemState pairs an item with its reported status.
type ItemState struct {
	Item
	Status string
}

// Snapshot is a copy of the session read model.
type Snapshot struct {
	Selected  string
	Detected  string
	LastError string
	Progress  int
	Done      bool
	Sentence  []string
	Annotated string
	Items     []ItemState
}

// Session is the per-item state machine for one practice screen. It is not
// safe for concurrent use; the Controller serializes access.
type Session struct {
	items    []Item
	index    map[string]int
	statuses map[string]fsm.ItemStatus
	expected map[string]string

	selected  string
	gen       uint64
	detected  string
	lastError string
	errSeq    uint64
	sentence  []string
	annotated string
}

// NewSession builds a session with every item idle and nothing selected.
func NewSession(items []Item) (*Session, error) {
	if len(items) == 0 {
		return nil, errors.New("practice session needs at least one item")
	}
	s := &Session{
		items:    slices.Clone(items),
		index:    make(map[string]int, len(items)),
		statuses: make(map[string]fsm.ItemStatus, len(items)),
		expected: make(map[string]string, len(items)),
	}
	for i, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, fmt.Errorf("item %d has an empty id", i)
		}
		if _, dup := s.index[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %q", it.ID)
		}
		s.index[it.ID] = i
		s.statuses[it.ID] = fsm.ItemIdle
		s.expected[it.ID] = Normalize(it.ExpectedLabel)
	}
	return s, nil
}

func (s *Session) Items() []Item { return slices.Clone(s.items) }

func (s *Session) Item(id string) (Item, bool) {
	i, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return s.items[i], true
}

func (s *Session) Status(id string) fsm.ItemStatus { return s.statuses[id] }

// Resolve maps a user reference to an item id. An exact id wins; otherwise
// the first unfinished item whose expected label matches ref is returned.
func (s *Session) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if _, ok := s.index[ref]; ok {
		return ref, true
	}
	want := Normalize(ref)
	if want == "" {
		return "", false
	}
	var fallback string
	for _, it := range s.items {
		if s.expected[it.ID] != want {
			continue
		}
		if s.statuses[it.ID] != fsm.ItemCorrect {
			return it.ID, true
		}
		if fallback == "" {
			fallback = it.ID
		}
	}
	return fallback, fallback != ""
}

// Selected returns the active item id, or "".
func (s *Session) Selected() string { return s.selected }

// Current returns the ticket for the active selection.
func (s *Session) Current() (Ticket, bool) {
	if s.selected == "" {
		return Ticket{}, false
	}
	return Ticket{ItemID: s.selected, gen: s.gen}, true
}

// SelectItem makes id the active item and resets it to idle. Selecting the
// active item again deselects it and returns the zero Ticket.
func (s *Session) SelectItem(id string) (Ticket, error) {
	status, ok := s.statuses[id]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if id == s.selected {
		s.Deselect()
		return Ticket{}, nil
	}
	next, err := fsm.TransitionItem(status, fsm.ItemSelect)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %s", ErrItemComplete, id)
	}

	s.gen++
	s.selected = id
	s.statuses[id] = next
	s.detected = ""
	s.lastError = ""
	s.annotated = ""
	return Ticket{ItemID: id, gen: s.gen}, nil
}

// Deselect clears the selection. Any in-flight response becomes stale.
func (s *Session) Deselect() {
	if s.selected == "" {
		return
	}
	s.gen++
	s.selected = ""
	s.detected = ""
}

// Apply folds one recognizer response into the session.
func (s *Session) Apply(t Ticket, res recognize.Result, err error) Outcome {
	if s.selected == "" || t.gen != s.gen || t.ItemID != s.selected {
		return OutcomeStale
	}

	if err != nil {
		s.detected = ""
		s.lastError = errorMessage(err)
		s.errSeq++
		return OutcomeError
	}

	s.detected = strings.TrimSpace(res.Label)
	s.lastError = ""
	if res.AnnotatedImage != "" {
		s.annotated = res.AnnotatedImage
	}
	if res.Sentence != nil {
		s.sentence = slices.Clone(res.Sentence)
	}

	event, outcome := fsm.ItemMismatch, OutcomeIncorrect
	if Normalize(res.Label) == s.expected[t.ItemID] {
		event, outcome = fsm.ItemMatch, OutcomeCorrect
	}
	next, terr := fsm.TransitionItem(s.statuses[t.ItemID], event)
	if terr != nil {
		return OutcomeStale
	}
	s.statuses[t.ItemID] = next

	if outcome == OutcomeCorrect {
		s.gen++
		s.selected = ""
	}
	return outcome
}

// ErrorSeq identifies the error currently displayed, for delayed clearing.
func (s *Session) ErrorSeq() uint64 { return s.errSeq }

// ClearError clears the displayed error if it is still the one numbered seq.
func (s *Session) ClearError(seq uint64) {
	if seq == s.errSeq {
		s.lastError = ""
	}
}

func (s *Session) CorrectCount() int {
	n := 0
	for _, st := range s.statuses {
		if st == fsm.ItemCorrect {
			n++
		}
	}
	return n
}

// Progress is the rounded percentage of items marked correct.
func (s *Session) Progress() int {
	return int(math.Round(float64(s.CorrectCount()) * 100 / float64(len(s.items))))
}

func (s *Session) Done() bool { return s.CorrectCount() == len(s.items) }

// NextUnfinished returns the first non-correct item after `after`, wrapping
// around. With after == "" the search starts at the first item.
func (s *Session) NextUnfinished(after string) (string, bool) {
	start := 0
	if i, ok := s.index[after]; ok {
		start = i + 1
	}
	n := len(s.items)
	for k := 0; k < n; k++ {
		it := s.items[(start+k)%n]
		if s.statuses[it.ID] != fsm.ItemCorrect {
			return it.ID, true
		}
	}
	return "", false
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Selected:  s.selected,
		Detected:  s.detected,
		LastError: s.lastError,
		Progress:  s.Progress(),
		Done:      s.Done(),
		Sentence:  slices.Clone(s.sentence),
		Annotated: s.annotated,
		Items:     make([]ItemState, 0, len(s.items)),
	}
	for _, it := range s.items {
		status := string(s.statuses[it.ID])
		if it.ID == s.selected && s.statuses[it.ID] == fsm.ItemIdle {
			status = StatusPending
		}
		snap.Items = append(snap.Items, ItemState{Item: it, Status: status})
	}
	return snap
}

var fold = cases.Fold()

// Normalize prepares a label for comparison: NFC, case folded, trimmed, with
// inner whitespace collapsed to single spaces.
func Normalize(label string) string {
	s := norm.NFC.String(label)
	s = fold.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func errorMessage(err error) string {
	var rerr *recognize.Error
	if errors.As(err, &rerr) {
		return rerr.UserMessage()
	}
	return "Detection failed"
}
