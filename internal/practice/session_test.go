package practice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/kamay/internal/fsm"
	"github.com/rbright/kamay/internal/recognize"
)

func items(labels ...string) []Item {
	out := make([]Item, 0, len(labels))
	for _, l := range labels {
		out = append(out, Item{ID: l, ExpectedLabel: l})
	}
	return out
}

func TestNewSessionRejectsBadItems(t *testing.T) {
	_, err := NewSession(nil)
	require.Error(t, err)

	_, err = NewSession([]Item{{ID: " ", ExpectedLabel: "A"}})
	require.Error(t, err)

	_, err = NewSession([]Item{{ID: "a", ExpectedLabel: "A"}, {ID: "a", ExpectedLabel: "B"}})
	require.ErrorContains(t, err, "duplicate")
}

func TestSelectItemKeepsSingleActiveItem(t *testing.T) {
	s, err := NewSession(items("A", "B", "C"))
	require.NoError(t, err)

	_, err = s.SelectItem("A")
	require.NoError(t, err)
	_, err = s.SelectItem("B")
	require.NoError(t, err)
	require.Equal(t, "B", s.Selected())

	snap := s.Snapshot()
	pending := 0
	for _, it := range snap.Items {
		if it.Status == StatusPending {
			pending++
			require.Equal(t, "B", it.ID)
		}
	}
	require.Equal(t, 1, pending)

	ticket, err := s.SelectItem("B")
	require.NoError(t, err)
	require.False(t, ticket.Active())
	require.Empty(t, s.Selected())
}

func TestSelectUnknownOrCorrectItem(t *testing.T) {
	s, err := NewSession(items("A", "B"))
	require.NoError(t, err)

	_, err = s.SelectItem("Z")
	require.ErrorIs(t, err, ErrUnknownItem)

	ticket, err := s.SelectItem("A")
	require.NoError(t, err)
	require.Equal(t, OutcomeCorrect, s.Apply(ticket, recognize.Result{Label: "a"}, nil))

	_, err = s.SelectItem("A")
	require.ErrorIs(t, err, ErrItemComplete)
}

func TestApplyDropsLateResponseAfterReselect(t *testing.T) {
	s, err := NewSession(items("A", "B"))
	require.NoError(t, err)

	ticketA, err := s.SelectItem("A")
	require.NoError(t, err)
	s.Deselect()
	ticketB, err := s.SelectItem("B")
	require.NoError(t, err)

	require.Equal(t, OutcomeStale, s.Apply(ticketA, recognize.Result{Label: "A"}, nil))
	require.Equal(t, fsm.ItemIdle, s.Status("A"))
	require.Equal(t, fsm.ItemIdle, s.Status("B"))
	require.Empty(t, s.Snapshot().Detected)

	require.Equal(t, OutcomeIncorrect, s.Apply(ticketB, recognize.Result{Label: "A"}, nil))
	require.Equal(t, fsm.ItemIncorrect, s.Status("B"))
	require.Equal(t, "A", s.Snapshot().Detected)
}

func TestApplyReselectingSameItemInvalidatesOldTicket(t *testing.T) {
	s, err := NewSession(items("A"))
	require.NoError(t, err)

	old, err := s.SelectItem("A")
	require.NoError(t, err)
	s.Deselect()
	_, err = s.SelectItem("A")
	require.NoError(t, err)

	require.Equal(t, OutcomeStale, s.Apply(old, recognize.Result{Label: "A"}, nil))
	require.Equal(t, fsm.ItemIdle, s.Status("A"))
}

func TestApplyMatchesNormalizedLabels(t *testing.T) {
	for _, label := range []string{"B", "b", " B ", "\tb\n"} {
		s, err := NewSession(items("B"))
		require.NoError(t, err)
		ticket, err := s.SelectItem("B")
		require.NoError(t, err)
		require.Equal(t, OutcomeCorrect, s.Apply(ticket, recognize.Result{Label: label}, nil), "label %q", label)
		require.Empty(t, s.Selected())
	}
}

func TestApplyErrorKeepsSelection(t *testing.T) {
	s, err := NewSession(items("A"))
	require.NoError(t, err)
	ticket, err := s.SelectItem("A")
	require.NoError(t, err)

	outcome := s.Apply(ticket, recognize.Result{}, &recognize.Error{Kind: recognize.ErrorNetwork, Err: errors.New("refused")})
	require.Equal(t, OutcomeError, outcome)
	require.Equal(t, "A", s.Selected())
	require.Equal(t, fsm.ItemIdle, s.Status("A"))
	require.Equal(t, "Recognition service unreachable", s.Snapshot().LastError)

	seq := s.ErrorSeq()
	s.Apply(ticket, recognize.Result{}, errors.New("boom"))
	require.Equal(t, "Detection failed", s.Snapshot().LastError)

	s.ClearError(seq)
	require.Equal(t, "Detection failed", s.Snapshot().LastError)
	s.ClearError(s.ErrorSeq())
	require.Empty(t, s.Snapshot().LastError)
}

func TestApplyKeepsSentenceAndAnnotation(t *testing.T) {
	s, err := NewSession(items("A"))
	require.NoError(t, err)
	ticket, err := s.SelectItem("A")
	require.NoError(t, err)

	s.Apply(ticket, recognize.Result{Label: "x", AnnotatedImage: "data:image/jpeg;base64,AA==", Sentence: []string{"x"}}, nil)
	snap := s.Snapshot()
	require.Equal(t, "data:image/jpeg;base64,AA==", snap.Annotated)
	require.Equal(t, []string{"x"}, snap.Sentence)
}

func TestProgressRoundsPercentage(t *testing.T) {
	s, err := NewSession(items("A", "B", "C", "D", "E"))
	require.NoError(t, err)

	for _, id := range []string{"A", "C", "E"} {
		ticket, err := s.SelectItem(id)
		require.NoError(t, err)
		require.Equal(t, OutcomeCorrect, s.Apply(ticket, recognize.Result{Label: id}, nil))
	}
	require.Equal(t, 3, s.CorrectCount())
	require.Equal(t, 60, s.Progress())
	require.False(t, s.Done())

	thirds, err := NewSession(items("A", "B", "C"))
	require.NoError(t, err)
	ticket, err := thirds.SelectItem("A")
	require.NoError(t, err)
	thirds.Apply(ticket, recognize.Result{Label: "a"}, nil)
	require.Equal(t, 33, thirds.Progress())
}

func TestNextUnfinishedWraps(t *testing.T) {
	s, err := NewSession(items("A", "B", "C"))
	require.NoError(t, err)

	next, ok := s.NextUnfinished("")
	require.True(t, ok)
	require.Equal(t, "A", next)

	ticket, err := s.SelectItem("C")
	require.NoError(t, err)
	s.Apply(ticket, recognize.Result{Label: "c"}, nil)

	next, ok = s.NextUnfinished("C")
	require.True(t, ok)
	require.Equal(t, "A", next)

	next, ok = s.NextUnfinished("A")
	require.True(t, ok)
	require.Equal(t, "B", next)
}

func TestResolveByIDOrLabel(t *testing.T) {
	s, err := NewSession([]Item{
		{ID: "0-h", ExpectedLabel: "H"},
		{ID: "1-i", ExpectedLabel: "I"},
		{ID: "2-h", ExpectedLabel: "H"},
	})
	require.NoError(t, err)

	id, ok := s.Resolve("1-i")
	require.True(t, ok)
	require.Equal(t, "1-i", id)

	id, ok = s.Resolve(" h ")
	require.True(t, ok)
	require.Equal(t, "0-h", id)

	ticket, err := s.SelectItem("0-h")
	require.NoError(t, err)
	s.Apply(ticket, recognize.Result{Label: "H"}, nil)

	id, ok = s.Resolve("h")
	require.True(t, ok)
	require.Equal(t, "2-h", id)

	_, ok = s.Resolve("zz")
	require.False(t, ok)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "B", want: "b"},
		{in: "  Thank   You ", want: "thank you"},
		{in: "Straße", want: "strasse"},
		{in: "nin\u0303o", want: "ni\u00f1o"},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeStatic, mode)

	mode, err = ParseMode("speech")
	require.NoError(t, err)
	require.Equal(t, ModeSpeech, mode)

	_, err = ParseMode("wave")
	require.Error(t, err)
}
