package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rbright/kamay/internal/fsm"
	"github.com/rbright/kamay/internal/practice"
	"github.com/rbright/kamay/internal/recognize"
)

func TestObserverCounters(t *testing.T) {
	m := New()
	var _ practice.Observer = m

	m.Tick(practice.ModeStatic)
	m.Tick(practice.ModeStatic)
	m.EmptyCapture(practice.ModeStatic)
	m.Outcome(practice.ModeSequence, practice.OutcomeCorrect)

	require.InDelta(t, 2, testutil.ToFloat64(m.ticks.WithLabelValues("static")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.empty.WithLabelValues("static")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.outcomes.WithLabelValues("sequence", "correct")), 0)
}

func TestPhaseGaugeIsExclusive(t *testing.T) {
	m := New()
	require.InDelta(t, 1, testutil.ToFloat64(m.phase.WithLabelValues("idle")), 0)

	m.Phase(fsm.StatePracticing)
	require.InDelta(t, 0, testutil.ToFloat64(m.phase.WithLabelValues("idle")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.phase.WithLabelValues("practicing")), 0)
}

func TestInstrumentLabelsResults(t *testing.T) {
	m := New()
	ok := m.Instrument(practice.ModeStatic, recognize.RecognizerFunc(func(context.Context, recognize.Payload, recognize.Route) (recognize.Result, error) {
		return recognize.Result{Label: "A"}, nil
	}))
	bad := m.Instrument(practice.ModeStatic, recognize.RecognizerFunc(func(context.Context, recognize.Payload, recognize.Route) (recognize.Result, error) {
		return recognize.Result{}, &recognize.Error{Kind: recognize.ErrorNetwork, Err: errors.New("refused")}
	}))

	res, err := ok.Recognize(context.Background(), recognize.Payload{}, recognize.Route{})
	require.NoError(t, err)
	require.Equal(t, "A", res.Label)
	_, err = bad.Recognize(context.Background(), recognize.Payload{}, recognize.Route{})
	require.Equal(t, recognize.ErrorNetwork, recognize.KindOf(err))

	require.Equal(t, 2, testutil.CollectAndCount(m.requests))
}

func TestResultLabel(t *testing.T) {
	require.Equal(t, "ok", resultLabel(nil))
	require.Equal(t, "no_signal", resultLabel(&recognize.Error{Kind: recognize.ErrorNoSignal}))
	require.Equal(t, "cancelled", resultLabel(context.Canceled))
	require.Equal(t, "error", resultLabel(errors.New("x")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Tick(practice.ModeSpeech)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `kamay_poll_ticks_total{mode="speech"} 1`)
}

func TestServerServesUntilCancelled(t *testing.T) {
	m := New()
	srv, err := m.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && len(body) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not shut down")
	}
}
