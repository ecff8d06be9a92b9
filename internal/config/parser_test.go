package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	content := `
{
  // practice language
  "language": "fsl",
  "recognizer": {
    "endpoint": "http://10.0.0.5:8000/predict",
    "timeout_ms": 1500,
  },
  "camera": {
    "source": "mjpeg",
    "url": "http://pet-cam.local:8080/stream",
    "max_edge": 640,
    "jpeg_quality": 70
  },
  "practice": {
    "static_interval_ms": 800,
    "advance_delay_ms": 500
  },
  "metrics": {"listen": "127.0.0.1:9464"},
  "log": {"level": "debug"}
}
`

	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "fsl", cfg.Language)
	require.Equal(t, "http://10.0.0.5:8000/predict", cfg.Recognizer.Endpoint)
	require.Equal(t, 1500, cfg.Recognizer.TimeoutMS)
	require.Equal(t, Default().Recognizer.SequenceEndpoint, cfg.Recognizer.SequenceEndpoint)
	require.Equal(t, "http://pet-cam.local:8080/stream", cfg.Camera.URL)
	require.Equal(t, 640, cfg.Camera.MaxEdge)
	require.Equal(t, 70, cfg.Camera.JPEGQuality)
	require.Equal(t, 800, cfg.Practice.StaticIntervalMS)
	require.Equal(t, 500, cfg.Practice.AdvanceDelayMS)
	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("   \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseRejectsNonObject(t *testing.T) {
	_, _, err := Parse("language = asl\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse(`{"recognizer": {"endpont": "http://x/predict"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseLineNumberOnError(t *testing.T) {
	content := "{\n  \"language\": \"asl\",\n  \"practice\": {\"static_interval_ms\": \"fast\"}\n}"
	_, _, err := Parse(content, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestParseFeedbackCommandQuoted(t *testing.T) {
	cfg, warnings, err := Parse(`{
  "feedback": {"backend": "command", "command": "notify-send --app-name 'kamay practice'"}
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, []string{"notify-send", "--app-name", "kamay practice"}, cfg.Feedback.Command.Argv)
}

func TestParseFeedbackCommandWithoutBackendWarns(t *testing.T) {
	_, warnings, err := Parse(`{"feedback": {"command": "notify-send"}}`, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "ignoring")
}

func TestParseFastIntervalWarns(t *testing.T) {
	_, warnings, err := Parse(`{"practice": {"sequence_interval_ms": 50}}`, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "practice.sequence_interval_ms=50")
}
