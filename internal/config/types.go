// Package config resolves, parses, validates, and defaults kamay configuration.
package config

// Config is the fully materialized runtime configuration used by kamay.
type Config struct {
	Language   string
	Recognizer RecognizerConfig
	Speech     SpeechConfig
	Camera     CameraConfig
	Audio      AudioConfig
	Practice   PracticeConfig
	Feedback   FeedbackConfig
	Metrics    MetricsConfig
	Log        LogConfig
	Debug      DebugConfig
}

// RecognizerConfig points at the sign recognition HTTP services.
type RecognizerConfig struct {
	Endpoint         string
	SequenceEndpoint string
	HealthPath       string
	TimeoutMS        int
	NoSignalLabels   []string
}

// SpeechConfig points at the local speech-to-text gRPC engine.
type SpeechConfig struct {
	GRPC          string
	DialTimeoutMS int
	TimeoutMS     int
}

// CameraConfig selects and tunes the video capture source.
type CameraConfig struct {
	Source          string
	URL             string
	Device          int
	DevicePath      string
	MaxEdge         int
	JPEGQuality     int
	MinPayloadChars int
	Hotplug         bool
	LockDir         string
}

// AudioConfig controls preferred and fallback microphone selection and clip limits.
type AudioConfig struct {
	Input      string
	Fallback   string
	MaxClipMS  int
	SilenceRMS float64
}

// PracticeConfig holds poll cadence and session timing.
type PracticeConfig struct {
	StaticIntervalMS   int
	SequenceIntervalMS int
	SpeechIntervalMS   int
	AdvanceDelayMS     int
	ErrorDisplayMS     int
	XPPerItem          int
}

// FeedbackConfig controls where transient and blocking messages are shown.
type FeedbackConfig struct {
	Backend        string
	DesktopAppName string
	Color          string
	Command        CommandConfig
	Sound          bool
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	FrameDump bool
	AudioDump bool
	Dir       string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
