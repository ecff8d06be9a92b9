package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Language {
	case "asl", "fsl":
	default:
		return nil, fmt.Errorf("language must be one of: asl, fsl")
	}

	if err := validateEndpoint("recognizer.endpoint", cfg.Recognizer.Endpoint); err != nil {
		return nil, err
	}
	if err := validateEndpoint("recognizer.sequence_endpoint", cfg.Recognizer.SequenceEndpoint); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Recognizer.HealthPath) == "" {
		return nil, fmt.Errorf("recognizer.health_path must not be empty")
	}
	if !strings.HasPrefix(cfg.Recognizer.HealthPath, "/") {
		return nil, fmt.Errorf("recognizer.health_path must start with '/'")
	}
	if cfg.Recognizer.TimeoutMS <= 0 {
		return nil, fmt.Errorf("recognizer.timeout_ms must be > 0")
	}

	if strings.TrimSpace(cfg.Speech.GRPC) == "" {
		return nil, fmt.Errorf("speech.grpc must not be empty")
	}
	if cfg.Speech.DialTimeoutMS <= 0 || cfg.Speech.TimeoutMS <= 0 {
		return nil, fmt.Errorf("speech timeouts must be > 0")
	}

	switch cfg.Camera.Source {
	case "mjpeg":
		if err := validateEndpoint("camera.url", cfg.Camera.URL); err != nil {
			return nil, err
		}
	case "webcam":
		if cfg.Camera.Device < 0 {
			return nil, fmt.Errorf("camera.device must be >= 0")
		}
	default:
		return nil, fmt.Errorf("camera.source must be one of: mjpeg, webcam")
	}
	if cfg.Camera.MaxEdge < 0 {
		return nil, fmt.Errorf("camera.max_edge must be >= 0")
	}
	if cfg.Camera.MaxEdge > 0 && cfg.Camera.MaxEdge < 64 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("camera.max_edge=%d is very small; recognition accuracy may suffer", cfg.Camera.MaxEdge)})
	}
	if cfg.Camera.JPEGQuality < 1 || cfg.Camera.JPEGQuality > 100 {
		return nil, fmt.Errorf("camera.jpeg_quality must be between 1 and 100")
	}
	if cfg.Camera.MinPayloadChars < 0 {
		return nil, fmt.Errorf("camera.min_payload_chars must be >= 0")
	}

	if cfg.Audio.MaxClipMS <= 0 {
		return nil, fmt.Errorf("audio.max_clip_ms must be > 0")
	}
	if cfg.Audio.SilenceRMS < 0 {
		return nil, fmt.Errorf("audio.silence_rms must be >= 0")
	}

	intervals := []struct {
		name  string
		value int
	}{
		{"practice.static_interval_ms", cfg.Practice.StaticIntervalMS},
		{"practice.sequence_interval_ms", cfg.Practice.SequenceIntervalMS},
		{"practice.speech_interval_ms", cfg.Practice.SpeechIntervalMS},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			return nil, fmt.Errorf("%s must be > 0", iv.name)
		}
		if iv.value < 100 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s=%d is below 100ms; the recognizer may not keep up", iv.name, iv.value)})
		}
	}
	if cfg.Practice.AdvanceDelayMS < 0 {
		return nil, fmt.Errorf("practice.advance_delay_ms must be >= 0")
	}
	if cfg.Practice.ErrorDisplayMS < 0 {
		return nil, fmt.Errorf("practice.error_display_ms must be >= 0")
	}
	if cfg.Practice.XPPerItem < 0 {
		return nil, fmt.Errorf("practice.xp_per_item must be >= 0")
	}

	switch cfg.Feedback.Backend {
	case "console":
	case "desktop":
		if strings.TrimSpace(cfg.Feedback.DesktopAppName) == "" {
			return nil, fmt.Errorf("feedback.desktop_app_name must not be empty when feedback.backend=desktop")
		}
	case "command":
		if len(cfg.Feedback.Command.Argv) == 0 {
			return nil, fmt.Errorf("feedback.command must not be empty when feedback.backend=command")
		}
	default:
		return nil, fmt.Errorf("feedback.backend must be one of: console, desktop, command")
	}
	if cfg.Feedback.Backend != "command" && len(cfg.Feedback.Command.Argv) > 0 {
		warnings = append(warnings, Warning{Message: "feedback.command is set but feedback.backend is not \"command\"; ignoring"})
	}
	switch cfg.Feedback.Color {
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf("feedback.color must be one of: auto, always, never")
	}

	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		host, _, err := net.SplitHostPort(listen)
		if err != nil {
			return nil, fmt.Errorf("metrics.listen: %w", err)
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("metrics.listen %q exposes metrics on all interfaces", listen)})
		}
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	if (cfg.Debug.FrameDump || cfg.Debug.AudioDump) && strings.TrimSpace(cfg.Debug.Dir) == "" {
		warnings = append(warnings, Warning{Message: "debug dumps enabled without debug.dir; using the state directory"})
	}

	return warnings, nil
}

func validateEndpoint(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
