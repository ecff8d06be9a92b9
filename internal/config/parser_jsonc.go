package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Language   *string          `json:"language"`
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Speech     *jsoncSpeech     `json:"speech"`
	Camera     *jsoncCamera     `json:"camera"`
	Audio      *jsoncAudio      `json:"audio"`
	Practice   *jsoncPractice   `json:"practice"`
	Feedback   *jsoncFeedback   `json:"feedback"`
	Metrics    *jsoncMetrics    `json:"metrics"`
	Log        *jsoncLog        `json:"log"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncRecognizer struct {
	Endpoint         *string          `json:"endpoint"`
	SequenceEndpoint *string          `json:"sequence_endpoint"`
	HealthPath       *string          `json:"health_path"`
	TimeoutMS        *int             `json:"timeout_ms"`
	NoSignalLabels   *jsoncStringList `json:"no_signal_labels"`
}

type jsoncSpeech struct {
	GRPC          *string `json:"grpc"`
	DialTimeoutMS *int    `json:"dial_timeout_ms"`
	TimeoutMS     *int    `json:"timeout_ms"`
}

type jsoncCamera struct {
	Source          *string `json:"source"`
	URL             *string `json:"url"`
	Device          *int    `json:"device"`
	DevicePath      *string `json:"device_path"`
	MaxEdge         *int    `json:"max_edge"`
	JPEGQuality     *int    `json:"jpeg_quality"`
	MinPayloadChars *int    `json:"min_payload_chars"`
	Hotplug         *bool   `json:"hotplug"`
	LockDir         *string `json:"lock_dir"`
}

type jsoncAudio struct {
	Input      *string  `json:"input"`
	Fallback   *string  `json:"fallback"`
	MaxClipMS  *int     `json:"max_clip_ms"`
	SilenceRMS *float64 `json:"silence_rms"`
}

type jsoncPractice struct {
	StaticIntervalMS   *int `json:"static_interval_ms"`
	SequenceIntervalMS *int `json:"sequence_interval_ms"`
	SpeechIntervalMS   *int `json:"speech_interval_ms"`
	AdvanceDelayMS     *int `json:"advance_delay_ms"`
	ErrorDisplayMS     *int `json:"error_display_ms"`
	XPPerItem          *int `json:"xp_per_item"`
}

type jsoncFeedback struct {
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	Color          *string `json:"color"`
	Command        *string `json:"command"`
	Sound          *bool   `json:"sound"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

type jsoncDebug struct {
	FrameDump *bool   `json:"frame_dump"`
	AudioDump *bool   `json:"audio_dump"`
	Dir       *string `json:"dir"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Language != nil {
		cfg.Language = strings.ToLower(strings.TrimSpace(*payload.Language))
	}

	if r := payload.Recognizer; r != nil {
		setString(&cfg.Recognizer.Endpoint, r.Endpoint)
		setString(&cfg.Recognizer.SequenceEndpoint, r.SequenceEndpoint)
		setString(&cfg.Recognizer.HealthPath, r.HealthPath)
		setInt(&cfg.Recognizer.TimeoutMS, r.TimeoutMS)
		if r.NoSignalLabels != nil {
			cfg.Recognizer.NoSignalLabels = append([]string(nil), (*r.NoSignalLabels)...)
		}
	}

	if s := payload.Speech; s != nil {
		setString(&cfg.Speech.GRPC, s.GRPC)
		setInt(&cfg.Speech.DialTimeoutMS, s.DialTimeoutMS)
		setInt(&cfg.Speech.TimeoutMS, s.TimeoutMS)
	}

	if c := payload.Camera; c != nil {
		if c.Source != nil {
			cfg.Camera.Source = strings.ToLower(strings.TrimSpace(*c.Source))
		}
		setString(&cfg.Camera.URL, c.URL)
		setInt(&cfg.Camera.Device, c.Device)
		setString(&cfg.Camera.DevicePath, c.DevicePath)
		setInt(&cfg.Camera.MaxEdge, c.MaxEdge)
		setInt(&cfg.Camera.JPEGQuality, c.JPEGQuality)
		setInt(&cfg.Camera.MinPayloadChars, c.MinPayloadChars)
		if c.Hotplug != nil {
			cfg.Camera.Hotplug = *c.Hotplug
		}
		setString(&cfg.Camera.LockDir, c.LockDir)
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
		setInt(&cfg.Audio.MaxClipMS, a.MaxClipMS)
		if a.SilenceRMS != nil {
			cfg.Audio.SilenceRMS = *a.SilenceRMS
		}
	}

	if p := payload.Practice; p != nil {
		setInt(&cfg.Practice.StaticIntervalMS, p.StaticIntervalMS)
		setInt(&cfg.Practice.SequenceIntervalMS, p.SequenceIntervalMS)
		setInt(&cfg.Practice.SpeechIntervalMS, p.SpeechIntervalMS)
		setInt(&cfg.Practice.AdvanceDelayMS, p.AdvanceDelayMS)
		setInt(&cfg.Practice.ErrorDisplayMS, p.ErrorDisplayMS)
		setInt(&cfg.Practice.XPPerItem, p.XPPerItem)
	}

	if f := payload.Feedback; f != nil {
		if f.Backend != nil {
			cfg.Feedback.Backend = strings.ToLower(strings.TrimSpace(*f.Backend))
		}
		setString(&cfg.Feedback.DesktopAppName, f.DesktopAppName)
		if f.Color != nil {
			cfg.Feedback.Color = strings.ToLower(strings.TrimSpace(*f.Color))
		}
		if f.Command != nil {
			raw := *f.Command
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid feedback.command: %w", err)
			}
			cfg.Feedback.Command = CommandConfig{Raw: raw, Argv: argv}
		}
		if f.Sound != nil {
			cfg.Feedback.Sound = *f.Sound
		}
	}

	if payload.Metrics != nil {
		setString(&cfg.Metrics.Listen, payload.Metrics.Listen)
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	if d := payload.Debug; d != nil {
		if d.FrameDump != nil {
			cfg.Debug.FrameDump = *d.FrameDump
		}
		if d.AudioDump != nil {
			cfg.Debug.AudioDump = *d.AudioDump
		}
		setString(&cfg.Debug.Dir, d.Dir)
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
