// Package doctor runs readiness diagnostics for config, recognizers, the
// speech engine, and capture devices.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/kamay/internal/audio"
	"github.com/rbright/kamay/internal/capture"
	"github.com/rbright/kamay/internal/config"
	"github.com/rbright/kamay/internal/speech"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type probes struct {
	httpClient  *http.Client
	selectAudio func(ctx context.Context, input, fallback string) (audio.Selection, error)
	speech      func(ctx context.Context, cfg speech.Config) error
	camera      func(cfg config.CameraConfig) capture.Source
}

func defaultProbes() probes {
	return probes{
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		selectAudio: audio.SelectDevice,
		speech:      probeSpeech,
		camera: func(cfg config.CameraConfig) capture.Source {
			return capture.OpenCamera(cfg, nil).Source
		},
	}
}

// Run executes environment, config, and service checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	return run(ctx, cfg, defaultProbes())
}

func run(ctx context.Context, loaded config.Loaded, p probes) Report {
	cfg := loaded.Config
	checks := []Check{configCheck(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory available", "XDG_RUNTIME_DIR is empty; falling back to a temp directory"))

	switch cfg.Feedback.Backend {
	case "desktop":
		checks = append(checks, checkBinary("busctl", "desktop notifications require busctl"))
	case "command":
		checks = append(checks, checkCommand(cfg.Feedback.Command.Argv, "feedback.command"))
	}

	checks = append(checks, checkRecognizer(ctx, p.httpClient, "recognizer.static", cfg.Recognizer.Endpoint, cfg.Recognizer.HealthPath))
	checks = append(checks, checkRecognizer(ctx, p.httpClient, "recognizer.sequence", cfg.Recognizer.SequenceEndpoint, cfg.Recognizer.HealthPath))
	checks = append(checks, checkSpeech(ctx, p, cfg.Speech))
	checks = append(checks, checkCamera(ctx, p, cfg.Camera))
	checks = append(checks, checkAudioSelection(ctx, p, cfg.Audio))

	return Report{Checks: checks}
}

func configCheck(loaded config.Loaded) Check {
	msg := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		msg = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 && loaded.Exists {
		msg += fmt.Sprintf(" with %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// healthURL swaps the path of a predict endpoint for the health path.
func healthURL(endpoint, healthPath string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	u.Path = healthPath
	u.RawQuery = ""
	return u.String(), nil
}

// checkRecognizer probes a recognizer's health endpoint.
func checkRecognizer(ctx context.Context, client *http.Client, name, endpoint, healthPath string) Check {
	target, err := healthURL(endpoint, healthPath)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 256))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, target)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("healthy at %s", target)}
}

func probeSpeech(ctx context.Context, cfg speech.Config) error {
	client, err := speech.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Health(healthCtx)
}

func checkSpeech(ctx context.Context, p probes, cfg config.SpeechConfig) Check {
	err := p.speech(ctx, speech.Config{
		Endpoint:    cfg.GRPC,
		DialTimeout: time.Duration(cfg.DialTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return Check{Name: "speech.grpc", Pass: false, Message: err.Error()}
	}
	return Check{Name: "speech.grpc", Pass: true, Message: fmt.Sprintf("serving at %s", cfg.GRPC)}
}

// checkCamera starts the configured camera until its first frame, then releases it.
func checkCamera(ctx context.Context, p probes, cfg config.CameraConfig) Check {
	src := p.camera(cfg)
	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := src.Start(startCtx)
	defer func() { _ = src.Stop() }()
	if err != nil {
		if de, ok := capture.AsDeviceError(err); ok {
			return Check{Name: "camera", Pass: false, Message: de.Message()}
		}
		return Check{Name: "camera", Pass: false, Message: err.Error()}
	}

	frame, err := src.Frame(startCtx)
	if err != nil {
		return Check{Name: "camera", Pass: false, Message: err.Error()}
	}
	return Check{Name: "camera", Pass: true, Message: fmt.Sprintf("%s source delivering %dx%d frames", cfg.Source, frame.Width(), frame.Height())}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, p probes, cfg config.AudioConfig) Check {
	selection, err := p.selectAudio(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
