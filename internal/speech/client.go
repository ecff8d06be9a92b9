// Package speech is a gRPC client for the local speech-to-text engine used by
// audio practice.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the engine's gRPC service, also used for health checks.
	ServiceName      = "kamay.speech.v1.Transcriber"
	transcribeMethod = "/" + ServiceName + "/Transcribe"
)

// Config controls dialing and per-call limits.
type Config struct {
	Endpoint    string
	DialTimeout time.Duration
	Timeout     time.Duration
}

// Client holds one connection to the engine.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Dial connects and waits (bounded by cfg.DialTimeout) for the channel to be ready.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("speech endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial speech grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for speech grpc readiness: %w", err)
	}

	return &Client{conn: conn, timeout: cfg.Timeout}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Transcribe sends one WAV clip and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, wav []byte, sampleRate int, lang string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{
		"language":         LanguageHint(lang),
		"sample_rate":      sampleRate,
		"audio_wav_base64": base64.StdEncoding.EncodeToString(wav),
	})
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, transcribeMethod, req, resp); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text, ok := resp.GetFields()["text"]
	if !ok {
		return "", errors.New("transcribe response missing text")
	}
	return strings.TrimSpace(text.GetStringValue()), nil
}

// Health reports whether the engine's transcriber service is SERVING.
func (c *Client) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("speech health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("speech engine status %s", resp.GetStatus())
	}
	return nil
}

// LanguageHint reduces a BCP 47 tag or practice language to the engine's
// short code: "en" for English/ASL, "fil" for Filipino/FSL.
func LanguageHint(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "asl", "english":
		return "en"
	case "fsl", "tagalog":
		return "fil"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	if base.String() == "tl" {
		return "fil"
	}
	return base.String()
}
