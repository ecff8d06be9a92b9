package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const maxResponseBytes = 8 << 20

type predictRequest struct {
	Image    string `json:"image"`
	ClientID string `json:"clientId,omitempty"`
	Language string `json:"language,omitempty"`
}

type predictResponse struct {
	Success        *bool    `json:"success"`
	Prediction     *string  `json:"prediction"`
	Confidence     *float64 `json:"confidence"`
	AnnotatedImage string   `json:"annotated_image"`
	Frame          string   `json:"frame"`
	Sentence       []string `json:"sentence"`
	Error          string   `json:"error"`
}

// HTTPClient talks to a POST /predict JSON endpoint.
type HTTPClient struct {
	client   *http.Client
	timeout  time.Duration
	noSignal map[string]struct{}
}

// NewHTTPClient builds a client. Predictions matching noSignalLabels
// (case-insensitively) are reported as ErrorNoSignal.
func NewHTTPClient(timeout time.Duration, noSignalLabels []string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	fold := cases.Fold()
	labels := make(map[string]struct{}, len(noSignalLabels))
	for _, l := range noSignalLabels {
		labels[fold.String(strings.TrimSpace(l))] = struct{}{}
	}
	return &HTTPClient{client: client, timeout: timeout, noSignal: labels}
}

func (c *HTTPClient) Recognize(ctx context.Context, payload Payload, route Route) (Result, error) {
	if payload.Kind != KindImage {
		return Result{}, fmt.Errorf("http recognizer cannot handle %s payloads", payload.Kind)
	}

	body, err := json.Marshal(predictRequest{
		Image:    payload.DataURL(),
		ClientID: route.ClientID,
		Language: route.Language,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: ErrorNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &Error{Kind: ErrorNetwork, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var decoded predictResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return Result{}, &Error{Kind: ErrorServer, Status: resp.StatusCode, Msg: msg}
	}
	if decodeErr != nil {
		return Result{}, &Error{Kind: ErrorServer, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}

	return c.toResult(decoded, resp.StatusCode)
}

func (c *HTTPClient) toResult(decoded predictResponse, status int) (Result, error) {
	if decoded.Success != nil && !*decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "recognizer reported no result"
		}
		return Result{}, &Error{Kind: ErrorNoSignal, Status: status, Msg: msg}
	}
	if decoded.Prediction == nil {
		return Result{}, &Error{Kind: ErrorServer, Status: status, Err: errors.New("response missing prediction")}
	}

	label := strings.TrimSpace(*decoded.Prediction)
	if label == "" {
		return Result{}, &Error{Kind: ErrorNoSignal, Status: status, Msg: "empty prediction"}
	}
	if _, ok := c.noSignal[cases.Fold().String(label)]; ok {
		return Result{}, &Error{Kind: ErrorNoSignal, Status: status, Msg: label}
	}

	annotated := decoded.AnnotatedImage
	if annotated == "" {
		annotated = decoded.Frame
	}
	return Result{
		Label:          label,
		Confidence:     decoded.Confidence,
		AnnotatedImage: annotated,
		Sentence:       decoded.Sentence,
	}, nil
}
