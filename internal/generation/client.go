package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

// UnrecognizedOutputError is returned when the provider answers with an
// output shape outside the known set. Unknown shapes must fail loudly
// instead of slipping through as empty assets.
type UnrecognizedOutputError struct {
	Raw string
}

func (e *UnrecognizedOutputError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("unrecognized generation output shape: %s", raw)
}

// Asset is the canonical normalized result: either a URL to the
// generated media or its base64 payload, never both empty.
type Asset struct {
	URL    string
	Base64 string
	MIME   string
}

// Request carries the inputs for one generation call.
type Request struct {
	Kind        model.ContentKind
	SourceImage string // user photo: URL or data URI
	BaseImage   string // event's branded base image URL
	Prompt      string
}

// Config holds inference provider settings.
type Config struct {
	BaseURL      string
	APIKey       string
	ImageModel   string
	VideoModel   string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Client talks to the inference provider. Latency is seconds to tens of
// seconds; the caller decides how long to wait via context.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 120 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type predictionInput struct {
	Image     string `json:"image,omitempty"`
	BaseImage string `json:"base_image,omitempty"`
	Prompt    string `json:"prompt"`
}

type predictionRequest struct {
	Model string          `json:"model"`
	Input predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Generate submits a prediction and polls until it reaches a terminal
// state, then normalizes the provider's output into one Asset.
func (c *Client) Generate(ctx context.Context, req Request) (*Asset, error) {
	modelName := c.cfg.ImageModel
	if req.Kind == model.KindVideo {
		modelName = c.cfg.VideoModel
	}

	body, err := json.Marshal(predictionRequest{
		Model: modelName,
		Input: predictionInput{
			Image:     req.SourceImage,
			BaseImage: req.BaseImage,
			Prompt:    req.Prompt,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("submit prediction: status %d: %s", resp.StatusCode, data)
	}

	// Some providers stream the media straight back instead of a JSON
	// prediction envelope. Base64-encode on receipt.
	if mime := resp.Header.Get("Content-Type"); isMediaType(mime) {
		return assetFromStream(resp.Body, mime)
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}

	if isTerminal(pred.Status) {
		return c.finish(pred)
	}
	return c.poll(ctx, pred.ID)
}

// poll waits for the prediction to reach a terminal state.
func (c *Client) poll(ctx context.Context, id string) (*Asset, error) {
	var pred prediction

	backoff := retry.WithMaxDuration(c.cfg.PollTimeout, retry.NewConstant(c.cfg.PollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/predictions/"+id, nil)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(fmt.Errorf("poll prediction: status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
			return fmt.Errorf("decode prediction: %w", err)
		}
		if !isTerminal(pred.Status) {
			return retry.RetryableError(fmt.Errorf("prediction %s still %s", id, pred.Status))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("poll prediction %s: %w", id, err)
	}

	return c.finish(pred)
}

func (c *Client) finish(pred prediction) (*Asset, error) {
	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, pred.Error)
	}
	if len(pred.Output) == 0 {
		return nil, &UnrecognizedOutputError{Raw: "<empty output>"}
	}
	asset, err := NormalizeOutput(pred.Output)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("generation finished", "prediction_id", pred.ID, "url", asset.URL != "")
	return asset, nil
}

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func isMediaType(mime string) bool {
	return strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "video/")
}

func assetFromStream(r io.Reader, mime string) (*Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read media stream: %w", err)
	}
	if len(data) == 0 {
		return nil, &UnrecognizedOutputError{Raw: "<empty stream>"}
	}
	return &Asset{Base64: base64.StdEncoding.EncodeToString(data), MIME: mime}, nil
}

// NormalizeOutput folds the provider's known output variants — a URL
// string, an array of URL strings, or an object whose "output" field is
// either of those — into one Asset. Anything else is rejected with a
// typed error.
func NormalizeOutput(raw json.RawMessage) (*Asset, error) {
	var urlStr string
	if err := json.Unmarshal(raw, &urlStr); err == nil {
		if urlStr == "" {
			return nil, &UnrecognizedOutputError{Raw: string(raw)}
		}
		return &Asset{URL: urlStr}, nil
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		if len(urls) == 0 || urls[0] == "" {
			return nil, &UnrecognizedOutputError{Raw: string(raw)}
		}
		return &Asset{URL: urls[0]}, nil
	}

	var wrapper struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Output) > 0 {
		return NormalizeOutput(wrapper.Output)
	}

	return nil, &UnrecognizedOutputError{Raw: string(raw)}
}

// Fetch downloads generated media from a provider URL.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return data, nil
}
