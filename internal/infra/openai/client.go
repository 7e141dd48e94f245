package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.openai.com/v1"

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	RatePerSec float64
}

// Classifier sends one frame per chat-completions call and parses the answer into a record.
type Classifier struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	timeout   time.Duration
	limiter   *rate.Limiter
	client    *http.Client
	logger    *zap.Logger
}

func NewClassifier(cfg ClientConfig, logger *zap.Logger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is empty", entity.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &Classifier{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(limit, 1),
		client:    &http.Client{},
		logger:    logger,
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Classifier) Classify(ctx context.Context, frame entity.Frame) (*entity.FrameEventRecord, error) {
	dataURL, err := encodeImage(frame.Path)
	if err != nil {
		return nil, &entity.FrameError{Frame: frame.ID, Kind: entity.ErrSourceUnavailable, Err: err}
	}

	content, err := c.complete(ctx, dataURL)
	var envErr *envelopeError
	switch {
	case errors.As(err, &envErr):
		return nil, &entity.FrameError{Frame: frame.ID, Kind: entity.ErrParse, Err: err}
	case err != nil:
		return nil, &entity.FrameError{Frame: frame.ID, Kind: entity.ErrTransport, Err: err}
	}
	c.logger.Debug("raw classifier answer", zap.String("frame", frame.ID), zap.String("content", content))

	record, err := ParseFrameEvents(frame.ID, content)
	if err != nil {
		return nil, &entity.FrameError{Frame: frame.ID, Kind: entity.ErrParse, Err: err}
	}
	return record, nil
}

// envelopeError means the service answered 200 but the body is not a usable completion.
type envelopeError struct {
	reason string
}

func (e *envelopeError) Error() string {
	return "unusable completion: " + e.reason
}

// complete returns the first choice's text.
func (c *Classifier) complete(ctx context.Context, dataURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: framePrompt},
			}},
		},
		MaxTokens: c.maxTokens,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &envelopeError{reason: err.Error()}
	}
	if len(result.Choices) == 0 {
		return "", &envelopeError{reason: "no choices"}
	}

	if result.Choices[0].FinishReason == "length" {
		c.logger.Warn("classifier answer truncated by max tokens",
			zap.String("model", result.Model),
			zap.Int("max_tokens", c.maxTokens),
		)
	}
	return result.Choices[0].Message.Content, nil
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
