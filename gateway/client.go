// Package gateway talks to the image analysis service: an OpenAI
// compatible chat completions endpoint that turns a picture into a
// depthmesh bundle.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soypat/depthmesh"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultModel   = "google/gemini-2.5-flash"
	DefaultTimeout = 90 * time.Second
)

// maxResponseBody bounds how much of an analysis response is read.
const maxResponseBody = 8 << 20

// Config configures a Client.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	// Timeout bounds a whole analysis call. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond limits outgoing calls. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Analyzer turns an image into a bundle.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (*depthmesh.Bundle, error)
}

// Client is the chat completions Analyzer.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

var _ Analyzer = (*Client)(nil)

// New returns a client for cfg. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "gateway")),
		now:    time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
}

// Analyze sends the image to the analysis service and parses its answer.
// Transport failures and non 2xx statuses return an error wrapping
// ErrUpstreamUnavailable. An answer that cannot be decoded is not an
// error: a synthesized bundle is returned instead. The bundle is stamped
// with the image URL and the processing time.
func (c *Client) Analyze(ctx context.Context, imageURL string) (*depthmesh.Bundle, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
	}
	content, err := c.complete(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	b := depthmesh.ParseBundle(content)
	if b.Synthesized {
		c.logger.Warn("unparsable analysis, using synthesized bundle",
			zap.String("image", imageURL), zap.Int("contentLen", len(content)))
	} else if len(b.Recovered) > 0 {
		c.logger.Info("analysis fields replaced by defaults",
			zap.String("image", imageURL), zap.Strings("fields", b.Recovered))
	}
	now := c.now().UTC()
	b.ProcessedAt = &now
	b.OriginalImageURL = imageURL
	return &b, nil
}

func (c *Client) complete(ctx context.Context, imageURL string) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageRef{URL: imageURL}},
			}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUpstreamUnavailable, err)
	}
	c.logger.Debug("analysis response",
		zap.Int("status", resp.StatusCode), zap.Duration("latency", c.now().Sub(start)), zap.Int("bytes", len(raw)))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := newUpstreamError(resp.StatusCode, strings.TrimSpace(string(raw)))
		c.logger.Error("analysis service error", zap.Int("status", resp.StatusCode), zap.String("body", uerr.Body))
		return "", uerr
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil || len(cr.Choices) == 0 {
		c.logger.Warn("malformed completion envelope", zap.Error(err))
		return "", nil
	}
	return cr.Choices[0].Message.Content, nil
}
