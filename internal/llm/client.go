package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"nlsearch/internal/config"
)

// requestTimeout is fixed; a caller-side context is the only other abort mechanism.
const requestTimeout = 120 * time.Second

// Image is one inline attachment for a multimodal request.
type Image struct {
	Base64 string
	Mime   string
}

// SendOptions carries the optional parts of a request. Zero values fall
// back to the tenant configuration.
type SendOptions struct {
	SystemPrompt string
	Images       []Image
	Model        string
	Temperature  *float64
	MaxTokens    int
}

// Client is a stateless wrapper around one tenant's chat-completion endpoint.
type Client struct {
	cfg    config.ModelConfig
	httpc  *http.Client
	logger *zap.Logger
}

func New(cfg config.ModelConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Send posts one chat-completion request and returns the reply text.
// With images the user message becomes a text part plus one image_url
// part per image (vision request shape). Failures are returned as
// *ConfigError or *ClientError and are never retried here.
func (c *Client) Send(ctx context.Context, prompt string, opts SendOptions) (string, error) {
	base := c.cfg.URL
	if base == "" {
		return "", &ConfigError{Reason: "model server URL is empty"}
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	endpoint := base + "v1/chat/completions"

	var messages []map[string]interface{}
	if opts.SystemPrompt != "" {
		messages = append(messages, map[string]interface{}{
			"role":    "system",
			"content": opts.SystemPrompt,
		})
	}
	if len(opts.Images) > 0 {
		parts := []map[string]interface{}{
			{"type": "text", "text": prompt},
		}
		for _, img := range opts.Images {
			parts = append(parts, map[string]interface{}{
				"type": "image_url",
				"image_url": map[string]interface{}{
					"url": "data:" + img.Mime + ";base64," + img.Base64,
				},
			})
		}
		messages = append(messages, map[string]interface{}{
			"role":    "user",
			"content": parts,
		})
	} else {
		messages = append(messages, map[string]interface{}{
			"role":    "user",
			"content": prompt,
		})
	}

	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	temperature := c.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	payload := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &ClientError{Kind: KindUnexpected, Endpoint: endpoint, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Kind: KindUnexpected, Endpoint: endpoint, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.logger.Info("sending prompt to model server", zap.String("endpoint", endpoint))

	resp, err := c.httpc.Do(req)
	if err != nil {
		cerr := classifyTransportError(endpoint, err)
		c.logger.Error("model request failed", zap.String("endpoint", endpoint), zap.Error(cerr))
		return "", cerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		cerr := &ClientError{Kind: KindUnexpected, Endpoint: endpoint, Detail: err.Error()}
		c.logger.Error("model request failed", zap.String("endpoint", endpoint), zap.Error(cerr))
		return "", cerr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := &ClientError{
			Kind:     KindHTTP,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Detail:   strings.TrimSpace(string(raw)),
		}
		c.logger.Error("model request failed", zap.String("endpoint", endpoint), zap.Error(cerr))
		return "", cerr
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		cerr := &ClientError{
			Kind:     KindMalformed,
			Endpoint: endpoint,
			Detail:   "no choices[0].message.content in response",
		}
		c.logger.Error("model request failed", zap.String("endpoint", endpoint), zap.Error(cerr))
		return "", cerr
	}
	return parsed.Choices[0].Message.Content, nil
}

func classifyTransportError(endpoint string, err error) *ClientError {
	if uerr, ok := err.(*url.Error); ok {
		if uerr.Timeout() {
			return &ClientError{Kind: KindTimeout, Endpoint: endpoint, Detail: uerr.Error()}
		}
		return &ClientError{Kind: KindConnection, Endpoint: endpoint, Detail: uerr.Error()}
	}
	return &ClientError{Kind: KindUnexpected, Endpoint: endpoint, Detail: err.Error()}
}
