package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Turn is one prior exchange fed back to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ImageInput carries a multimodal image, either an https URL or a
// data:image/...;base64,... payload.
type ImageInput struct {
	ImageURL string
	Detail   string // "low" | "high", optional
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	System      string
	History     []Turn
	User        string
	MaxTokens   int
	Temperature float64
	// When Schema is set the model is constrained to emit JSON matching it.
	SchemaName string
	Schema     map[string]any
	// Optional image; switches the call to the vision model.
	Image *ImageInput
}

// Client is the language/embedding model interface consumed by services.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// HTTPClient implements Client against an OpenAI-compatible API.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	embedModel  string
	client      *http.Client
	logger      *zap.Logger
}

// NewHTTPClient builds a client for the chat-completions and embeddings
// endpoints.
func NewHTTPClient(baseURL, apiKey, model, visionModel, embedModel string, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if visionModel == "" {
		visionModel = model
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		embedModel:  embedModel,
		client:      &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
}

func (c *HTTPClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := c.model
	if req.Image != nil {
		model = c.visionModel
	}

	messages := make([]chatMessage, 0, len(req.History)+2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.History {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}
	if req.Image != nil {
		content := []map[string]any{
			{"type": "text", "text": req.User},
		}
		item := map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": req.Image.ImageURL},
		}
		if strings.TrimSpace(req.Image.Detail) != "" {
			item["image_url"].(map[string]any)["detail"] = req.Image.Detail
		}
		content = append(content, item)
		messages = append(messages, chatMessage{Role: "user", Content: content})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: req.User})
	}

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	var cr chatResponse
	if err := c.post(ctx, "/chat/completions", body, &cr); err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", fmt.Errorf("llm api error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("llm empty response")
	}
	return cr.Choices[0].Message.Content, nil
}

func (c *HTTPClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	body := embeddingsRequest{
		Model: c.embedModel,
		Input: []string{text},
	}

	var er embeddingsResponse
	if err := c.post(ctx, "/embeddings", body, &er); err != nil {
		return nil, err
	}
	if len(er.Data) == 0 || len(er.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("llm empty embedding")
	}

	raw := er.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, f := range raw {
		vec[i] = float32(f)
	}
	return vec, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if c.logger != nil {
			c.logger.Warn("llm error response",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", respBody),
			)
		}
		return fmt.Errorf("llm http error: status=%d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}
