package llm

import (
	"context"
	"errors"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"nephro-assistant/internal/metrics"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is used when a request does not name a model.
const DefaultModel = "openai/gpt-oss-20b"

// CompletionRequest is a single system + user prompt submitted for completion.
type CompletionRequest struct {
	System      string
	User        string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client is the completion service used by the conversation engine.  Calls
// are synchronous and single-attempt; errors are returned to the caller
// unchanged.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Config holds the endpoint and credentials for an OpenAI-compatible service.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIClient calls an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	recorder metrics.Recorder
}

// NewOpenAIClient constructs a client for cfg.  An empty base URL or model
// falls back to the Groq defaults.
func NewOpenAIClient(cfg Config, recorder metrics.Recorder) *OpenAIClient {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	oaCfg.BaseURL = cfg.BaseURL
	if oaCfg.BaseURL == "" {
		oaCfg.BaseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(oaCfg),
		model:    model,
		recorder: recorder,
	}
}

// Model returns the default model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the system and user prompt and returns the first choice's
// content.  An empty choice list yields an empty string.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: wireTemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	c.recorder.ObserveCompletion(model, err == nil, time.Since(start))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature maps 0 to the smallest positive float32.  The request
// struct drops zero values, which the server would read as its default.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
