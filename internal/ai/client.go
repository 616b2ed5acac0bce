// Package ai adapts chat-completion backends to the TextGenerator interface.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"miniquest-server/internal/config"
	"miniquest-server/shared/interfaces"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed wraps every backend failure, empty answers included.
var ErrAIGenerationFailed = errors.New("ai text generation failed")

// GenerationParams are sampling settings sent with every request. Nil means backend default.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

// UsageInfo holds token counts of one request.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	Estimated        bool
}

// NewTextGenerator builds the backend selected by cfg.AIClientType.
func NewTextGenerator(cfg *config.Config, logger *zap.Logger) (interfaces.TextGenerator, error) {
	params := GenerationParams{}
	if cfg.AITemperature > 0 {
		params.Temperature = &cfg.AITemperature
	}
	if cfg.AIMaxTokens > 0 {
		params.MaxTokens = &cfg.AIMaxTokens
	}
	// The service sets its own deadline per call; this only guards against hung connections.
	httpClient := &http.Client{Timeout: cfg.AITimeout + 5*time.Second}

	switch strings.ToLower(cfg.AIClientType) {
	case config.AIClientOpenAI:
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		if cfg.AIBaseURL != "" {
			openaiConfig.BaseURL = cfg.AIBaseURL
		}
		openaiConfig.HTTPClient = httpClient
		logger.Info("Using OpenAI-compatible text generator",
			zap.String("baseURL", openaiConfig.BaseURL), zap.String("model", cfg.AIModel))
		return NewOpenAIClient(openaigo.NewClientWithConfig(openaiConfig), cfg.AIModel, params, logger), nil

	case config.AIClientOllama:
		baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/"), "/v1")
		parsedURL, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid Ollama base URL %q: %w", baseURL, err)
		}
		logger.Info("Using Ollama text generator",
			zap.String("baseURL", baseURL), zap.String("model", cfg.AIModel))
		return NewOllamaClient(api.NewClient(parsedURL, httpClient), cfg.AIModel, params, logger), nil

	default:
		return nil, fmt.Errorf("unsupported AI client type: %s", cfg.AIClientType)
	}
}

// --- OpenAI ---

// OpenAIClient talks to any OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client *openaigo.Client
	model  string
	params GenerationParams
	logger *zap.Logger
}

var _ interfaces.TextGenerator = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAIClient.
func NewOpenAIClient(client *openaigo.Client, model string, params GenerationParams, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: client,
		model:  model,
		params: params,
		logger: logger.Named("OpenAIClient"),
	}
}

// GenerateText sends one system+user exchange and returns the first choice.
func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, _, err := c.generate(ctx, systemPrompt, userPrompt)
	return text, err
}

func (c *OpenAIClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, UsageInfo, error) {
	usage := UsageInfo{}
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": statusError}).Inc()
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userPrompt})
	}
	req := openaigo.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.params.Temperature != nil {
		req.Temperature = float32(*c.params.Temperature)
	}
	if c.params.MaxTokens != nil {
		req.MaxTokens = *c.params.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		status := statusError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = statusTimeout
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": status}).Inc()
		c.logger.Warn("Chat completion failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": statusEmptyResponse}).Inc()
		c.logger.Warn("Chat completion returned no content", zap.Duration("duration", duration))
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": statusSuccess}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
	} else if n, ok := estimateTokens(c.model, systemPrompt, userPrompt); ok {
		usage.PromptTokens = n
		usage.Estimated = true
	}
	observeUsage(c.model, usage)

	c.logger.Debug("Chat completion received",
		zap.Duration("duration", duration),
		zap.Int("chars", len(text)),
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens),
	)
	return text, usage, nil
}

// --- Ollama ---

// OllamaClient talks to the native Ollama chat API.
type OllamaClient struct {
	client *api.Client
	model  string
	params GenerationParams
	logger *zap.Logger
}

var _ interfaces.TextGenerator = (*OllamaClient)(nil)

// NewOllamaClient creates an OllamaClient.
func NewOllamaClient(client *api.Client, model string, params GenerationParams, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		client: client,
		model:  model,
		params: params,
		logger: logger.Named("OllamaClient"),
	}
}

// GenerateText sends one non-streaming chat request.
func (c *OllamaClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, _, err := c.generate(ctx, systemPrompt, userPrompt)
	return text, err
}

func (c *OllamaClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, UsageInfo, error) {
	usage := UsageInfo{}
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": statusError}).Inc()
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userPrompt != "" {
		messages = append(messages, api.Message{Role: "user", Content: userPrompt})
	}
	options := map[string]interface{}{}
	if c.params.Temperature != nil {
		options["temperature"] = *c.params.Temperature
	}
	if c.params.MaxTokens != nil {
		options["num_predict"] = *c.params.MaxTokens
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		status := statusError
		if errors.Is(err, context.DeadlineExceeded) {
			status = statusTimeout
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": status}).Inc()
		c.logger.Warn("Ollama chat failed", zap.Duration("duration", duration), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": statusEmptyResponse}).Inc()
		c.logger.Warn("Ollama chat returned no content", zap.Duration("duration", duration))
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": statusSuccess}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	observeUsage(c.model, usage)

	c.logger.Debug("Ollama chat received",
		zap.Duration("duration", duration),
		zap.Int("chars", len(text)),
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens),
	)
	return text, usage, nil
}

func observeUsage(model string, usage UsageInfo) {
	source := "backend"
	if usage.Estimated {
		source = "estimated"
	}
	if usage.PromptTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": model, "source": source}).Observe(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		aiCompletionTokens.With(prometheus.Labels{"model": model}).Observe(float64(usage.CompletionTokens))
	}
}
