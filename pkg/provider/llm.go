package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"quicktranslator/pkg/logger"
)

// DefaultLLMPrompt is used when LLMConfig.Prompt is empty.
const DefaultLLMPrompt = "You are a professional translator. Translate the user's text from {source} to {target}. Reply with the translation only."

// LLMConfig holds the configuration for an OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Prompt  string // {source} and {target} are replaced with language codes
	Timeout time.Duration
}

// LLM translates using an OpenAI-compatible chat completion API.
type LLM struct {
	config LLMConfig
	client *openai.Client
	logger *logger.Logger
}

// NewLLM creates an LLM provider.
func NewLLM(config LLMConfig, log *logger.Logger) *LLM {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if config.Prompt == "" {
		config.Prompt = DefaultLLMPrompt
	}

	client := openai.NewClient(
		option.WithBaseURL(config.BaseURL),
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(timeout),
		// retries belong to the controller's policy
		option.WithMaxRetries(0),
	)

	return &LLM{
		config: config,
		client: &client,
		logger: log.Named("llm"),
	}
}

func (s *LLM) Name() string { return "llm" }

// systemPrompt fills the language placeholders of the configured prompt.
func (s *LLM) systemPrompt(source, target string) string {
	return strings.NewReplacer("{source}", source, "{target}", target).Replace(s.config.Prompt)
}

func (s *LLM) Translate(ctx context.Context, text, source, target string) (string, error) {
	if s.config.APIKey == "" {
		return "", newError(s.Name(), fmt.Errorf("API key not configured"))
	}

	s.logger.Tracef("Sending request to %s for text: %s", s.config.Model, truncateForLog(text, 80))

	chatCompletion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.systemPrompt(source, target)),
			openai.UserMessage(text),
		},
		Model: s.config.Model,
	})
	if err != nil {
		return "", newError(s.Name(), fmt.Errorf("failed to create chat completion: %w", err))
	}

	if len(chatCompletion.Choices) == 0 {
		return "", newError(s.Name(), ErrEmptyResult)
	}

	result := strings.TrimSpace(chatCompletion.Choices[0].Message.Content)
	if result == "" {
		return "", newError(s.Name(), ErrEmptyResult)
	}
	s.logger.Tracef("Received translation result: %s", truncateForLog(result, 200))
	return result, nil
}

func truncateForLog(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "...(truncated)"
}
