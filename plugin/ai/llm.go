package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// LLMService is the completion service the assistant extracts events with.
// Calls are not retried; retry policy belongs to the caller.
type LLMService interface {
	// ChatJSON performs a synchronous chat whose reply is constrained to a JSON object.
	ChatJSON(ctx context.Context, messages []Message) (string, error)
}

// NewLLMService creates a new LLMService.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	switch cfg.Provider {
	case "openai", "deepseek":
		// DeepSeek is compatible with OpenAI API
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		clientConfig.HTTPClient = newHTTPClient(cfg.Timeout)
		return &openAIService{
			client:      openai.NewClientWithConfig(clientConfig),
			model:       cfg.Model,
			maxTokens:   cfg.MaxTokens,
			temperature: cfg.Temperature,
		}, nil

	case "ollama":
		model, err := ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithFormat("json"),
			ollama.WithHTTPClient(newHTTPClient(cfg.Timeout)),
		)
		if err != nil {
			return nil, err
		}
		return &langchainService{
			model:       model,
			maxTokens:   cfg.MaxTokens,
			temperature: cfg.Temperature,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// newHTTPClient bounds each completion request; zero means no client timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type openAIService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func (s *openAIService) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		llmMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    llmMessages,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	return resp.Choices[0].Message.Content, nil
}

// langchainService serves providers without an OpenAI-compatible JSON mode.
type langchainService struct {
	model       llms.Model
	maxTokens   int
	temperature float32
}

func (s *langchainService) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	resp, err := s.model.GenerateContent(ctx, convertMessages(messages),
		llms.WithMaxTokens(s.maxTokens),
		llms.WithTemperature(float64(s.temperature)),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	return resp.Choices[0].Content, nil
}

func convertMessages(messages []Message) []llms.MessageContent {
	llmMessages := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}

		llmMessages[i] = llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		}
	}
	return llmMessages
}

// Helper for creating system prompts
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// Helper for creating user messages
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Helper for creating assistant messages
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// RoleMessage maps a stored conversation role (USER, ASSISTANT) to a chat message.
func RoleMessage(role, content string) Message {
	if strings.EqualFold(role, "assistant") {
		return AssistantMessage(content)
	}
	return UserMessage(content)
}

// FormatMessages formats messages for prompt templates.
func FormatMessages(systemPrompt string, userContent string, history []Message) []Message {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, SystemPrompt(systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, UserMessage(userContent))
	return messages
}
