package scriptgen

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient генерирует сценарии через OpenAI API.
type OpenAIClient struct {
	client    *openai.Client
	model     openai.ChatModel
	modelName string
}

// NewOpenAIClient создаёт клиент OpenAI.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client:    &client,
		model:     openai.ChatModelGPT4oMini,
		modelName: "gpt-4o-mini",
	}
}

// Generate генерирует сценарий по заголовку.
func (c *OpenAIClient) Generate(ctx context.Context, input Input) (*Script, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(input)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai", ErrNoResponse)
	}

	return parseScript(resp.Choices[0].Message.Content, c.modelName)
}

// FromEnv выбирает провайдера по доступным ключам окружения:
// ANTHROPIC_API_KEY имеет приоритет, затем OPENAI_API_KEY.
func FromEnv(anthropicKey, openaiKey string) Client {
	if anthropicKey != "" {
		return NewAnthropicClient(anthropicKey)
	}
	if openaiKey != "" {
		return NewOpenAIClient(openaiKey)
	}
	return nil
}
