package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"donna/app/config"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const transportTimeout = 30 * time.Second

// Client is the single surface the pipeline stages use to talk to a language
// model. Stages never see the transport; failures degrade at the call site.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ Client = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg config.ModelConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: transportTimeout,
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	aiResponse, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: maxTokens,
			Temperature:         temperature,
		},
	)
	if err != nil {
		return "", oops.Wrapf(err, "failed to create chat completion")
	}

	if len(aiResponse.Choices) == 0 {
		return "", oops.Errorf("no chat completion found")
	}

	result := aiResponse.Choices[0].Message.Content
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	return result, nil
}

// RenderTemplate substitutes {key} placeholders in a prompt template.
func RenderTemplate(template string, values map[string]string) string {
	for key, value := range values {
		template = strings.ReplaceAll(template, "{"+key+"}", value)
	}

	return template
}
