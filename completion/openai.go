package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultMaxTokens   = 1300
)

// OpenAIConfig configures the OpenAI chat completions backend.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// OpenAI calls the chat completions endpoint. SDK retries are disabled.
type OpenAI struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI builds an OpenAI backend from cfg.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &Error{Provider: "openai", Err: fmt.Errorf("api key is required")}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Complete implements Service.
func (o *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", wrapError("openai", o.cfg.Model, err)
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.cfg.Model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(o.cfg.Temperature),
		MaxTokens:   openai.Int(o.cfg.MaxTokens),
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapError("openai", o.cfg.Model, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", wrapError("openai", o.cfg.Model, ErrEmptyReply)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
