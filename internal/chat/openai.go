package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"dibs-assistant/internal/common/config"
	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

// ChatCompletions is the part of the OpenAI client the generator uses.
type ChatCompletions interface {
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// OpenAIGenerator streams completions from an OpenAI compatible endpoint.
type OpenAIGenerator struct {
	completions ChatCompletions
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewOpenAIGenerator(cfg config.LLMConfig, httpClient *http.Client) (*OpenAIGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(opts...)
	return NewOpenAIGeneratorWithAPI(&client.Chat.Completions, cfg), nil
}

// NewOpenAIGeneratorWithAPI builds a generator over an existing completions
// client.
func NewOpenAIGeneratorWithAPI(api ChatCompletions, cfg config.LLMConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		completions: api,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     config.GetDuration(cfg.Timeout),
	}
}

func (g *OpenAIGenerator) Stream(ctx context.Context, req GenerateRequest, onToken func(string) error) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	stream := g.completions.NewStreaming(ctx, g.params(req))
	if stream == nil {
		return "", apperrors.NewGenerationFailedError(errors.New("stream not available"))
	}
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			text.WriteString(delta)
			if err := onToken(delta); err != nil {
				return text.String(), err
			}
		}
	}

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return text.String(), apperrors.NewGenerationTimeoutError(err)
		}
		return text.String(), apperrors.NewGenerationFailedError(err)
	}
	return text.String(), nil
}

func (g *OpenAIGenerator) params(req GenerateRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.model),
		Messages: messages,
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}
	return params
}
