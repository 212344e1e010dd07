package ai

import (
	"context"
	"errors"
	"strings"

	"asistente-tienda/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
)

const ProviderOpenAI = "openai"

// Compile-time assurance this adapter satisfies the port
var _ adapter.LLMClient = (*OpenAIAdapter)(nil)

// OpenAIAdapter talks to the Chat Completions API, or to any
// OpenAI-compatible gateway when baseURL is set.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	enc    *tiktoken.Tiktoken
}

// NewOpenAIAdapter builds the client. Retries are disabled: the caller owns
// the deadline and a retry would only eat into it. With countTokens the
// tokenizer for model is loaded up front and fills in prompt usage when the
// gateway does not report it.
func NewOpenAIAdapter(apiKey, baseURL, model string, countTokens bool) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	o := &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
	}
	if countTokens {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			return nil, err
		}
		o.enc = enc
	}
	return o, nil
}

// CountTokens returns the prompt size in tokens, or -1 without a tokenizer.
func (o *OpenAIAdapter) CountTokens(text string) int {
	if o.enc == nil {
		return -1
	}
	return len(o.enc.Encode(text, nil, nil))
}

func (o *OpenAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	model := modelOrDefault(req.Model, o.model)
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		status := 0
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			status = apierr.StatusCode
		}
		return adapter.Completion{}, classify(ProviderOpenAI, status, err)
	}

	out := adapter.Completion{Model: model, Provider: ProviderOpenAI}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			out.Text = c.Message.Content
			break
		}
	}
	out.Usage = adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if out.Usage.PromptTokens == 0 {
		if n := o.CountTokens(req.Prompt); n > 0 {
			out.Usage.PromptTokens = n
			out.Usage.TotalTokens = n + out.Usage.CompletionTokens
		}
	}
	return out, nil
}
