// internal/api/perplexity.go

package api

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// DefaultPerplexityURL is the OpenAI-compatible Perplexity endpoint.
const DefaultPerplexityURL = "https://api.perplexity.ai"

// Perplexity models.
const (
	ModelSonarPro       = "sonar-pro"
	ModelSonarReasoning = "sonar-reasoning"
	ModelSonar          = "sonar"
)

// PerplexitySystemPrompt is sent with every Perplexity request.
const PerplexitySystemPrompt = "You are a helpful AI assistant. Answer in Korean unless requested otherwise."

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// MaxTokensFor returns the output budget of a Perplexity model.
func MaxTokensFor(model string) int {
	switch model {
	case ModelSonarReasoning:
		return 8192
	case ModelSonar:
		return 2048
	default:
		return 4096
	}
}

// PerplexityClient calls Perplexity through the OpenAI SDK.
type PerplexityClient struct {
	apiKey string
	client openai.Client
}

// NewPerplexityClient creates a client for baseURL, or the public endpoint
// when baseURL is empty. Retries are left to WithRetry.
func NewPerplexityClient(apiKey, baseURL string) *PerplexityClient {
	if baseURL == "" {
		baseURL = DefaultPerplexityURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &PerplexityClient{
		apiKey: apiKey,
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(2*time.Minute),
		),
	}
}

func (p *PerplexityClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		if msg.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = MaxTokensFor(req.Model)
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(req.Model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("perplexity %s: %w", req.Model, err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	text := strings.TrimSpace(thinkBlock.ReplaceAllString(completion.Choices[0].Message.Content, ""))
	if text == "" {
		return nil, ErrEmptyResponse
	}

	// citations is a Perplexity extension the SDK does not model.
	var citations []string
	gjson.Get(completion.RawJSON(), "citations").ForEach(func(_, value gjson.Result) bool {
		citations = append(citations, value.String())
		return true
	})

	model := completion.Model
	if model == "" {
		model = req.Model
	}
	return &Response{Text: text, Model: model, Citations: citations}, nil
}
