package answer

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const DefaultCompletionBaseURL = "https://api.groq.com/openai/v1"

var ErrCompletionKeyMissing = errors.New("completion api key is not configured")

// OpenAIChatClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIChatClient struct {
	client *openai.Client
}

var _ ChatCompleter = (*OpenAIChatClient)(nil)

func NewOpenAIChatClient(apiKey, baseURL string, timeout time.Duration) (*OpenAIChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrCompletionKeyMissing
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultCompletionBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}

	clientConfig := openai.DefaultConfig(strings.TrimSpace(apiKey))
	clientConfig.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIChatClient{client: openai.NewClientWithConfig(clientConfig)}, nil
}

func (c *OpenAIChatClient) Complete(ctx context.Context, model string, messages []ChatMessage, params CompletionParams) (string, error) {
	reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  reqMessages,
		TopP:      params.TopP,
		MaxTokens: params.MaxTokens,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
		// The request field is omitempty; a zero would fall back to the API default.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", oops.In("completion").With("model", model).Wrapf(err, "chat completion request")
	}
	if len(resp.Choices) == 0 {
		return "", oops.In("completion").With("model", model).Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
