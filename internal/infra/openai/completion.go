package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"voice-assistant/internal/application"
	"voice-assistant/internal/domain"
)

const (
	DefaultModel = "gpt-3.5-turbo"

	maxReplyTokens = 150
	temperature    = 0.7

	// FallbackReply is used when the service answers successfully but the
	// first choice carries no text.
	FallbackReply = "I'm sorry, I couldn't process that."
)

// CompletionClient sends one chat completion per call and never retries.
type CompletionClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewCompletionClient(model string, timeout time.Duration) *CompletionClient {
	return NewCompletionClientWithURL(model, DefaultBaseURL, timeout)
}

// NewCompletionClientWithURL builds a client for any OpenAI-compatible
// endpoint. A zero timeout leaves the transport defaults in place.
func NewCompletionClientWithURL(model, baseURL string, timeout time.Duration) *CompletionClient {
	if model == "" {
		model = DefaultModel
	}
	return &CompletionClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
	}
}

func (c *CompletionClient) Complete(ctx context.Context, req application.CompletionRequest, credential string) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: req.SystemInstruction,
	})
	for _, turn := range req.History {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: req.UserText,
	})

	client := newClient(credential, c.baseURL, c.httpClient)
	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxReplyTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", domain.ErrRemoteUnavailable)
	}

	reply := resp.Choices[0].Message.Content
	if reply == "" {
		return FallbackReply, nil
	}
	return reply, nil
}

// classify separates non-2xx answers from everything that kept a usable
// answer from arriving at all.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%w: status %d: %s", domain.ErrRemoteRejected, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%w: status %d: %v", domain.ErrRemoteRejected, reqErr.HTTPStatusCode, reqErr.Err)
	}

	return fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
}
