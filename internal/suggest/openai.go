package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time interface check
var _ Suggester = (*OpenAI)(nil)

// systemPrompt frames every coaching request. Short on purpose: the reply
// lands in a notification body.
const systemPrompt = "You are a productivity coach. Given a task, reply with " +
	"one or two sentences of concrete, encouraging advice on how to get it " +
	"moving today. No preamble, no lists."

// ChatService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the suggestion service using OpenAI's API
type OpenAI struct {
	chat  ChatService
	model openai.ChatModel
}

// NewOpenAI creates a new OpenAI suggestion service
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		chat:  client.Chat.Completions,
		model: openai.ChatModel(model),
	}
}

// Suggest generates a coaching suggestion for the given task prompt.
// Best-effort: errors propagate to the caller, which skips the task.
func (o *OpenAI) Suggest(ctx context.Context, prompt string) (string, error) {
	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("suggestion generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("suggestion generation failed: no choices returned")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("suggestion generation failed: empty completion")
	}

	return content, nil
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
