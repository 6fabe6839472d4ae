package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	systemPrompt = "You write one-line motivational messages for someone trying to break a phone addiction. Reply with a single sentence under 15 words, no quotes, no emoji."
	userPrompt   = "Write a short line nudging me to put the phone down and get back to what matters."

	generateTimeout = 5 * time.Second
)

// chatService is the minimal completion surface used by GenAISource; the real
// OpenAI chat completions client satisfies it.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// GenAISource generates quotes with the OpenAI API, falling back to a static
// rotation whenever generation fails or stalls. Overlays must never block on
// the network.
type GenAISource struct {
	chat     chatService
	fallback Source
}

// NewGenAISource creates a GenAISource using the OPENAI_API_KEY environment
// variable.
func NewGenAISource(fallback Source) (*GenAISource, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &GenAISource{chat: &client.Chat.Completions, fallback: fallback}, nil
}

// Quote returns a generated quote, or a static one on any failure.
func (s *GenAISource) Quote() string {
	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	resp, err := s.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Debug("quote generation failed, using static fallback", "error", err)
		return s.fallback.Quote()
	}
	if len(resp.Choices) == 0 {
		slog.Debug("quote generation returned no choices, using static fallback")
		return s.fallback.Quote()
	}
	quote := strings.TrimSpace(resp.Choices[0].Message.Content)
	if quote == "" {
		return s.fallback.Quote()
	}
	return quote
}
