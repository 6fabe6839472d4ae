package quotes

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func TestStaticSourceQuote(t *testing.T) {
	src := NewStaticSource()
	for i := 0; i < 20; i++ {
		if src.Quote() == "" {
			t.Fatal("expected a non-empty quote")
		}
	}
}

func TestStaticSourceCustomQuotes(t *testing.T) {
	src := NewStaticSourceWithQuotes([]string{"only one"})
	if got := src.Quote(); got != "only one" {
		t.Errorf("expected the single custom quote, got %q", got)
	}
}

func TestStaticSourceEmptyListFallsBack(t *testing.T) {
	src := NewStaticSourceWithQuotes(nil)
	if src.Quote() == "" {
		t.Error("expected the built-in rotation to serve a quote")
	}
}

type fakeChat struct {
	content string
	err     error
}

func (f *fakeChat) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestGenAISourceReturnsGeneratedQuote(t *testing.T) {
	src := &GenAISource{
		chat:     &fakeChat{content: "  Go do the thing.  "},
		fallback: NewStaticSourceWithQuotes([]string{"fallback"}),
	}
	if got := src.Quote(); got != "Go do the thing." {
		t.Errorf("expected trimmed generated quote, got %q", got)
	}
}

func TestGenAISourceFallsBackOnError(t *testing.T) {
	src := &GenAISource{
		chat:     &fakeChat{err: errors.New("rate limited")},
		fallback: NewStaticSourceWithQuotes([]string{"fallback"}),
	}
	if got := src.Quote(); got != "fallback" {
		t.Errorf("expected fallback quote, got %q", got)
	}
}

func TestGenAISourceFallsBackOnEmptyContent(t *testing.T) {
	src := &GenAISource{
		chat:     &fakeChat{content: "   "},
		fallback: NewStaticSourceWithQuotes([]string{"fallback"}),
	}
	if got := src.Quote(); got != "fallback" {
		t.Errorf("expected fallback quote, got %q", got)
	}
}
