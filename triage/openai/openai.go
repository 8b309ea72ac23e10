// Package openai provides a triage model backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/qamesh/triage"
	"github.com/openai/openai-go"
)

// Options configures the OpenAI triage adapter. Fields mirror a minimal
// subset of Chat Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the triage.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a triage model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a triage model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0,
		MaxCompletionTokens: 512,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Assess implements triage.Model with a single non-streaming completion.
func (m *Model) Assess(ctx context.Context, ev triage.Evidence) (triage.Assessment, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(triage.SystemPrompt),
			openai.UserMessage(triage.BuildPrompt(ev)),
		},
	})
	if err != nil {
		return triage.Assessment{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return triage.Assessment{}, fmt.Errorf("openai returned no choices")
	}
	return triage.ParseAssessment(resp.Choices[0].Message.Content)
}
