package compose

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/campuskit/advisor/internal/conversation"
)

const systemPreamble = "You are a concise university student-support assistant. " +
	"Answer using ONLY the provided sources. Quote figures, dates and URLs " +
	"exactly as they appear in the sources. If the sources do not cover the " +
	"question, say so instead of guessing."

// AnthropicComposer drafts replies with a Claude model, constrained to the
// retrieved sources. Any provider failure falls back to the deterministic
// template composer so a turn never fails on composition.
type AnthropicComposer struct {
	client   *anthropic.Client
	model    string
	timeout  time.Duration
	fallback *TemplateComposer
}

func NewAnthropicComposer(client *anthropic.Client, model string, timeout time.Duration) *AnthropicComposer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AnthropicComposer{
		client:   client,
		model:    model,
		timeout:  timeout,
		fallback: NewTemplateComposer(),
	}
}

func (c *AnthropicComposer) Compose(ctx context.Context, in Input) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]anthropic.MessageParam, 0, len(in.History)+1)
	for _, t := range in.History {
		switch t.Role {
		case conversation.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		case conversation.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(in.Query)))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 512,
		Messages:  messages,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(in)},
		},
	})
	if err != nil {
		log.Printf("compose: model call failed, using template fallback: %v", err)
		return c.fallback.Compose(ctx, in)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		log.Printf("compose: model returned no text, using template fallback")
		return c.fallback.Compose(ctx, in)
	}
	return strings.TrimSpace(text.String()), nil
}

func systemPrompt(in Input) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if note := personalNote(in.Profile); note != "" {
		b.WriteString("\n\nStudent context: ")
		b.WriteString(note)
	}

	b.WriteString("\n\nSources:")
	for i, r := range in.Results {
		fmt.Fprintf(&b, "\n[%d] (%s) %s", i+1, r.SourceRef, strings.TrimSpace(r.Passage))
	}
	return b.String()
}
