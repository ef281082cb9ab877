// Package completion assembles the chat prompt around a transcript and opens
// a streamed response from an OpenAI-compatible chat completions endpoint.
package completion

import (
	"context"
	"log/slog"
	"strings"
)

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultSystemPrompt frames the transcript for the model.
const DefaultSystemPrompt = "You are a helpful desktop assistant. The user speaks to you through " +
	"speech-to-text, so some words may be transcribed incorrectly; if part of a message seems out " +
	"of place, ignore it. If a message makes no sense in context, say you did not understand and " +
	"ask the user to repeat it. If you receive only markers such as [SILENCE] or [MUSIC], reply " +
	"with: I didn't catch that."

// ContextSource supplies auxiliary text for the prompt, such as text read
// from the screen. An empty string means nothing to add.
type ContextSource interface {
	Context(ctx context.Context) (string, error)
}

// Prompt builds the message list for a transcript. The conversation so far
// is kept between calls.
type Prompt struct {
	System     string
	UserPrompt string
	Source     ContextSource
	Log        *slog.Logger

	history []Message
}

// Build returns the full message list with transcript as the next user
// turn. The turn is not remembered until Reply records it. Context source
// failures are logged and skipped.
func (p *Prompt) Build(ctx context.Context, transcript string) []Message {
	system := p.System
	if system == "" {
		system = DefaultSystemPrompt
	}
	msgs := []Message{{Role: RoleSystem, Content: system}}
	if up := strings.TrimSpace(p.UserPrompt); up != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: up})
	}

	if p.Source != nil {
		text, err := p.Source.Context(ctx)
		switch {
		case err != nil:
			p.logger().Warn("context source failed", "error", err)
		case strings.TrimSpace(text) != "":
			msgs = append(msgs, Message{Role: RoleSystem, Content: "Screen context:\n" + strings.TrimSpace(text)})
		}
	}

	msgs = append(msgs, p.history...)
	return append(msgs, Message{Role: RoleUser, Content: transcript})
}

// Reply records a completed exchange so the next Build includes it. An
// empty answer records nothing, so the history always alternates.
func (p *Prompt) Reply(transcript, answer string) {
	if answer == "" {
		return
	}
	p.history = append(p.history,
		Message{Role: RoleUser, Content: transcript},
		Message{Role: RoleAssistant, Content: answer},
	)
}

// Reset forgets the conversation.
func (p *Prompt) Reset() {
	p.history = nil
}

func (p *Prompt) logger() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}
