// Package provider abstracts the chat-completion backend behind a small
// interface and implements it against Azure OpenAI.
package provider

import "context"

// Message is one chat message in a completion request.
type Message struct {
	Role    string
	Content string
}

// System creates a system-role message.
func System(content string) Message {
	return Message{Role: "system", Content: content}
}

// User creates a user-role message.
func User(content string) Message {
	return Message{Role: "user", Content: content}
}

// Options tune a single completion call.
type Options struct {
	MaxCompletionTokens int64
	Temperature         *float64
}

// Completer performs one chat-completion call and returns the raw text.
// Implementations own their retry policy; callers treat a returned error
// as final.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}
