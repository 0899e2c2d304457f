// Package session provides a mutable, observable conversation wrapping a
// proxy client: it appends user/assistant turns and exposes loading/error
// state for a UI layer to render.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/secureproxy/secureproxy-go/client"
	"github.com/secureproxy/secureproxy-go/pkg/llm"
)

// ErrBusy is returned when a send is attempted while a previous one is still
// in flight. The session state is left untouched.
var ErrBusy = errors.New("session is busy")

// Completer is the slice of the proxy client the session needs.
// *client.Client satisfies it.
type Completer interface {
	ChatCompletion(ctx context.Context, model string, messages []llm.Message, opts ...client.Option) (*llm.ChatResponse, error)
	Vision(ctx context.Context, prompt, imageURL, model string) (string, error)
}

// Snapshot is an immutable view of the session state, delivered to
// subscribers after every transition.
type Snapshot struct {
	Messages  []llm.Message
	Sending   bool
	Err       error
	LastReply string
}

// Session owns one conversation. All mutation goes through SendMessage and
// AnalyzeImage; the sending guard serializes them, so a call while another is
// in flight fails with ErrBusy instead of interleaving history.
type Session struct {
	client Completer

	mu          sync.Mutex
	sending     bool
	messages    []llm.Message
	lastErr     error
	lastReply   string
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New creates a session over c.
func New(c Completer, opts ...SessionOption) *Session {
	s := &Session{
		client:      c,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionOption configures a new Session.
type SessionOption func(*Session)

// WithSystemPrompt seeds the history with a system message.
func WithSystemPrompt(prompt string) SessionOption {
	return func(s *Session) {
		s.messages = append(s.messages, llm.SystemMessage(prompt))
	}
}

// Subscribe registers fn to receive a snapshot after every state transition.
// Callbacks run synchronously and must not call back into the session.
// The returned function cancels the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// History returns a copy of the conversation so far.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Sending reports whether a call is in flight.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Err returns the error recorded by the most recent failed call, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SendMessage appends a user turn, sends the full history to the proxy, and
// appends the assistant reply. On failure the optimistic user turn is rolled
// back so the history never carries a dangling unanswered message.
func (s *Session) SendMessage(ctx context.Context, text, model string) (string, error) {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.sending = true
	s.lastErr = nil
	s.messages = append(s.messages, llm.UserMessage(text))
	history := make([]llm.Message, len(s.messages))
	copy(history, s.messages)
	s.notifyLocked()
	s.mu.Unlock()

	resp, err := s.client.ChatCompletion(ctx, model, history)
	var reply llm.Message
	if err == nil {
		if len(resp.Choices) == 0 {
			err = client.ErrNoChoices
		} else {
			reply = resp.Choices[0].Message
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if err != nil {
		s.messages = s.messages[:len(s.messages)-1]
		s.lastErr = err
		s.notifyLocked()
		return "", err
	}
	s.messages = append(s.messages, reply)
	s.lastReply = reply.Content.Text()
	s.notifyLocked()
	return s.lastReply, nil
}

// AnalyzeImage runs a one-shot vision call. It shares the sending guard and
// error slot with SendMessage but does not touch the conversation history.
func (s *Session) AnalyzeImage(ctx context.Context, prompt, imageURL, model string) (string, error) {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.sending = true
	s.lastErr = nil
	s.notifyLocked()
	s.mu.Unlock()

	text, err := s.client.Vision(ctx, prompt, imageURL, model)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if err != nil {
		s.lastErr = err
		s.notifyLocked()
		return "", err
	}
	s.lastReply = text
	s.notifyLocked()
	return text, nil
}

// notifyLocked delivers a snapshot to all subscribers. Caller holds s.mu.
func (s *Session) notifyLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	msgs := make([]llm.Message, len(s.messages))
	copy(msgs, s.messages)
	snap := Snapshot{
		Messages:  msgs,
		Sending:   s.sending,
		Err:       s.lastErr,
		LastReply: s.lastReply,
	}
	for _, fn := range s.subscribers {
		fn(snap)
	}
}
