// Package llm adapts an ordered message history to an OpenAI-compatible chat
// completion provider, in either full-reply or streaming form.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"ai-copilot-go/internal/models"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no provider credential is set. It is
// reported before any network call is made.
var ErrNotConfigured = errors.New("OPENAI_API_KEY is not configured")

const temperature = 0.2

// Stream is a forward-only, single-pass sequence of reply fragments. Recv
// returns io.EOF when the provider signals completion; any other error means
// the upstream call failed mid-stream. Close stops the producer and must be
// called once the consumer is done.
type Stream interface {
	Recv() (string, error)
	Close()
}

type Service struct {
	apiKey string
	model  string
	logger *zap.Logger

	mu     sync.Mutex
	client llms.Model

	encOnce sync.Once
	encoder *tiktoken.Tiktoken
}

func New(apiKey, model string, logger *zap.Logger) *Service {
	return &Service{apiKey: apiKey, model: model, logger: logger}
}

// ensureClient builds the provider client on first use. Construction is
// deferred so a server started without a credential still serves everything
// except completions.
func (s *Service) ensureClient() (llms.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := openai.New(
		openai.WithToken(s.apiKey),
		openai.WithModel(s.model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider client: %w", err)
	}
	s.client = client
	return s.client, nil
}

// Complete requests a full reply for the given history. A nil error with an
// empty string is a successful empty reply, distinct from an upstream failure.
func (s *Service) Complete(ctx context.Context, history []models.ChatMessage) (string, error) {
	client, err := s.ensureClient()
	if err != nil {
		return "", err
	}
	s.logPromptSize(history)

	resp, err := client.GenerateContent(ctx, toContent(history), llms.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

// CompleteStream opens a streaming completion for the given history. Deltas
// are produced by a goroutine feeding the returned Stream; the producer stops
// when the provider finishes, errors, or the context is cancelled.
func (s *Service) CompleteStream(ctx context.Context, history []models.ChatMessage) (Stream, error) {
	client, err := s.ensureClient()
	if err != nil {
		return nil, err
	}
	s.logPromptSize(history)

	ctx, cancel := context.WithCancel(ctx)
	st := &chatStream{deltas: make(chan string), cancel: cancel}

	go func() {
		defer close(st.deltas)
		_, err := client.GenerateContent(ctx, toContent(history),
			llms.WithTemperature(temperature),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				select {
				case st.deltas <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil && ctx.Err() == nil {
			st.err = fmt.Errorf("streaming completion failed: %w", err)
		}
	}()

	return st, nil
}

type chatStream struct {
	deltas chan string
	err    error // written by the producer before deltas is closed
	cancel context.CancelFunc
}

func (s *chatStream) Recv() (string, error) {
	delta, ok := <-s.deltas
	if ok {
		return delta, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *chatStream) Close() {
	s.cancel()
	for range s.deltas {
	}
}

func toContent(history []models.ChatMessage) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		role := schema.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return content
}

// logPromptSize records an estimated token count for the assembled history.
// The encoding is fetched lazily and failures are non-fatal; the request
// proceeds either way.
func (s *Service) logPromptSize(history []models.ChatMessage) {
	s.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(s.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			s.logger.Debug("token encoding unavailable", zap.Error(err))
			return
		}
		s.encoder = enc
	})
	if s.encoder == nil {
		return
	}
	tokens := 0
	for _, m := range history {
		tokens += len(s.encoder.Encode(m.Content, nil, nil))
	}
	s.logger.Debug("assembled prompt",
		zap.Int("messages", len(history)),
		zap.Int("prompt_tokens", tokens))
}
