package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/logger"
)

// ErrNoStreamer is returned by NewSession without a Streamer.
var ErrNoStreamer = errors.New("agent session requires a streamer")

// Speaker voices text. It stands in for the text-to-speech stage.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string) error

func (f SpeakerFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Streamer llm.Streamer
	Speaker  Speaker
	Observer Observer

	// Options are passed to every Chat call.
	Options []llm.ChatOption

	Logger *slog.Logger
}

// Session runs conversation turns against a Streamer and keeps the local
// transcript. Turns are serialized.
type Session struct {
	mu       sync.Mutex
	streamer llm.Streamer
	speaker  Speaker
	observer Observer
	options  []llm.ChatOption
	history  *llm.ChatContext
	logger   *slog.Logger
}

// NewSession creates a Session from cfg.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Streamer == nil {
		return nil, ErrNoStreamer
	}

	s := &Session{
		streamer: cfg.Streamer,
		speaker:  cfg.Speaker,
		observer: cfg.Observer,
		options:  cfg.Options,
		history:  llm.NewChatContext(),
		logger:   cfg.Logger,
	}
	if s.speaker == nil {
		s.speaker = SpeakerFunc(func(context.Context, string) error { return nil })
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s, nil
}

// SetStreamer swaps the backend used by subsequent turns, for example after
// the env file changed credentials.
func (s *Session) SetStreamer(st llm.Streamer) {
	if st == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamer = st
}

// Say voices text as the assistant and records it in the transcript.
func (s *Session) Say(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.speaker.Speak(ctx, text); err != nil {
		return fmt.Errorf("speaking: %w", err)
	}
	s.history.Append(llm.RoleAssistant, text)
	return nil
}

// Greet says the persona's opening line. It reports false and logs a warning
// when the persona has no greeting.
func (s *Session) Greet(ctx context.Context, agentName string) (bool, error) {
	greeting, ok := Greeting(agentName)
	if !ok {
		s.logger.Warn("unknown agent name", "agent_name", agentName)
		return false, nil
	}

	if err := s.Say(ctx, greeting); err != nil {
		s.logger.Error("initial greeting failed", "agent_name", agentName, "error", err)
		return false, err
	}

	s.logger.Info("sent initial greeting", "agent_name", agentName)
	return true, nil
}

// Listen reports an utterance that was heard in full: speech start, the
// transcript, then speech end. It does not touch the transcript; pass the
// text to HandleUserTurn for that.
func (s *Session) Listen(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observer.SpeechStarted()
	s.observer.Transcribing(text)
	s.observer.SpeechEnded()
}

// HandleUserTurn records the user's text, streams the answer to the Speaker
// and records the assistant's answer. On failure the observer's Error is
// notified, the partial answer is kept if non-empty and the error returned.
func (s *Session) HandleUserTurn(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Append(llm.RoleUser, text)
	s.observer.Thinking()

	var (
		answer  strings.Builder
		started bool
		turnErr error
	)

	for fragment, err := range s.streamer.Chat(ctx, s.history, s.options...) {
		if err != nil {
			turnErr = err
			break
		}

		if !started {
			started = true
			s.observer.Speaking()
		}

		answer.WriteString(fragment)
		if fragment == "" {
			continue
		}

		if err := s.speaker.Speak(ctx, fragment); err != nil {
			turnErr = fmt.Errorf("speaking: %w", err)
			break
		}
	}

	if answer.Len() > 0 {
		s.history.Append(llm.RoleAssistant, answer.String())
	}

	if turnErr != nil {
		s.observer.Error(turnErr)
		return answer.String(), turnErr
	}

	return answer.String(), nil
}

// History returns a copy of the transcript.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history.Messages...)
}
