package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patientsim/patient-sim/internal/config"
	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/metrics"
	"github.com/patientsim/patient-sim/internal/model/chat"
	"github.com/patientsim/patient-sim/internal/model/persona"
)

// Emitter delivers UI-facing messages for one session.
type Emitter interface {
	Emit(ctx context.Context, msg chat.Message) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, msg chat.Message) error

// Emit calls f(ctx, msg).
func (f EmitterFunc) Emit(ctx context.Context, msg chat.Message) error {
	return f(ctx, msg)
}

// HandleMessage runs one user turn:
//
//  1. on the session's first turn, emit the persona prompt as a system message;
//  2. request a streamed completion for content;
//  3. emit every non-empty fragment as an assistant message, in order.
//
// Upstream failures are returned wrapped and are not retried. PromptSent is
// never rolled back.
func (s *Service) HandleMessage(ctx context.Context, sessionID, content string, emit Emitter) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	state, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	state.turn.Lock()
	defer state.turn.Unlock()

	// Only turn holders write the session, so reads under turn need no mu.
	session := state.session
	ctx = logging.WithPersona(logging.WithSessID(ctx, sessionID), session.PersonaID)
	logger := logging.With(ctx, s.log)

	p, _ := persona.Resolve(s.personas, session.PersonaID)
	if !session.PromptSent {
		if err := emit.Emit(ctx, s.message(state, chat.RoleSystem, p.SystemPrompt)); err != nil {
			return fmt.Errorf("emit system prompt: %w", err)
		}
		state.mu.Lock()
		state.session.PromptSent = true
		state.mu.Unlock()
		s.record(state, chat.RoleSystem, p.SystemPrompt)
		metrics.SystemPromptSent(p.ID)
		logger.Debug().Msg("system prompt sent")
	}

	system, history := "", []chat.Message(nil)
	if s.opts.ContextMode == config.ContextConversation {
		system = p.SystemPrompt
		state.mu.RLock()
		history = append(history, state.transcript...)
		state.mu.RUnlock()
	}
	s.record(state, chat.RoleUser, content)
	s.countTokensIn(system, history, content)

	started := time.Now()
	reply, err := s.relay(ctx, state, system, history, content, emit)
	metrics.ObserveCompletion(s.completer.Provider(), s.completer.Model(), time.Since(started).Milliseconds(), err)
	if err != nil {
		logger.Error().Err(err).Msg("completion relay failed")
		return err
	}

	s.record(state, chat.RoleAssistant, reply)
	if s.opts.Tokens != nil {
		metrics.TokensOut(s.opts.Tokens.Count(reply))
	}
	logger.Debug().Int("reply_len", len(reply)).Msg("completion relayed")
	return nil
}

func (s *Service) relay(ctx context.Context, state *sessionState, system string, history []chat.Message, content string, emit Emitter) (string, error) {
	stream, err := s.completer.StreamReply(ctx, system, history, content)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return reply.String(), fmt.Errorf("completion stream failed: %w", recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		if err := emit.Emit(ctx, s.message(state, chat.RoleAssistant, chunk.Content)); err != nil {
			return reply.String(), fmt.Errorf("emit fragment: %w", err)
		}
		metrics.FragmentRelayed()
		reply.WriteString(chunk.Content)
	}
	return reply.String(), nil
}

func (s *Service) message(state *sessionState, role chat.Role, content string) chat.Message {
	return chat.Message{
		SessionID: state.id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Service) countTokensIn(system string, history []chat.Message, content string) {
	if s.opts.Tokens == nil {
		return
	}
	n := s.opts.Tokens.Count(system) + s.opts.Tokens.Count(content)
	for _, msg := range history {
		n += s.opts.Tokens.Count(msg.Content)
	}
	metrics.TokensIn(n)
}
