package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/config"
	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/metrics"
	"github.com/patientsim/patient-sim/internal/model/chat"
	"github.com/patientsim/patient-sim/internal/model/persona"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message must be a non-empty string")
)

// Completer produces a streamed completion. An empty system prompt and nil
// history mean a single-turn request holding only query.
type Completer interface {
	StreamReply(ctx context.Context, system string, history []chat.Message, query string) (*schema.StreamReader[*schema.Message], error)
	Provider() string
	Model() string
}

// TokenCounter estimates tokens for metrics. Optional.
type TokenCounter interface {
	Count(text string) int
}

// Options tune session start and request construction.
type Options struct {
	// PersonaFromRequest honours the persona requested at session start.
	// When false every session starts with persona.DefaultID.
	PersonaFromRequest bool
	// ContextMode is config.ContextSingle or config.ContextConversation.
	ContextMode string
	Tokens      TokenCounter
	Logger      *zerolog.Logger
}

// sessionState is the per-session context object. turn serializes turns so
// the system prompt is emitted before the first completion request; it is held
// while a stream is relayed. mu guards session and transcript and is only held
// briefly, so readers never wait on a stream.
type sessionState struct {
	id   string
	turn sync.Mutex

	mu         sync.RWMutex
	session    chat.Session
	transcript []chat.Message
}

// Service encapsulates conversation state management and the completion relay.
type Service struct {
	personas  persona.Store
	completer Completer
	opts      Options
	log       *zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// NewService bootstraps the in-memory chat service.
func NewService(personas persona.Store, completer Completer, opts Options) *Service {
	if opts.ContextMode == "" {
		opts.ContextMode = config.ContextSingle
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		personas:  personas,
		completer: completer,
		opts:      opts,
		log:       logger,
		sessions:  make(map[string]*sessionState),
	}
}

// CreateSession provisions an anonymous session. The persona is fixed here
// and never changes for the life of the session.
func (s *Service) CreateSession(ctx context.Context, requestedPersona string) (chat.Session, error) {
	personaID := persona.DefaultID
	if s.opts.PersonaFromRequest {
		p, _ := persona.Resolve(s.personas, requestedPersona)
		if p.ID != "" {
			personaID = p.ID
		}
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionState{
		id:         session.ID,
		session:    session,
		transcript: make([]chat.Message, 0, 16),
	}
	s.mu.Unlock()

	metrics.SessionStarted(personaID)
	ctx = logging.WithPersona(logging.WithSessID(ctx, session.ID), personaID)
	logging.With(ctx, s.log).Info().
		Str("requested", requestedPersona).
		Msg("chat session has started")

	return session, nil
}

// GetSession retrieves a snapshot of a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	copied := make([]chat.Message, len(state.transcript))
	copy(copied, state.transcript)
	return copied, nil
}

// EndSession drops all state for the session.
func (s *Service) EndSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		logging.With(logging.WithSessID(ctx, sessionID), s.log).Debug().Msg("chat session ended")
	}
}

func (s *Service) lookup(sessionID string) (*sessionState, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

func (s *Service) record(state *sessionState, role chat.Role, content string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.transcript = append(state.transcript, chat.Message{
		ID:        uuid.NewString(),
		SessionID: state.id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}
