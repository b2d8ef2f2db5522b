package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/question"
)

// StartRequest carries everything needed to begin an attempt.
type StartRequest struct {
	User      *identity.User
	Subject   string
	TestID    string
	Questions []question.Question
}

// Manager owns the active session per user. Starting a new session or
// resetting always stops the previous session's countdown first, so at
// most one timer runs per user at any time.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	clock    Clock
	recorder Recorder
	opts     Options
	logger   zerolog.Logger
}

// NewManager constructs a session manager.
func NewManager(clock Clock, recorder Recorder, opts Options, logger zerolog.Logger) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		clock:    clock,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With().Str("component", "session_manager").Logger(),
	}
}

// Start begins a new attempt for the request's user, replacing and
// stopping any session they already have running.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if len(req.Questions) == 0 {
		return nil, ErrInvalidInput
	}

	owner := ownerKey(req.User)
	sess := newSession(req.User, m.clock, m.recorder, m.opts, m.logger)

	m.mu.Lock()
	prev := m.sessions[owner]
	m.sessions[owner] = sess
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
		m.logger.Info().Str("session_id", prev.ID()).Msg("replaced previous session")
	}

	if err := sess.start(req.Questions, req.Subject, req.TestID); err != nil {
		m.mu.Lock()
		if m.sessions[owner] == sess {
			delete(m.sessions, owner)
		}
		m.mu.Unlock()
		return nil, err
	}
	return sess, nil
}

// Active returns the user's current session, or ErrNoActiveSession.
func (m *Manager) Active(user *identity.User) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[ownerKey(user)]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// Reset discards the user's session entirely, stopping its countdown.
// Resetting when no session exists is a no-op.
func (m *Manager) Reset(user *identity.User) {
	owner := ownerKey(user)

	m.mu.Lock()
	sess := m.sessions[owner]
	delete(m.sessions, owner)
	m.mu.Unlock()

	if sess != nil {
		sess.stop()
		m.logger.Info().Str("session_id", sess.ID()).Msg("session reset")
	}
}

// Shutdown stops every running countdown. Called on server shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.stop()
	}
}

// Anonymous users without a stable id share one slot; authenticated
// users are keyed by their identity.
func ownerKey(user *identity.User) string {
	if user == nil || user.ID == "" {
		return "anonymous"
	}
	return user.ID
}
