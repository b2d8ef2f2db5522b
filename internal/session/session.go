package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/question"
	"github.com/dotest/exam-platform/internal/scoring"
)

// State is the session lifecycle phase. There is no way back out of
// StateFinished; a retry is a brand-new session.
type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateFinished   State = "finished"
)

// FinishReason records what ended the attempt. A timeout scores
// identically to a manual submit.
type FinishReason string

const (
	ReasonUserSubmitted FinishReason = "user_submitted"
	ReasonTimeout       FinishReason = "timeout"
)

var (
	ErrInvalidInput    = errors.New("session requires at least one question")
	ErrNotActive       = errors.New("session is not active")
	ErrInvalidOption   = errors.New("option is not offered by the current question")
	ErrAlreadyAtFirst  = errors.New("already at the first question")
	ErrNoActiveSession = errors.New("no active session")
)

// EventType labels the advisory notifications a session emits.
type EventType string

const (
	EventStarted     EventType = "session_started"
	EventTimeWarning EventType = "time_warning"
	EventFinished    EventType = "session_finished"
)

// Event is a session notification for subscribers (the WebSocket feed).
// Events are advisory; dropping one never changes session state.
type Event struct {
	Type             EventType    `json:"type"`
	SessionID        string       `json:"sessionId"`
	RemainingSeconds int          `json:"remainingSeconds"`
	Reason           FinishReason `json:"reason,omitempty"`
	At               time.Time    `json:"at"`
}

// Outcome is everything a finished attempt produced, handed to the
// Recorder exactly once per session.
type Outcome struct {
	SessionID        string
	User             *identity.User
	Subject          string
	TestID           string
	Summary          scoring.Summary
	Questions        []question.Question
	Answers          []string
	Reason           FinishReason
	StartedAt        time.Time
	FinishedAt       time.Time
	TimeSpentMinutes int
}

// Recorder persists a finished attempt. The session invokes it once and
// swallows its error after logging; persistence never blocks the
// transition to Finished.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Options configures a session's timing.
type Options struct {
	Duration        time.Duration
	FirstWarningAt  time.Duration
	SecondWarningAt time.Duration
}

func (o *Options) defaults() {
	if o.Duration <= 0 {
		o.Duration = 30 * time.Minute
	}
	if o.FirstWarningAt <= 0 {
		o.FirstWarningAt = 5 * time.Minute
	}
	if o.SecondWarningAt <= 0 {
		o.SecondWarningAt = time.Minute
	}
}

// Session is one user's single attempt at one test: a fixed question
// sequence, one answer slot per question, a countdown, and a one-shot
// finish that scores the attempt and hands it to the recorder.
type Session struct {
	mu sync.Mutex

	id               string
	state            State
	questions        []question.Question
	answers          []string
	currentIndex     int
	remainingSeconds int
	startedAt        time.Time
	finishedAt       time.Time
	subject          string
	testID           string
	user             *identity.User
	summary          *scoring.Summary
	reason           FinishReason

	opts     Options
	clock    Clock
	recorder Recorder
	logger   zerolog.Logger

	events    chan Event
	stopTimer chan struct{}
	stopOnce  sync.Once
	timerDone chan struct{}
}

// newSession builds a session in StateNotStarted. start must be called
// before any other command.
func newSession(user *identity.User, clock Clock, recorder Recorder, opts Options, logger zerolog.Logger) *Session {
	opts.defaults()
	id := uuid.NewString()
	return &Session{
		id:        id,
		state:     StateNotStarted,
		user:      user,
		opts:      opts,
		clock:     clock,
		recorder:  recorder,
		logger:    logger.With().Str("component", "session").Str("session_id", id).Logger(),
		events:    make(chan Event, 16),
		stopTimer: make(chan struct{}),
		timerDone: make(chan struct{}),
	}
}

// ID returns the session's generated identifier.
func (s *Session) ID() string { return s.id }

// Events returns the advisory notification feed. Slow subscribers lose
// events rather than stalling the session.
func (s *Session) Events() <-chan Event { return s.events }

// start validates the question set, initializes state and launches the
// countdown. Only the manager calls it, exactly once per session.
func (s *Session) start(questions []question.Question, subject, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotStarted {
		return ErrNotActive
	}
	if len(questions) == 0 {
		return ErrInvalidInput
	}

	s.questions = questions
	s.answers = make([]string, len(questions))
	s.currentIndex = 0
	s.remainingSeconds = int(s.opts.Duration / time.Second)
	s.startedAt = s.clock.Now()
	s.subject = subject
	s.testID = testID
	s.state = StateActive

	go s.runTimer()

	s.emit(Event{Type: EventStarted, RemainingSeconds: s.remainingSeconds})
	s.logger.Info().
		Str("subject", subject).
		Str("test_id", testID).
		Int("questions", len(questions)).
		Msg("session started")
	return nil
}

// SelectAnswer writes the option key into the slot for the currently
// displayed question, overwriting any prior selection there.
func (s *Session) SelectAnswer(optionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	q := s.questions[s.currentIndex]
	if len(q.Options) > 0 && !q.HasOption(optionKey) {
		return ErrInvalidOption
	}
	s.answers[s.currentIndex] = optionKey
	return nil
}

// Next advances to the following question. On the last question it
// submits the attempt instead; answering every question is not required
// to move on.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.currentIndex == len(s.questions)-1 {
		outcome := s.finishLocked(ReasonUserSubmitted)
		s.mu.Unlock()
		s.persist(ctx, outcome)
		return nil
	}
	s.currentIndex++
	s.mu.Unlock()
	return nil
}

// Previous steps back one question. The answer at the index left behind
// stays untouched.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return ErrNotActive
	}
	if s.currentIndex == 0 {
		return ErrAlreadyAtFirst
	}
	s.currentIndex--
	return nil
}

// Finish submits the attempt. Valid only while active; the second call
// reports ErrNotActive.
func (s *Session) Finish(ctx context.Context, reason FinishReason) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	outcome := s.finishLocked(reason)
	s.mu.Unlock()

	s.persist(ctx, outcome)
	return nil
}

// finishLocked performs the Active -> Finished transition: stops the
// countdown, stamps finishedAt and scores the full answer set from
// scratch. Callers hold s.mu and run persist after unlocking.
func (s *Session) finishLocked(reason FinishReason) Outcome {
	s.stopTimerLocked()

	s.state = StateFinished
	s.reason = reason
	s.finishedAt = s.clock.Now()

	summary := scoring.Score(s.questions, s.answers)
	s.summary = &summary

	elapsedSeconds := int(s.opts.Duration/time.Second) - s.remainingSeconds
	answers := make([]string, len(s.answers))
	copy(answers, s.answers)

	s.emit(Event{Type: EventFinished, RemainingSeconds: s.remainingSeconds, Reason: reason})
	s.logger.Info().
		Str("reason", string(reason)).
		Int("correct", summary.CorrectCount).
		Float64("percentage", summary.Percentage).
		Msg("session finished")

	return Outcome{
		SessionID:        s.id,
		User:             s.user,
		Subject:          s.subject,
		TestID:           s.testID,
		Summary:          summary,
		Questions:        s.questions,
		Answers:          answers,
		Reason:           reason,
		StartedAt:        s.startedAt,
		FinishedAt:       s.finishedAt,
		TimeSpentMinutes: elapsedSeconds / 60,
	}
}

// persist hands the outcome to the recorder once. Failures are logged
// and swallowed; the session is already Finished by the time this runs.
func (s *Session) persist(ctx context.Context, outcome Outcome) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, outcome); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record finished attempt")
	}
}

// stop cancels the countdown without finishing. Used on reset and when
// a newer session replaces this one.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	if s.state == StateActive {
		s.state = StateFinished
	}
}

func (s *Session) stopTimerLocked() {
	s.stopOnce.Do(func() { close(s.stopTimer) })
}

// runTimer decrements the countdown once per second until it hits zero
// or the session leaves Active. At zero it forces a timeout finish.
func (s *Session) runTimer() {
	defer close(s.timerDone)

	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	firstWarning := int(s.opts.FirstWarningAt / time.Second)
	secondWarning := int(s.opts.SecondWarningAt / time.Second)

	for {
		select {
		case <-s.stopTimer:
			return
		case <-ticker.C():
			s.mu.Lock()
			if s.state != StateActive {
				s.mu.Unlock()
				return
			}
			if s.remainingSeconds > 0 {
				s.remainingSeconds--
			}
			remaining := s.remainingSeconds

			if remaining == firstWarning || remaining == secondWarning {
				s.emit(Event{Type: EventTimeWarning, RemainingSeconds: remaining})
			}

			if remaining == 0 {
				outcome := s.finishLocked(ReasonTimeout)
				s.mu.Unlock()
				s.persist(context.Background(), outcome)
				return
			}
			s.mu.Unlock()
		}
	}
}

// emit delivers an event without blocking. Callers hold s.mu.
func (s *Session) emit(e Event) {
	e.SessionID = s.id
	e.At = s.clock.Now()
	select {
	case s.events <- e:
	default:
	}
}

// Snapshot is the read-only view a UI layer renders from.
type Snapshot struct {
	SessionID        string           `json:"sessionId"`
	State            State            `json:"state"`
	Subject          string           `json:"subject"`
	TestID           string           `json:"testId"`
	CurrentIndex     int              `json:"currentIndex"`
	QuestionCount    int              `json:"questionCount"`
	Answers          []string         `json:"answers"`
	RemainingSeconds int              `json:"remainingSeconds"`
	StartedAt        time.Time        `json:"startedAt"`
	FinishedAt       *time.Time       `json:"finishedAt,omitempty"`
	Reason           FinishReason     `json:"reason,omitempty"`
	Summary          *scoring.Summary `json:"summary,omitempty"`
}

// Snapshot captures the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make([]string, len(s.answers))
	copy(answers, s.answers)

	snap := Snapshot{
		SessionID:        s.id,
		State:            s.state,
		Subject:          s.subject,
		TestID:           s.testID,
		CurrentIndex:     s.currentIndex,
		QuestionCount:    len(s.questions),
		Answers:          answers,
		RemainingSeconds: s.remainingSeconds,
		StartedAt:        s.startedAt,
		Reason:           s.reason,
		Summary:          s.summary,
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// CurrentQuestion returns the question at the current index, without
// revealing the correct key to callers that serve it to clients.
func (s *Session) CurrentQuestion() (question.Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return question.Question{}, 0
	}
	return s.questions[s.currentIndex], s.currentIndex
}

// Questions returns the session's fixed question sequence.
func (s *Session) Questions() []question.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions
}
