// Package session keeps passcode flows alive between HTTP requests. Each flow belongs to
// one owner and is driven by one request at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/passcode/internal/notification"
	"github.com/congo-pay/passcode/internal/passcode"
)

const defaultTTL = 5 * time.Minute

var (
	// ErrNotFound is returned for unknown ids and for sessions owned by someone else.
	ErrNotFound = errors.New("flow session not found")
	// ErrExpired is returned when a session outlived its deadline.
	ErrExpired = errors.New("flow session expired")
	// ErrPasscodeExists is returned when a create flow is requested for an owner who already
	// has a passcode. Replacing it goes through a change flow.
	ErrPasscodeExists = errors.New("passcode already set, use a change flow")
)

// StoreFactory returns the secret store of an owner.
type StoreFactory func(owner string) passcode.SecretStore

// Config controls how flows are opened.
type Config struct {
	Length   int
	TTL      time.Duration
	Messages passcode.Messages
}

// Snapshot is the externally visible state of a session after an event.
type Snapshot struct {
	ID        string           `json:"flow_id"`
	Mode      string           `json:"mode"`
	Step      string           `json:"step,omitempty"`
	Phase     string           `json:"phase"`
	Outcome   string           `json:"outcome"`
	Prompt    string           `json:"prompt"`
	Filled    int              `json:"filled"`
	Length    int              `json:"length"`
	Events    []passcode.Event `json:"events"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type session struct {
	mu        sync.Mutex
	id        string
	owner     string
	startMode passcode.Mode
	flow      *passcode.Flow
	events    *passcode.Recorder
	expiresAt time.Time
}

// Manager owns all open sessions.
type Manager struct {
	cfg      Config
	stores   StoreFactory
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager builds a session manager.
func NewManager(cfg Config, stores StoreFactory, notifier notification.Notifier, logger *slog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Manager{
		cfg:      cfg,
		stores:   stores,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Start opens a flow for owner in mode.
func (m *Manager) Start(ctx context.Context, owner string, mode passcode.Mode) (Snapshot, error) {
	if owner == "" {
		return Snapshot{}, errors.New("owner is required")
	}
	store := m.stores(owner)
	if mode == passcode.ModeCreate {
		_, err := store.Read(ctx)
		switch {
		case err == nil:
			return Snapshot{}, ErrPasscodeExists
		case !errors.Is(err, passcode.ErrNoSecret):
			return Snapshot{}, fmt.Errorf("%w: %w", passcode.ErrStoreUnavailable, err)
		}
	}
	rec := &passcode.Recorder{}
	flow, err := passcode.New(store, mode, passcode.Options{
		Length:    m.cfg.Length,
		Messages:  m.cfg.Messages,
		Presenter: rec,
		Logger:    m.logger.With(slog.String("owner_id", owner)),
	})
	if err != nil {
		return Snapshot{}, err
	}

	s := &session{
		id:        uuid.NewString(),
		owner:     owner,
		startMode: mode,
		flow:      flow,
		events:    rec,
		expiresAt: m.now().Add(m.cfg.TTL),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("passcode flow started",
		slog.String("flow_id", s.id),
		slog.String("owner_id", owner),
		slog.String("mode", mode.String()),
	)
	return s.snapshot(passcode.OutcomePending), nil
}

// Get returns the current snapshot without changing the flow.
func (m *Manager) Get(_ context.Context, id, owner string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, owner, func(s *session) error {
		snap = s.snapshot(passcode.OutcomePending)
		return nil
	})
	return snap, err
}

// Digit feeds one digit to the flow.
func (m *Manager) Digit(ctx context.Context, id, owner string, d int) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, owner, func(s *session) error {
		outcome, err := s.flow.OnDigit(ctx, d)
		if err != nil {
			return err
		}
		snap = s.snapshot(outcome)
		if outcome == passcode.OutcomeSucceeded {
			m.finish(ctx, s)
		}
		return nil
	})
	return snap, err
}

// Backspace removes the last digit of the flow.
func (m *Manager) Backspace(_ context.Context, id, owner string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, owner, func(s *session) error {
		if err := s.flow.OnBackspace(); err != nil {
			return err
		}
		snap = s.snapshot(passcode.OutcomePending)
		return nil
	})
	return snap, err
}

// Cancel dismisses the flow.
func (m *Manager) Cancel(_ context.Context, id, owner string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, owner, func(s *session) error {
		if err := s.flow.Cancel(); err != nil {
			return err
		}
		snap = s.snapshot(passcode.OutcomeCancelled)
		m.remove(s.id)
		return nil
	})
	return snap, err
}

// Sweep cancels every session past its deadline and returns how many were dropped.
func (m *Manager) Sweep() int {
	now := m.now()
	var expired []*session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.After(s.expiresAt) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.mu.Lock()
		_ = s.flow.Cancel()
		s.mu.Unlock()
		m.logger.Info("passcode flow expired", slog.String("flow_id", s.id), slog.String("owner_id", s.owner))
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) with(id, owner string, fn func(*session) error) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || s.owner != owner {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.now().After(s.expiresAt) {
		_ = s.flow.Cancel()
		m.remove(s.id)
		return ErrExpired
	}
	return fn(s)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) finish(ctx context.Context, s *session) {
	m.remove(s.id)
	m.logger.Info("passcode flow succeeded",
		slog.String("flow_id", s.id),
		slog.String("owner_id", s.owner),
		slog.String("mode", s.startMode.String()),
	)

	var kind string
	switch s.startMode {
	case passcode.ModeCreate:
		kind = notification.KindPasscodeCreated
	case passcode.ModeChange:
		kind = notification.KindPasscodeChanged
	case passcode.ModeDeactivate:
		kind = notification.KindPasscodeRemoved
	default:
		return
	}
	if m.notifier == nil {
		return
	}
	msg := notification.Message{Kind: kind, Destination: s.owner, Body: fmt.Sprintf("passcode %s", s.startMode)}
	if err := m.notifier.Send(ctx, msg); err != nil {
		m.logger.Warn("passcode notification failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

func (s *session) snapshot(outcome passcode.Outcome) Snapshot {
	state := s.flow.State()
	snap := Snapshot{
		ID:        s.id,
		Mode:      state.Mode.String(),
		Phase:     state.Phase.String(),
		Outcome:   outcome.String(),
		Prompt:    s.flow.Prompt(),
		Filled:    s.flow.Filled(),
		Length:    s.flow.Length(),
		Events:    s.events.Drain(),
		ExpiresAt: s.expiresAt,
	}
	if state.Mode == passcode.ModeCreate {
		snap.Step = state.Step.String()
	}
	if snap.Events == nil {
		snap.Events = []passcode.Event{}
	}
	return snap
}
