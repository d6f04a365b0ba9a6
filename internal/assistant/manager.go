package assistant

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/casa/internal/knowledge"
	"github.com/Veraticus/casa/internal/service"
)

// DefaultDomain is the knowledge domain used when Options leaves it empty.
const DefaultDomain = "geral"

// Session manager errors.
var (
	ErrUnknownSession  = errors.New("unknown session")
	ErrMissingIdentity = errors.New("household and user are required")
	ErrMissingStore    = errors.New("storage is required")
)

// Options wires a SessionManager. Only Store is required; Audit defaults to it.
type Options struct {
	Store        service.Storage
	Audit        service.AuditSink
	Answers      service.AnswerClient
	Defense      service.DefenseClient
	Files        service.FileStore
	Cache        *knowledge.Cache
	Validator    *knowledge.Validator
	Matcher      *knowledge.Matcher
	Picker       Picker
	Now          func() time.Time
	NewID        func() string
	Domain       string
	HistoryTurns int
}

// SessionManager owns the live sessions. Logging out drops the session with
// its log and household snapshot.
type SessionManager struct {
	deps     *sessionDeps
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a manager from opts.
func NewManager(opts Options) (*SessionManager, error) {
	if opts.Store == nil {
		return nil, ErrMissingStore
	}
	if opts.Audit == nil {
		opts.Audit = opts.Store
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.HistoryTurns <= 0 || opts.HistoryTurns > DefaultHistoryTurns {
		opts.HistoryTurns = DefaultHistoryTurns
	}

	resolver := NewResolver(ResolverConfig{
		Answers:   opts.Answers,
		Cache:     opts.Cache,
		Validator: opts.Validator,
		Matcher:   opts.Matcher,
		Picker:    opts.Picker,
		Now:       opts.Now,
		NewID:     opts.NewID,
	})
	executor := NewExecutor(opts.Store, opts.Store, opts.Defense, opts.Now)
	executor.newID = opts.NewID

	return &SessionManager{
		deps: &sessionDeps{
			resolver:     resolver,
			executor:     executor,
			store:        opts.Store,
			files:        opts.Files,
			audit:        opts.Audit,
			now:          opts.Now,
			newID:        opts.NewID,
			domain:       opts.Domain,
			historyTurns: opts.HistoryTurns,
		},
		sessions: make(map[string]*Session),
	}, nil
}

// Login starts a session for a household member.
func (m *SessionManager) Login(householdID, userID string) (*Session, error) {
	if strings.TrimSpace(householdID) == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrMissingIdentity
	}
	s := newSession(m.deps.newID(), householdID, userID, m.deps)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	slog.Info("Session started", "session_id", s.id, "household_id", householdID)
	return s, nil
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// Logout ends a session and drops its household snapshot.
func (m *SessionManager) Logout(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.Invalidate()
	s.Wait()
	slog.Info("Session ended", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
