package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/conversation"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// SessionRepository keeps conversation sessions in process memory.
// History persistence beyond the process lifetime is deliberately out of
// scope, so there is no durable backend behind this store.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*conversation.Session
	maxTurns int
	log      *logger.Logger
}

// NewSessionRepository creates the in-memory store with the FIFO bound
func NewSessionRepository(maxTurns int, log *logger.Logger) *SessionRepository {
	if maxTurns < 1 {
		maxTurns = 10
	}
	return &SessionRepository{
		sessions: make(map[uuid.UUID]*conversation.Session),
		maxTurns: maxTurns,
		log:      log.With("component", "session_repository"),
	}
}

// Create starts a new empty session
func (r *SessionRepository) Create(_ context.Context) (*conversation.Session, error) {
	now := time.Now().UTC()
	s := &conversation.Session{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Debugf("Session created: id=%s", s.ID)
	return copySession(s), nil
}

// Get returns an isolated copy of the session
func (r *SessionRepository) Get(_ context.Context, id uuid.UUID) (*conversation.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	return copySession(s), nil
}

// AppendTurn appends one completed turn under the store lock, evicting the
// oldest turn once the bound is reached
func (r *SessionRepository) AppendTurn(_ context.Context, id uuid.UUID, turn conversation.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}

	if len(s.Turns) >= r.maxTurns {
		metrics.SessionTurnsEvicted.Inc()
	}
	s.AppendTurn(turn, r.maxTurns)
	return nil
}

// Delete ends the session
func (r *SessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	delete(r.sessions, id)
	r.log.Debugf("Session deleted: id=%s", id)
	return nil
}

// Count returns the number of live sessions
func (r *SessionRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

func copySession(s *conversation.Session) *conversation.Session {
	out := *s
	out.Turns = make([]conversation.Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return &out
}
