package conversation

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for session storage operations.
// Implementations own the FIFO history bound and all locking; callers never
// share a *Session value across goroutines, so Get returns an isolated copy.
type Repository interface {
	// Create starts a new empty session and returns it
	Create(ctx context.Context) (*Session, error)
	// Get returns a copy of the session or errors.ErrNotFound
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// AppendTurn appends one completed turn, evicting oldest-first past the bound
	AppendTurn(ctx context.Context, id uuid.UUID, turn Turn) error
	// Delete ends the session
	Delete(ctx context.Context, id uuid.UUID) error
	// Count returns the number of live sessions
	Count(ctx context.Context) (int, error)
}
