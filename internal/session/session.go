// Package session keeps import previews between the preview and commit
// requests, and serializes commits per owner.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

var (
	// ErrNotFound is returned for unknown or expired previews.
	ErrNotFound = errors.New("preview session not found")
	// ErrLocked is returned when another commit holds the owner's lock.
	ErrLocked = errors.New("lock held by another commit")
	// ErrLockNotHeld is returned when releasing a lock that expired or
	// was taken over.
	ErrLockNotHeld = errors.New("lock not held")
)

// Session is a stored preview awaiting commit.
type Session struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"ownerId"`
	Source    string            `json:"source,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Preview   *importer.Preview `json:"preview"`
}

// New wraps a preview in a session that expires after ttl.
func New(ownerID, source string, p *importer.Preview, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Source:    source,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Preview:   p,
	}
}

// Expired reports whether the session is past its expiry at t.
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// Store persists sessions. Get returns ErrNotFound for missing or expired
// sessions. Delete of a missing session is not an error.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
