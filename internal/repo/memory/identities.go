package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/identity"
)

// IdentityRepo backs the local identity provider in tests and local runs.
type IdentityRepo struct {
	mu         sync.RWMutex
	identities map[string]identity.Identity // keyed by email
	sessions   map[string]identity.SessionRow
}

func NewIdentityRepo() *IdentityRepo {
	return &IdentityRepo{
		identities: make(map[string]identity.Identity),
		sessions:   make(map[string]identity.SessionRow),
	}
}

func (r *IdentityRepo) CreateIdentity(_ context.Context, id identity.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.identities[id.Email]; ok {
		return identity.ErrEmailTaken
	}
	r.identities[id.Email] = id
	return nil
}

func (r *IdentityRepo) GetIdentityByEmail(_ context.Context, email string) (identity.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.identities[email]
	if !ok {
		return identity.Identity{}, identity.ErrIdentityNotFound
	}
	return id, nil
}

func (r *IdentityRepo) DeleteIdentity(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for email, existing := range r.identities {
		if existing.ID == id {
			delete(r.identities, email)
		}
	}
	for sid, row := range r.sessions {
		if row.IdentityID == id {
			delete(r.sessions, sid)
		}
	}
	return nil
}

func (r *IdentityRepo) CreateSession(_ context.Context, row identity.SessionRow) error {
	r.mu.Lock()
	r.sessions[row.ID] = row
	r.mu.Unlock()
	return nil
}

func (r *IdentityRepo) GetSession(_ context.Context, id string) (identity.SessionRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.sessions[id]
	if !ok {
		return identity.SessionRow{}, identity.ErrSessionNotFound
	}
	return row, nil
}

func (r *IdentityRepo) RevokeSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.sessions[id]
	if !ok {
		return identity.ErrSessionNotFound
	}
	if row.RevokedAt == nil {
		now := time.Now().UTC()
		row.RevokedAt = &now
		r.sessions[id] = row
	}
	return nil
}
