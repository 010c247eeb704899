package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo is an in-process user directory for tests and local runs.
type UsersRepo struct {
	mu       sync.RWMutex
	byAuthID map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byAuthID: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, req user.SignUpRequest) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byAuthID[req.AuthID]; ok {
		return user.User{}, user.ErrConflict
	}
	for _, u := range r.byAuthID {
		if u.Email == req.Email {
			return user.User{}, user.ErrConflict
		}
	}

	now := time.Now().UTC()
	u := user.User{
		ID:        uuid.NewString(),
		AuthID:    req.AuthID,
		Email:     req.Email,
		Role:      user.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.byAuthID[u.AuthID] = u

	return u, nil
}

func (r *UsersRepo) GetByAuthID(_ context.Context, authID string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byAuthID[authID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byAuthID {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) SetRole(_ context.Context, authID string, role user.Role) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byAuthID[authID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	r.byAuthID[authID] = u

	return u, nil
}
