package user

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrConflict      = errors.New("user already exists") // auth id or email already taken
	ErrMissingFields = errors.New("missing required fields")
)

// User is the directory record behind an external identity.
type User struct {
	ID        string    `json:"id"`
	AuthID    string    `json:"authId"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields are validated by hand so the handler can answer with the
// "missing fields" error instead of a generic binding failure.
type SignUpRequest struct {
	AuthID string `json:"authId"`
	Email  string `json:"email"`
}

func (r SignUpRequest) Normalize() SignUpRequest {
	return SignUpRequest{
		AuthID: strings.TrimSpace(r.AuthID),
		Email:  strings.ToLower(strings.TrimSpace(r.Email)),
	}
}

func (r SignUpRequest) Validate() error {
	if r.AuthID == "" || r.Email == "" {
		return ErrMissingFields
	}
	return nil
}
