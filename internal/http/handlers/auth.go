package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/identity"
	"github.com/geocoder89/storefront/internal/roleguard"
	"github.com/geocoder89/storefront/internal/security"
	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	Create(ctx context.Context, req user.SignUpRequest) (user.User, error)
	GetByAuthID(ctx context.Context, authID string) (user.User, error)
	SetRole(ctx context.Context, authID string, role user.Role) (user.User, error)
}

// LocalIdentity is the self-hosted identity provider.
type LocalIdentity interface {
	Register(ctx context.Context, email, password string) (identity.Identity, error)
	SignIn(ctx context.Context, email, password string) (string, identity.Session, error)
	SignOut(ctx context.Context, token string) error
	Unregister(ctx context.Context, identityID string) error
}

type AuthConfig struct {
	SecureCookie bool
	Timeout      time.Duration
}

type AuthHandler struct {
	users UserDirectory
	idp   LocalIdentity
	cfg   AuthConfig
	log   *slog.Logger
}

func NewAuthHandler(users UserDirectory, idp LocalIdentity, cfg AuthConfig, log *slog.Logger) *AuthHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &AuthHandler{users: users, idp: idp, cfg: cfg, log: log}
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	AuthID    string    `json:"authId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newSessionResponse(token string, s identity.Session) sessionResponse {
	return sessionResponse{Token: token, AuthID: s.AuthID, Email: s.Email, ExpiresAt: s.ExpiresAt}
}

// SignUp records the directory user for an identity that already exists at
// the provider. New users always start as USER.
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	req = req.Normalize()
	if err := req.Validate(); err != nil {
		RespondError(ctx, http.StatusBadRequest, "missing_fields", "authId and email are required", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	u, err := h.users.Create(cctx, req)
	if err != nil {
		if errors.Is(err, user.ErrConflict) {
			RespondConflict(ctx, "conflict", "A user with this auth id or email already exists")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "signup failed", "auth_id", req.AuthID, "err", err)
		RespondInternal(ctx, "Failed to create user")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *AuthHandler) CheckRole(ctx *gin.Context) {
	authID, ok := h.signedIn(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	u, err := h.users.GetByAuthID(cctx, authID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "check role failed", "auth_id", authID, "err", err)
		RespondInternal(ctx, "Failed to check role")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"role": u.Role})
}

// Register creates an identity at the local provider, its directory user and
// a first session.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req CredentialsRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	id, err := h.idp.Register(cctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, security.ErrPasswordTooShort):
			RespondBadRequest(ctx, "Password must be at least 6 characters long", gin.H{"field": "password"})
		default:
			h.log.ErrorContext(ctx.Request.Context(), "register failed", "err", err)
			RespondInternal(ctx, "Failed to create user")
		}
		return
	}

	u, err := h.users.Create(cctx, user.SignUpRequest{AuthID: id.ID, Email: id.Email})
	if err != nil {
		h.undoRegister(ctx.Request.Context(), id)

		if errors.Is(err, user.ErrConflict) {
			RespondConflict(ctx, "conflict", "A user with this email already exists")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "register: directory insert failed", "auth_id", id.ID, "err", err)
		RespondInternal(ctx, "Failed to create user")
		return
	}

	token, session, err := h.idp.SignIn(cctx, req.Email, req.Password)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "register: sign in failed", "auth_id", id.ID, "err", err)
		RespondInternal(ctx, "Account created, please sign in")
		return
	}

	h.setSessionCookie(ctx, token, session.ExpiresAt)
	ctx.JSON(http.StatusCreated, gin.H{
		"user":    u,
		"session": newSessionResponse(token, session),
	})
}

func (h *AuthHandler) SignIn(ctx *gin.Context) {
	var req CredentialsRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	token, session, err := h.idp.SignIn(cctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "sign in failed", "err", err)
		RespondInternal(ctx, "Failed to sign in")
		return
	}

	h.setSessionCookie(ctx, token, session.ExpiresAt)
	ctx.JSON(http.StatusOK, gin.H{"session": newSessionResponse(token, session)})
}

func (h *AuthHandler) SignOut(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	if err := h.idp.SignOut(cctx, roleguard.TokenFromRequest(ctx.Request)); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "sign out failed", "err", err)
		RespondInternal(ctx, "Failed to sign out")
		return
	}

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// SetAdmin promotes the caller without any approval. It is only mounted in
// dev with ALLOW_SELF_ELEVATION set.
func (h *AuthHandler) SetAdmin(ctx *gin.Context) {
	authID, ok := h.signedIn(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	u, err := h.users.SetRole(cctx, authID, user.RoleAdmin)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "set admin failed", "auth_id", authID, "err", err)
		RespondInternal(ctx, "Internal server error")
		return
	}

	h.log.WarnContext(ctx.Request.Context(), "self elevation used", "auth_id", authID)
	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// undoRegister drops the identity created for a registration whose directory
// user could not be written, so the email is free to register again. If that
// fails too the identity stays; POST /api/auth/signup with its auth id repairs
// the missing directory record.
func (h *AuthHandler) undoRegister(parent context.Context, id identity.Identity) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.cfg.Timeout)
	defer cancel()

	if err := h.idp.Unregister(ctx, id.ID); err != nil {
		h.log.ErrorContext(ctx, "register: identity left without directory user, repair with signup",
			"auth_id", id.ID, "email", id.Email, "err", err)
	}
}

// signedIn reads the guard result left by ResolveCaller and answers 401 when
// there is no verified session behind the request.
func (h *AuthHandler) signedIn(ctx *gin.Context) (string, bool) {
	res, _ := middlewares.GuardResult(ctx)

	if res.Decision == roleguard.Unauthenticated {
		RespondUnauthorized(ctx, "unauthorized", "Not authenticated")
		return "", false
	}
	if res.Session.AuthID == "" {
		// the provider could not vouch for the token either way
		RespondUnauthorized(ctx, "unauthorized", "Could not verify session")
		return "", false
	}
	return res.Session.AuthID, true
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(roleguard.SessionCookie, raw, maxAge, "/", "", h.cfg.SecureCookie, true)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(roleguard.SessionCookie, "", -1, "/", "", h.cfg.SecureCookie, true)
}
