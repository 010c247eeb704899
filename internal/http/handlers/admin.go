package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/roleguard"
	"github.com/gin-gonic/gin"
)

const PermissionDenied = "You do not have permission to access the admin area."

type NavItem struct {
	Href   string `json:"href"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
	exact  bool
}

func adminNav() []NavItem {
	return []NavItem{
		{Href: "/admin", Label: "Dashboard", exact: true},
		{Href: "/admin/categories", Label: "Categories"},
		{Href: "/admin/products", Label: "Products"},
	}
}

type Shell struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Path     string    `json:"path"`
	Nav      []NavItem `json:"nav"`
}

func NewShell(path string) Shell {
	nav := adminNav()
	for i := range nav {
		if nav[i].exact {
			nav[i].Active = path == nav[i].Href
		} else {
			nav[i].Active = strings.HasPrefix(path, nav[i].Href)
		}
	}

	return Shell{
		Title:    "Admin Dashboard",
		Subtitle: "Manage your store content and settings",
		Path:     path,
		Nav:      nav,
	}
}

type Dashboarder interface {
	Dashboard(ctx context.Context) (catalog.Stats, error)
}

type Elevator interface {
	SetRole(ctx context.Context, authID string, role user.Role) (user.User, error)
}

type AdminHandler struct {
	guard middlewares.Resolver
	stats Dashboarder
	users Elevator
	log   *slog.Logger
}

func NewAdminHandler(guard middlewares.Resolver, stats Dashboarder, users Elevator, log *slog.Logger) *AdminHandler {
	return &AdminHandler{guard: guard, stats: stats, users: users, log: log}
}

// Shell runs the guard itself rather than trusting any gate in front of it,
// and renders either the navigation or the permission notice.
func (h *AdminHandler) Shell(ctx *gin.Context) {
	res := h.guard.ResolveRequest(ctx.Request)

	switch res.Decision {
	case roleguard.Unauthenticated:
		RespondUnauthorized(ctx, "unauthorized", "Sign in to continue")
		return
	case roleguard.NonAdmin:
		RespondForbidden(ctx, PermissionDenied)
		return
	}

	path := ctx.Query("path")
	if path == "" {
		path = ctx.Request.URL.Path
	}
	if !strings.HasPrefix(path, "/admin") {
		path = "/admin"
	}

	ctx.JSON(http.StatusOK, gin.H{"shell": NewShell(path)})
}

func (h *AdminHandler) Dashboard(ctx *gin.Context) {
	stats, err := h.stats.Dashboard(ctx.Request.Context())
	if err != nil {
		respondCatalogError(ctx, h.log, "load dashboard", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Elevate promotes another user. Only an existing admin gets here.
func (h *AdminHandler) Elevate(ctx *gin.Context) {
	target := strings.TrimSpace(ctx.Param("authId"))
	actor, _ := actorctx.AuthIDFrom(ctx.Request.Context())

	u, err := h.users.SetRole(ctx.Request.Context(), target, user.RoleAdmin)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "elevate failed", "target", target, "err", err)
		RespondInternal(ctx, "Failed to update role, please try again")
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user elevated", "target", target, "by", actor)
	ctx.JSON(http.StatusOK, gin.H{"user": u})
}
