package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/repo/memory"
)

func TestPromote(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUsersRepo()

	if _, err := users.Create(ctx, user.SignUpRequest{AuthID: "auth-1", Email: "ops@example.com"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	u, err := promote(ctx, users, " OPS@example.com")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if u.Role != user.RoleAdmin {
		t.Fatalf("role = %s", u.Role)
	}

	// promoting an admin again is a no-op
	if _, err := promote(ctx, users, "ops@example.com"); err != nil {
		t.Fatalf("second promote: %v", err)
	}

	if _, err := promote(ctx, users, "missing@example.com"); err == nil || !strings.Contains(err.Error(), "no user registered") {
		t.Fatalf("expected not registered error, got %v", err)
	}
	if _, err := promote(ctx, users, "  "); err == nil {
		t.Fatalf("expected error for empty email")
	}
}

func TestPromoteCmd_RequiresEmail(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"promote"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "email") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}
