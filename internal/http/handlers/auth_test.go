package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/identity"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/roleguard"
	"github.com/gin-gonic/gin"
)

type authFixture struct {
	router *gin.Engine
	users  *memory.UsersRepo
}

func newAuthFixture(t *testing.T, guard middlewares.Resolver) authFixture {
	t.Helper()

	users := memory.NewUsersRepo()
	ids := memory.NewIdentityRepo()
	idp := identity.NewLocal(ids, ids, auth.NewManager("test-secret", time.Hour))

	h := handlers.NewAuthHandler(users, idp, handlers.AuthConfig{}, discardLogger())

	r := gin.New()
	r.POST("/signup", h.SignUp)
	r.POST("/register", h.Register)
	r.POST("/signin", h.SignIn)
	r.POST("/signout", h.SignOut)
	r.GET("/check-role", middlewares.ResolveCaller(guard), h.CheckRole)
	r.POST("/set-admin", middlewares.ResolveCaller(guard), h.SetAdmin)

	return authFixture{router: r, users: users}
}

func signedInAs(authID string) fakeGuard {
	return fakeGuard{res: roleguard.Result{
		Decision: roleguard.NonAdmin,
		Session:  identity.Session{AuthID: authID},
	}}
}

func TestSignUpHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"created", `{"authId":"auth-1","email":"Ann@Example.com"}`, http.StatusCreated, ""},
		{"missing email", `{"authId":"auth-2"}`, http.StatusBadRequest, "missing_fields"},
		{"missing auth id", `{"email":"b@example.com"}`, http.StatusBadRequest, "missing_fields"},
		{"duplicate auth id", `{"authId":"auth-0","email":"c@example.com"}`, http.StatusConflict, "conflict"},
		{"duplicate email", `{"authId":"auth-3","email":"taken@example.com"}`, http.StatusConflict, "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, fakeGuard{})
			if _, err := f.users.Create(context.Background(), user.SignUpRequest{AuthID: "auth-0", Email: "taken@example.com"}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			w := doJSON(f.router, http.MethodPost, "/signup", tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode != "" {
				if resp := decode[errorBody](t, w); resp.Error.Code != tt.wantCode {
					t.Fatalf("code = %s, want %s", resp.Error.Code, tt.wantCode)
				}
				return
			}

			resp := decode[struct {
				User user.User `json:"user"`
			}](t, w)
			if resp.User.Role != user.RoleUser || resp.User.Email != "ann@example.com" {
				t.Fatalf("unexpected user %+v", resp.User)
			}
		})
	}
}

func TestCheckRoleHandler(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := newAuthFixture(t, fakeGuard{res: roleguard.Result{Decision: roleguard.Unauthenticated}})

		if w := doJSON(f.router, http.MethodGet, "/check-role", "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("no directory user", func(t *testing.T) {
		f := newAuthFixture(t, signedInAs("ghost"))

		if w := doJSON(f.router, http.MethodGet, "/check-role", "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("reports role", func(t *testing.T) {
		f := newAuthFixture(t, signedInAs("auth-1"))
		if _, err := f.users.Create(context.Background(), user.SignUpRequest{AuthID: "auth-1", Email: "a@example.com"}); err != nil {
			t.Fatalf("seed: %v", err)
		}

		w := doJSON(f.router, http.MethodGet, "/check-role", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if resp := decode[struct {
			Role string `json:"role"`
		}](t, w); resp.Role != "USER" {
			t.Fatalf("role = %q", resp.Role)
		}
	})
}

func TestSetAdminHandler(t *testing.T) {
	f := newAuthFixture(t, signedInAs("auth-1"))

	if w := doJSON(f.router, http.MethodPost, "/set-admin", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status before signup = %d, want 404", w.Code)
	}

	if _, err := f.users.Create(context.Background(), user.SignUpRequest{AuthID: "auth-1", Email: "a@example.com"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(f.router, http.MethodPost, "/set-admin", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}

	u, _ := f.users.GetByAuthID(context.Background(), "auth-1")
	if u.Role != user.RoleAdmin {
		t.Fatalf("role = %s, want ADMIN", u.Role)
	}
}

func TestRegisterSignInSignOut(t *testing.T) {
	f := newAuthFixture(t, fakeGuard{})

	w := doJSON(f.router, http.MethodPost, "/register", `{"email":"new@example.com","password":"secret1"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body=%s", w.Code, w.Body.String())
	}
	if w.Result().Cookies()[0].Name != roleguard.SessionCookie {
		t.Fatalf("expected session cookie")
	}

	reg := decode[struct {
		User    user.User `json:"user"`
		Session struct {
			Token  string `json:"token"`
			AuthID string `json:"authId"`
		} `json:"session"`
	}](t, w)
	if reg.User.AuthID == "" || reg.User.AuthID != reg.Session.AuthID || reg.User.Role != user.RoleUser {
		t.Fatalf("unexpected register response %+v", reg)
	}

	w = doJSON(f.router, http.MethodPost, "/register", `{"email":"new@example.com","password":"secret1"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", w.Code)
	}

	w = doJSON(f.router, http.MethodPost, "/signin", `{"email":"new@example.com","password":"wrong-pw"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", w.Code)
	}

	w = doJSON(f.router, http.MethodPost, "/signin", `{"email":"new@example.com","password":"secret1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body=%s", w.Code, w.Body.String())
	}
	token := decode[struct {
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}](t, w).Session.Token

	w = doJSON(f.router, http.MethodPost, "/signout", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusNoContent {
		t.Fatalf("signout status = %d", w.Code)
	}

	// signing out twice is fine
	w = doJSON(f.router, http.MethodPost, "/signout", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusNoContent {
		t.Fatalf("second signout status = %d", w.Code)
	}
}

// flakyUsers fails the next Create, as a directory outage would.
type flakyUsers struct {
	*memory.UsersRepo
	failNext bool
}

func (f *flakyUsers) Create(ctx context.Context, req user.SignUpRequest) (user.User, error) {
	if f.failNext {
		f.failNext = false
		return user.User{}, errors.New("directory unavailable")
	}
	return f.UsersRepo.Create(ctx, req)
}

func TestRegister_DirectoryFailureCanBeRetried(t *testing.T) {
	users := &flakyUsers{UsersRepo: memory.NewUsersRepo(), failNext: true}
	ids := memory.NewIdentityRepo()
	idp := identity.NewLocal(ids, ids, auth.NewManager("test-secret", time.Hour))

	h := handlers.NewAuthHandler(users, idp, handlers.AuthConfig{}, discardLogger())
	r := gin.New()
	r.POST("/register", h.Register)

	body := `{"email":"retry@example.com","password":"secret1"}`

	w := doJSON(r, http.MethodPost, "/register", body, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if _, err := ids.GetIdentityByEmail(context.Background(), "retry@example.com"); !errors.Is(err, identity.ErrIdentityNotFound) {
		t.Fatalf("identity left behind after failed register: %v", err)
	}

	w = doJSON(r, http.MethodPost, "/register", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("retry status = %d, body=%s", w.Code, w.Body.String())
	}
	if _, err := users.GetByEmail(context.Background(), "retry@example.com"); err != nil {
		t.Fatalf("directory user missing after retry: %v", err)
	}
}
