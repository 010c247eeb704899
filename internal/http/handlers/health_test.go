package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	draining := false
	h := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    nil,
	}, func() bool { return draining })

	r := gin.New()
	r.GET("/readyz", h.Readyz)

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rec
	}

	if rec := serve(); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	draining = true
	if rec := serve(); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("draining status = %d", rec.Code)
	}
}

func TestReadyz_ReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"mongo": func(context.Context) error { return errors.New("no reachable servers") },
	}, nil)

	r := gin.New()
	r.GET("/readyz", h.Readyz)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[struct {
		Failed map[string]string `json:"failed"`
	}](t, rec)
	if body.Failed["mongo"] != "no reachable servers" {
		t.Fatalf("failed = %v", body.Failed)
	}
}
