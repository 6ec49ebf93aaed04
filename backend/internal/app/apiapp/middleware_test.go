package apiapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	authsvc "github.com/ivankudzin/nikah/backend/internal/services/auth"
)

type verifierStub struct {
	claims authsvc.Claims
	err    error
	raw    string
}

func (s *verifierStub) Verify(_ context.Context, raw string) (authsvc.Claims, error) {
	s.raw = raw
	return s.claims, s.err
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	verifier := &verifierStub{claims: authsvc.Claims{UserID: 77, SID: "sid-77"}}
	mw := AuthMiddleware(verifier, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/interests/sent", nil)
	req.Header.Set("Authorization", "bearer token-77")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok || identity.UserID != 77 || identity.SID != "sid-77" {
			t.Fatalf("unexpected identity: %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
	if verifier.raw != "token-77" {
		t.Fatalf("unexpected token passed to verifier: %q", verifier.raw)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mw := AuthMiddleware(&verifierStub{}, zap.NewNop())

	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without token")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/quota", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	mw := AuthMiddleware(&verifierStub{err: errors.New("expired")}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/quota", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called on invalid token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc": true,
		"bearer abc": true,
		"Bearer ":    false,
		"Basic abc":  false,
		"":           false,
	}
	for value, want := range cases {
		if _, ok := extractBearerToken(value); ok != want {
			t.Fatalf("extractBearerToken(%q): got %v want %v", value, ok, want)
		}
	}
}

func TestRequestLoggerRecordsRouteAndCaller(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.With(AuthMiddleware(&verifierStub{claims: authsvc.Claims{UserID: 91, SID: "sid-91"}}, log)).
		Delete("/interests/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodDelete, "/interests/5", nil)
	req.Header.Set("Authorization", "Bearer t")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 2 {
		t.Fatalf("unexpected log entries: %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first["route"] != "/interests/{id}" || first["user_id"] != int64(91) || first["status"] != int64(http.StatusNoContent) {
		t.Fatalf("unexpected authed entry: %+v", first)
	}

	second := entries[1]
	if second.Level != zapcore.WarnLevel {
		t.Fatalf("5xx should log at warn, got %s", second.Level)
	}
	if _, ok := second.ContextMap()["user_id"]; ok {
		t.Fatalf("anonymous request must not carry user_id")
	}
}
