package apiapp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authsvc "github.com/ivankudzin/nikah/backend/internal/services/auth"
	httperrors "github.com/ivankudzin/nikah/backend/internal/transport/http/errors"
)

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (authsvc.Claims, error)
}

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

func AuthMiddleware(verifier TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			claims, err := verifier.Verify(r.Context(), accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			if trace := traceFrom(r.Context()); trace != nil {
				trace.userID = claims.UserID
			}
			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				UserID: claims.UserID,
				SID:    claims.SID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

// requestTrace lets handlers further down the chain add fields to the access log line,
// which is written by the outermost logger after the response.
type requestTrace struct {
	userID int64
}

type requestTraceKey struct{}

func traceFrom(ctx context.Context) *requestTrace {
	trace, _ := ctx.Value(requestTraceKey{}).(*requestTrace)
	return trace
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			trace := &requestTrace{}
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(context.WithValue(r.Context(), requestTraceKey{}, trace))

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			}
			if trace.userID > 0 {
				fields = append(fields, zap.Int64("user_id", trace.userID))
			}

			switch {
			case ww.Status() >= http.StatusInternalServerError:
				log.Warn("http_request", fields...)
			default:
				log.Info("http_request", fields...)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
