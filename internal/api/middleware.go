package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/core"
	"github.com/sohaibansari420/careease-backened/internal/ratelimit"
	"github.com/sohaibansari420/careease-backened/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(userContextKey).(*store.User)
	return u
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_ip", clientIP(r)),
			)
		})
	}
}

func (h *APIHandler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			stack := debug.Stack()
			h.logger.Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", stack),
			)
			body := envelope{Success: false, Message: "Internal server error"}
			if !h.production {
				body.Message = fmt.Sprint(rec)
				body.Stack = string(stack)
			}
			writeJSON(w, http.StatusInternalServerError, body)
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: https:")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "SAMEORIGIN")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		hdr.Set("Cross-Origin-Opener-Policy", "same-origin")
		hdr.Set("X-DNS-Prefetch-Control", "off")
		next.ServeHTTP(w, r)
	})
}

func (h *APIHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.writeError(w, r, core.AuthError("Access token required"))
			return
		}

		user, err := h.auth.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := currentUser(r); u == nil || u.Role != store.RoleAdmin {
			h.writeError(w, r, core.ForbiddenError("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

var limitMessages = map[string]string{
	ratelimit.General.Name:    "Too many requests from this IP, please try again later.",
	ratelimit.Auth.Name:       "Too many authentication attempts, please try again later.",
	ratelimit.ChatCreate.Name: "Too many chat requests, please slow down.",
	ratelimit.AIMessage.Name:  "Too many AI requests, please wait before sending another message.",
}

// rateLimit enforces rule per client IP. Limiter errors let the request through.
func (h *APIHandler) rateLimit(rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := h.limiter.Allow(r.Context(), clientIP(r), rule)
			if err != nil {
				h.logger.Warn("rate limiter unavailable, allowing request",
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			reset := int(time.Until(d.ResetAt).Round(time.Second).Seconds())
			if reset < 0 {
				reset = 0
			}
			hdr := w.Header()
			hdr.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			hdr.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			hdr.Set("RateLimit-Reset", strconv.Itoa(reset))
			if !d.Allowed {
				hdr.Set("Retry-After", strconv.Itoa(reset))
				h.writeError(w, r, core.RateLimitedError(limitMessages[rule.Name]))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
