package logger

import (
	"cidrvend/internal/api/http/identity"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxEventKey ctxKey = iota
)

func LoggerMiddleware(l Logger, component string, node string) func(http.Handler) http.Handler {
	if component == "" {
		component = "cidrvend"
	}
	index := make(map[string]Rule, len(rules))
	for _, ru := range rules {
		key := ru.Method + " " + ru.Pattern
		index[key] = ru
	}
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			acct, _ := identity.AccountFromContext(r.Context())
			ev := Event{
				TS:            start.UTC().Format(time.RFC3339Nano),
				EventId:       uuid.NewString(),
				CorrelationId: middleware.GetReqID(r.Context()),

				Severity: Severity[SEV_INFO],

				Actor: Actor{
					AccountId:       acct,
					Principal:       identity.PrincipalFromContext(r.Context()),
					CertFingerprint: clientCertFingerprint(r),
					PeerIp:          peerIp(r),
				},

				Request: Request{
					Method: r.Method,
					Path:   r.URL.Path,
					Host:   r.Host,
				},

				Runtime: Runtime{
					Component: component,
					Node:      node,
				},

				Extra: map[string]any{},
			}

			ctx := context.WithValue(r.Context(), ctxEventKey, &ev)
			r = r.WithContext(ctx)

			next.ServeHTTP(ww, r)

			pattern := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				pattern = rctx.RoutePattern()
			}
			key := r.Method + " " + pattern
			if ev.Action == "" {
				if ru, ok := index[key]; ok {
					ev.Action = ru.Action
					ev.Severity = Severity[ru.Severity]
				} else {
					ev.Action = "unknown"
					ev.Severity = Severity[SEV_LOW]
				}
			} else {
				ev.Severity = Severity[severityForAction(ev.Action)]
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			ev.Result.Code = status
			ev.Result.Bytes = ww.BytesWritten()
			ev.Result.LatencyMs = time.Since(start).Milliseconds()

			switch {
			case status >= 200 && status < 400:
				ev.Result.Status = "allow"
			case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusPreconditionFailed:
				ev.Result.Status = "deny"
				ev.Severity = bump(ev.Severity)
			default:
				ev.Result.Status = "error"
				ev.Severity = bump(ev.Severity)
			}

			l.Write(ev)
		}
		return http.HandlerFunc(fn)
	}
}

func FromContext(ctx context.Context) *Event {
	ev, _ := ctx.Value(ctxEventKey).(*Event)
	return ev
}

func SetAction(ctx context.Context, action string) {
	if ev := FromContext(ctx); ev != nil {
		ev.Action = action
	}
}

func SetTarget(ctx context.Context, target Target) {
	if ev := FromContext(ctx); ev != nil {
		if target.BlockCidr != "" {
			ev.Target.BlockCidr = target.BlockCidr
		}
		if target.ResourceId != "" {
			ev.Target.ResourceId = target.ResourceId
		}
		if target.Region != "" {
			ev.Target.Region = target.Region
		}
	}
}

func SetReason(ctx context.Context, reason string) {
	if ev := FromContext(ctx); ev != nil {
		ev.Result.Reason = reason
	}
}

func PutExtra(ctx context.Context, k string, v any) {
	if ev := FromContext(ctx); ev != nil {
		if ev.Extra == nil {
			ev.Extra = map[string]any{}
		}
		ev.Extra[k] = v
	}
}

// ZapLogger writes audit events as structured zap entries.
type ZapLogger struct {
	Logs *zap.Logger
}

func (l ZapLogger) Write(event Event) {
	fields := []zap.Field{
		zap.String("event_id", event.EventId),
		zap.String("correlation_id", event.CorrelationId),
		zap.String("severity", event.Severity),
		zap.String("action", event.Action),
		zap.Any("actor", event.Actor),
		zap.Any("target", event.Target),
		zap.Any("request", event.Request),
		zap.Any("result", event.Result),
		zap.Any("runtime", event.Runtime),
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	l.Logs.Info("audit", fields...)
}

func clientCertFingerprint(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}
	leaf := r.TLS.PeerCertificates[0]
	sum := sha256.Sum256(leaf.Raw)
	return hex.EncodeToString(sum[:])
}

func peerIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func severityForAction(action string) int {
	if s, ok := actionSeverity[action]; ok {
		return s
	}
	return SEV_LOW
}

func bump(s string) string {
	switch s {
	case "information":
		return "low"
	case "low":
		return "medium"
	case "medium":
		return "high"
	case "high":
		return "critical"
	default:
		return s
	}
}
