package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahis-social/server/internal/auth"
	"github.com/ahis-social/server/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

// Verifier resolves a bearer token to an approved principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Principal, error)
}

type Options struct {
	// OriginPatterns lists allowed browser origins. Empty allows any origin.
	OriginPatterns  []string
	EventsPerSecond float64
	EventBurst      int
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
// A rejected token closes the socket with StatusPolicyViolation and a reason.
func ServeWS(hub *Hub, verifier Verifier, router Router, opts Options, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		accept := &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns}
		if len(opts.OriginPatterns) == 0 {
			accept.InsecureSkipVerify = true
		}

		conn, err := websocket.Accept(w, r, accept)
		if err != nil {
			log.Info("accept failed", zap.Error(err))
			return
		}

		principal, err := verifier.Verify(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			reason := "Invalid token"
			switch {
			case errors.Is(err, auth.ErrTokenRequired):
				reason = "Token required"
			case errors.Is(err, auth.ErrNotApproved):
				reason = "User not approved"
			case !errors.Is(err, auth.ErrInvalidToken):
				log.Error("verifying token", zap.Error(err))
			}
			conn.Close(websocket.StatusPolicyViolation, reason)
			return
		}

		var limiter *rate.Limiter
		if opts.EventsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(opts.EventsPerSecond), max(opts.EventBurst, 1))
		}

		client := NewClient(hub, conn, principal.ID, router, limiter, log)
		client.Serve(r.Context())
	}
}
