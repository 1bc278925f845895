// Package auth resolves bearer tokens to approved principals.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTokenRequired = errors.New("token required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNotApproved   = errors.New("user not approved")
)

// Claims carries the user id under "userId"; tokens that only set "sub" are accepted too.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalCache is an optional read-through cache in front of the user store.
type PrincipalCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	Set(ctx context.Context, p *domain.Principal) error
}

type Verifier struct {
	secret []byte
	users  repository.UserRepository
	cache  PrincipalCache
	log    *zap.Logger
}

func NewVerifier(secret string, users repository.UserRepository, log *zap.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		users:  users,
		log:    log.Named("auth"),
	}
}

// SetCache sets the principal cache (optional dependency).
func (v *Verifier) SetCache(c PrincipalCache) {
	v.cache = c
}

// Verify validates the token and returns the approved principal behind it.
func (v *Verifier) Verify(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	userID, err := v.parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	p, err := v.principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrInvalidToken
	}
	if !p.Approved() {
		return nil, ErrNotApproved
	}
	return p, nil
}

func (v *Verifier) parse(token string) (uuid.UUID, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !parsed.Valid {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	sub := claims.UserID
	if sub == "" {
		sub = claims.Subject
	}
	return uuid.Parse(sub)
}

func (v *Verifier) principal(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	if v.cache != nil {
		p, err := v.cache.Get(ctx, id)
		if err != nil {
			v.log.Warn("principal cache read failed", zap.Stringer("user_id", id), zap.Error(err))
		} else if p != nil {
			return p, nil
		}
	}

	user, err := v.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	p := user.Principal()
	if v.cache != nil {
		if err := v.cache.Set(ctx, p); err != nil {
			v.log.Warn("principal cache write failed", zap.Stringer("user_id", id), zap.Error(err))
		}
	}
	return p, nil
}
