// Package auth owns every credential the service handles: the upstream underwriting session,
// the bearer tokens issued to flow owners, and the operator gate.
package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/underwriting"
)

// Exchanger performs the credential grant against an environment.
type Exchanger interface {
	Login(ctx context.Context, target environment.Target) (string, error)
}

// TokenProvider caches one upstream token per environment.
// Concurrent misses for the same environment share a single login.
type TokenProvider struct {
	exchanger Exchanger
	store     TokenStore
	validity  time.Duration
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// NewTokenProvider wires the provider. validity is assumed for opaque tokens; zero means valid until rejected.
func NewTokenProvider(exchanger Exchanger, store TokenStore, validity time.Duration, logger *zap.Logger) *TokenProvider {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{
		exchanger: exchanger,
		store:     store,
		validity:  validity,
		logger:    logger,
		now:       time.Now,
	}
}

// Token returns a cached token for target or logs in.
func (p *TokenProvider) Token(ctx context.Context, target environment.Target) (string, error) {
	if session, err := p.store.Load(ctx, target.Environment); err != nil {
		p.logger.Warn("token store read failed", zap.String("environment", string(target.Environment)), zap.Error(err))
	} else if session.Usable(p.now()) {
		return session.Token, nil
	}

	v, err, _ := p.group.Do(string(target.Environment), func() (interface{}, error) {
		return p.acquire(ctx, target)
	})
	if err != nil {
		return "", err
	}
	return v.(*domain.AuthSession).Token, nil
}

// Session returns the cached session of env, if any.
func (p *TokenProvider) Session(ctx context.Context, env domain.Environment) (*domain.AuthSession, error) {
	return p.store.Load(ctx, env)
}

// Invalidate drops token if it is still the cached one.
func (p *TokenProvider) Invalidate(ctx context.Context, env domain.Environment, token string) {
	if err := p.store.Clear(ctx, env, token); err != nil {
		p.logger.Warn("token store clear failed", zap.String("environment", string(env)), zap.Error(err))
	}
}

func (p *TokenProvider) acquire(ctx context.Context, target environment.Target) (*domain.AuthSession, error) {
	if session, err := p.store.Load(ctx, target.Environment); err == nil && session.Usable(p.now()) {
		return session, nil
	}

	token, err := p.exchanger.Login(ctx, target)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, &underwriting.AuthError{Environment: target.Environment}
	}

	now := p.now()
	session := &domain.AuthSession{Token: token, Environment: target.Environment, AcquiredAt: now}
	if exp, ok := upstreamExpiry(token); ok {
		session.ValidUntil = exp
	} else if p.validity > 0 {
		session.ValidUntil = now.Add(p.validity)
	}

	if err := p.store.Store(ctx, session); err != nil {
		p.logger.Warn("token store write failed", zap.String("environment", string(target.Environment)), zap.Error(err))
	}
	p.logger.Info("underwriting token acquired",
		zap.String("environment", string(target.Environment)),
		zap.Time("valid_until", session.ValidUntil),
	)
	return session, nil
}
