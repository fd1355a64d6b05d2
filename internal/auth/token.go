package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// TokenManager issues and validates the bearer tokens handed to flow owners.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// FlowClaims binds a token to one flow and its environment.
type FlowClaims struct {
	FlowID      string             `json:"flow_id"`
	Environment domain.Environment `json:"env"`
	jwt.RegisteredClaims
}

// GenerateFlowToken signs a token granting access to flowID.
func (tm *TokenManager) GenerateFlowToken(flowID string, env domain.Environment) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &FlowClaims{
		FlowID:      flowID,
		Environment: env,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   flowID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseFlowToken validates and returns claims.
func (tm *TokenManager) ParseFlowToken(tokenStr string) (*FlowClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &FlowClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*FlowClaims)
	if !ok || !parsed.Valid || claims.FlowID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// upstreamExpiry reads the exp claim of an upstream token without verifying it.
// Opaque tokens report ok=false.
func upstreamExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
