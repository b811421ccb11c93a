package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNotConfigured = errors.New("authentication not configured")
)

// Identity is the authenticated merchant behind a request
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// TokenVerifier validates a bearer token
type TokenVerifier interface {
	Validate(tokenString string) (*Identity, error)
}

type configurable interface {
	IsConfigured() bool
}

// Chain tries each verifier in order. The first one that accepts the token wins.
type Chain []TokenVerifier

// NewChain drops nil and unconfigured verifiers so optional ones can be passed
// unconditionally
func NewChain(verifiers ...TokenVerifier) Chain {
	var chain Chain
	for _, v := range verifiers {
		if v == nil {
			continue
		}
		if c, ok := v.(configurable); ok && !c.IsConfigured() {
			continue
		}
		chain = append(chain, v)
	}
	return chain
}

func (c Chain) Validate(tokenString string) (*Identity, error) {
	if len(c) == 0 {
		return nil, ErrNotConfigured
	}
	for _, v := range c {
		if id, err := v.Validate(tokenString); err == nil && id.UserID != "" {
			return id, nil
		}
	}
	return nil, ErrInvalidToken
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrMissingToken
	}
	return parts[1], nil
}
