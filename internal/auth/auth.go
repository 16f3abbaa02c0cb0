// Package auth resolves opaque bearer tokens to identities before a
// connection is admitted to matchmaking.
package auth

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is what the rest of the subsystem knows about a user.
type Identity struct {
	UserID      string
	DisplayName string
}

// TokenSource is the storage lookup behind authentication.
type TokenSource interface {
	ResolveToken(ctx context.Context, token string) (userID, displayName string, err error)
}

type Service struct {
	tokens TokenSource
}

func NewService(tokens TokenSource) *Service {
	return &Service{tokens: tokens}
}

// Authenticate maps any lookup failure to ErrInvalidToken; callers
// never learn whether a token was unknown or merely expired.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	userID, name, err := s.tokens.ResolveToken(ctx, token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, DisplayName: name}, nil
}
