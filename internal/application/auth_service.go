package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
)

// AuthService guards the API with a single account whose password is stored
// as an argon2id hash.
type AuthService struct {
	username string
	hash     PasswordHash
	logger   *slog.Logger
}

// NewAuthService parses the configured hash and returns an AuthService for
// username.
func NewAuthService(username, encodedHash string, logger *slog.Logger) (*AuthService, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("auth username is required")
	}
	hash, err := ParsePasswordHash(encodedHash)
	if err != nil {
		return nil, fmt.Errorf("parse auth password hash: %w", err)
	}
	return &AuthService{username: username, hash: hash, logger: defaultLogger(logger)}, nil
}

// Authenticate returns ErrInvalidCredentials unless both username and
// password match. The key derivation runs even for unknown usernames.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}

	userMatches := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordMatches := s.hash.Matches(password)
	if userMatches && passwordMatches {
		return nil
	}

	serviceLogger(ctx, s.logger, "AuthService", "Authenticate").
		WarnContext(ctx, "authentication failed", "error_kind", ErrorKind(ErrInvalidCredentials))
	return ErrInvalidCredentials
}
