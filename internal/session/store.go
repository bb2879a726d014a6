// Package session issues and validates the opaque bearer tokens behind
// the management API. Tokens carry no embedded structure; validity is
// always looked up centrally, so logout revokes immediately.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/org/dusseldorf/internal/storage"
	"github.com/org/dusseldorf/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const tokenPrefix = "dssl_"

// ErrBadCredentials is returned by Login on an unknown user or wrong password.
var ErrBadCredentials = errors.New("incorrect username or password")

// ErrNotFound is returned by Validate for a token with no backing session.
var ErrNotFound = errors.New("invalid session")

// ErrExpired is returned by Validate for a session past its expiry.
// The expired session is deleted as a side effect, so a second
// validation of the same token reports ErrNotFound.
var ErrExpired = errors.New("session expired")

// Storage is the slice of the storage backend the session store needs.
type Storage interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	InsertSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

// Store mints and validates sessions.
type Store struct {
	store Storage
	ttl   time.Duration
}

// NewStore creates a session Store. ttl is the configured expiry window
// for new sessions.
func NewStore(store Storage, ttl time.Duration) *Store {
	return &Store{store: store, ttl: ttl}
}

// Login authenticates the credentials and mints a session. The returned
// plaintext token is shown once; only its hash is persisted.
func (s *Store) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrBadCredentials
	}

	plaintext, err := generateToken()
	if err != nil {
		return "", err
	}
	sess := &models.Session{
		TokenHash: HashToken(plaintext),
		Username:  user.Username,
		Email:     user.Email,
		FullName:  user.FullName,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}
	return plaintext, nil
}

// Validate resolves a plaintext token to an Actor.
//
// Expiry is reported distinctly from not-found, and an expired session
// is deleted on first access. The owning user is re-checked on every
// call: sessions of deleted users are invalid immediately, and roles
// are always read from the current user record rather than the session.
func (s *Store) Validate(ctx context.Context, plaintext string) (*models.Actor, error) {
	sess, err := s.store.GetSession(ctx, HashToken(plaintext))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.IsExpired() {
		// Deletion is idempotent; concurrent double-validation of an
		// expired token must not error.
		if err := s.store.DeleteSession(ctx, sess.TokenHash); err != nil {
			log.Warn().Err(err).Msg("deleting expired session")
		}
		return nil, ErrExpired
	}

	user, err := s.store.GetUser(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &models.Actor{
		Username: user.Username,
		Email:    user.Email,
		Name:     user.FullName,
		Roles:    user.Roles,
	}, nil
}

// Logout deletes exactly the presented token's session.
func (s *Store) Logout(ctx context.Context, plaintext string) error {
	return s.store.DeleteSession(ctx, HashToken(plaintext))
}

// HashToken returns the SHA-256 hex hash of a plaintext token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// HashPassword returns the bcrypt digest of a password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}
