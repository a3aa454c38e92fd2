// Package identity resolves session ids to user accounts. The core never
// reconstructs identity from ambient state; it consumes this interface.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"peerdrop/internal/server/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidSession = errors.New("invalid session id")

// Provider resolves a session to a user, creating the account on first
// contact.
type Provider interface {
	Resolve(ctx context.Context, sessionID, displayName string) (*database.User, error)
	NewSessionID() (string, error)
}

// Store is the subset of persistence the provider needs.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	CreateUser(ctx context.Context, u *database.User) error
}

// SessionProvider backs sessions with the user store. Each session id maps
// to a dedicated account named after it.
type SessionProvider struct {
	store      Store
	startingXP int64
	now        func() time.Time
}

// NewSessionProvider creates a session-backed identity provider.
// A nil clock defaults to time.Now.
func NewSessionProvider(store Store, startingXP int64, clock func() time.Time) *SessionProvider {
	if clock == nil {
		clock = time.Now
	}
	return &SessionProvider{store: store, startingXP: startingXP, now: clock}
}

const sessionIDLength = 16

// NewSessionID produces a fresh URL-safe session id.
func (p *SessionProvider) NewSessionID() (string, error) {
	return generateSecureToken(sessionIDLength)
}

// Resolve returns the user for a session id, creating one on first contact
// with the configured starting XP and zeroed counters.
func (p *SessionProvider) Resolve(ctx context.Context, sessionID, displayName string) (*database.User, error) {
	if !validSessionID(sessionID) {
		return nil, ErrInvalidSession
	}

	username := "user_" + sessionID
	user, err := p.store.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return nil, err
	}

	if displayName == "" {
		displayName = "Anonymous"
	}

	// Sessions carry no real credential; the account still gets a hash so
	// the schema holds if a login flow is added later.
	hash, err := bcrypt.GenerateFromPassword([]byte(sessionID), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash session credential: %w", err)
	}

	now := p.now().UTC()
	user = &database.User{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         displayName,
		Email:        username + "@peerdrop.local",
		PasswordHash: string(hash),
		XPPoints:     p.startingXP,
		CreatedAt:    now,
	}

	if err := p.store.CreateUser(ctx, user); err != nil {
		// Lost a race with another request for the same session.
		if existing, getErr := p.store.GetUserByUsername(ctx, username); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "user_id", user.ID, "username", username)
	return user, nil
}

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateSecureToken produces a cryptographically secure, URL-safe random string.
func generateSecureToken(length int) (string, error) {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenCharset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = tokenCharset[n.Int64()]
	}
	return string(result), nil
}

func validSessionID(id string) bool {
	if len(id) != sessionIDLength {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune(tokenCharset, c) {
			return false
		}
	}
	return true
}
