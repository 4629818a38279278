package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
)

// MemoryRegistry keeps sessions for the lifetime of the process.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]entity.Session),
	}
}

func (that *MemoryRegistry) Create(_ context.Context, playerID string) (string, error) {
	token, err := pkg.GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[token] = entity.Session{Token: token, PlayerID: playerID}

	return token, nil
}

func (that *MemoryRegistry) AttachGame(_ context.Context, token, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[token]
	if !ok {
		return apperror.ErrInvalidSession
	}

	session.GameID = gameID
	that.sessions[token] = session

	return nil
}

func (that *MemoryRegistry) IsValid(_ context.Context, token string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.sessions[token]
	return ok
}

func (that *MemoryRegistry) Get(_ context.Context, token string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[token]
	if !ok {
		return nil, apperror.ErrInvalidSession
	}

	return &session, nil
}

// Remove - idempotent, removing an unknown token is not an error.
func (that *MemoryRegistry) Remove(_ context.Context, token string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, token)

	return nil
}

func (that *MemoryRegistry) RepointGame(_ context.Context, oldGameID, newGameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	for token, session := range that.sessions {
		if session.GameID == oldGameID {
			session.GameID = newGameID
			that.sessions[token] = session
		}
	}

	return nil
}
