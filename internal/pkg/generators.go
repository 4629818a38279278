package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const sessionTokenBytes = 32

// GenerateSessionToken - generates a new opaque session token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateID - generates a new identifier for players and games.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateConnectionID - generates an identifier for a websocket connection.
func GenerateConnectionID() string {
	return "conn_" + uuid.NewString()[:8]
}
