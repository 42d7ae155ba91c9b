package util

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
)

const SessionCookieName = "session_token"

// Sessions is an in-memory session token store. Created at service start
// and passed to whoever needs to turn a token into a user id.
type Sessions struct {
	mu     sync.RWMutex
	tokens map[string]int64
}

func NewSessions() *Sessions {
	return &Sessions{tokens: make(map[string]int64)}
}

// GenerateSessionToken creates a cryptographically secure random session token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Create creates a new session for the user and returns the session token.
func (s *Sessions) Create(userID int64) (string, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return token, nil
}

// UserID retrieves the user associated with a session token, 0 if invalid.
func (s *Sessions) UserID(token string) int64 {
	s.mu.RLock()
	userID, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return userID
}

// Delete removes a session from the store.
func (s *Sessions) Delete(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// UserIDFromRequest extracts the user id from the session cookie, 0 when the
// request carries no valid session.
func (s *Sessions) UserIDFromRequest(r *http.Request) (int64, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if err == http.ErrNoCookie {
			return 0, nil
		}
		return 0, err
	}
	return s.UserID(cookie.Value), nil
}
