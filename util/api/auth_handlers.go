package api

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"partyhub/models"
	"partyhub/util"
)

// AuthHandler is the thin auth collaborator: registration, login and logout.
// It supplies the identity that the push channel registers into presence.
type AuthHandler struct {
	DB       *sql.DB
	Sessions *util.Sessions
}

// Register handles user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		http.Error(w, "Error processing password", http.StatusInternalServerError)
		return
	}

	result, err := h.DB.Exec(`
		INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
	`, req.Username, string(hashedPassword), time.Now())
	if err != nil {
		log.Printf("Error inserting user: %v", err)
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	userID, err := result.LastInsertId()
	if err != nil {
		http.Error(w, "Failed to retrieve user ID", http.StatusInternalServerError)
		return
	}

	token, err := h.Sessions.Create(userID)
	if err != nil {
		log.Printf("Failed to create session for new user %d: %v", userID, err)
	} else {
		setSessionCookie(w, token)
		log.Printf("User %s (ID: %d) registered and session created.", req.Username, userID)
	}

	writeJSON(w, http.StatusCreated, models.UserResponse{ID: userID, Username: req.Username})
}

// Login handles user login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var userID int64
	var passwordHash string
	err := h.DB.QueryRow(`
		SELECT id, password_hash FROM users WHERE username = ? COLLATE NOCASE
	`, req.Username).Scan(&userID, &passwordHash)
	if err == sql.ErrNoRows {
		http.Error(w, "Invalid username or password", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("Error looking up user %q: %v", req.Username, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid username or password", http.StatusBadRequest)
		return
	}

	token, err := h.Sessions.Create(userID)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, token)

	writeJSON(w, http.StatusOK, models.UserResponse{ID: userID, Username: req.Username})
}

// Logout invalidates the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(util.SessionCookieName)
	if err == nil {
		h.Sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     util.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     util.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
