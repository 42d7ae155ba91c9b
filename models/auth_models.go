package models

import "time"

// RegisterRequest defines the structure for the registration request body.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest defines the structure for the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse defines the structure for the user data returned after registration/login.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// User represents a user row. The hash never leaves the process.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
