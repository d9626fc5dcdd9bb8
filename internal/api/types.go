package api

import "time"

// TokenRequest asks for a user token
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// TokenResponse carries an issued user token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// ErrorResponse is the common error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
