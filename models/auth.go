package models

import "time"

// AuthRequest is the body of login and register.
type AuthRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthUser is the identity carried by a bearer token.
type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      AuthUser  `json:"user"`
}
