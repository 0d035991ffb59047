package rpc

import "time"

type RegisterRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password []byte `json:"password"`
	Bio      string `json:"bio,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password []byte `json:"password"`
}

// SessionResponse answers Register, Login and Refresh. The tokens travel in
// response header metadata, not in the message.
type SessionResponse struct {
	UserID string `json:"id"`
}

type Empty struct{}

type UserResponse struct {
	ID              string    `json:"id"`
	UserName        string    `json:"userName"`
	Email           string    `json:"email"`
	Bio             string    `json:"bio,omitempty"`
	ProfileImageURL string    `json:"profileImage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
