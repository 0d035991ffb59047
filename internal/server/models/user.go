// Package models defines server-side data models persisted in the database
// and the request payloads accepted by the session manager.
package models

import "time"

type User struct {
	ID              string
	UserName        string
	Email           string
	PasswordHash    string
	Bio             string
	ProfileImageURL string
	CreatedAt       time.Time
}

// UserView is what Self returns: everything except the password hash.
type UserView struct {
	ID              string    `json:"id"`
	UserName        string    `json:"userName"`
	Email           string    `json:"email"`
	Bio             string    `json:"bio,omitempty"`
	ProfileImageURL string    `json:"profileImage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (u *User) View() UserView {
	return UserView{
		ID:              u.ID,
		UserName:        u.UserName,
		Email:           u.Email,
		Bio:             u.Bio,
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       u.CreatedAt,
	}
}
