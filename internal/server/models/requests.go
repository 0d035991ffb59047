package models

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	MaxUserNameLen = 64
	MaxBioLen      = 500
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

// RegisterRequest carries the sign-up form. ProfileImagePath is a local file
// written by the transport; empty means no image.
type RegisterRequest struct {
	UserName         string
	Email            string
	Password         []byte
	Bio              string
	ProfileImagePath string
}

// Normalize trims the text fields and lower-cases the email.
func (r *RegisterRequest) Normalize() {
	r.UserName = strings.TrimSpace(r.UserName)
	r.Email = NormalizeEmail(r.Email)
	r.Bio = strings.TrimSpace(r.Bio)
}

// Validate returns the first violation found, or "" when the request is valid.
func (r *RegisterRequest) Validate() string {
	switch {
	case r.UserName == "":
		return "userName is required"
	case utf8.RuneCountInString(r.UserName) > MaxUserNameLen:
		return "userName must be at most 64 characters"
	}
	if msg := validateEmail(r.Email); msg != "" {
		return msg
	}
	if msg := validatePassword(r.Password); msg != "" {
		return msg
	}
	if utf8.RuneCountInString(r.Bio) > MaxBioLen {
		return "bio must be at most 500 characters"
	}
	return ""
}

type LoginRequest struct {
	Email    string
	Password []byte
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() string {
	if msg := validateEmail(r.Email); msg != "" {
		return msg
	}
	if len(r.Password) == 0 {
		return "password is required"
	}
	return ""
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "email is invalid"
	}
	return ""
}

func validatePassword(pw []byte) string {
	switch {
	case len(pw) == 0:
		return "password is required"
	case len(pw) > MaxPasswordBytes:
		return "password must be at most 72 bytes"
	}
	return ""
}
