package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validRegister() RegisterRequest {
	return RegisterRequest{UserName: "alice", Email: "alice@example.com", Password: []byte("pw"), Bio: "hi"}
}

func TestRegisterRequest_Validate_FirstViolation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		want   string
	}{
		{"valid", func(r *RegisterRequest) {}, ""},
		{"no user name", func(r *RegisterRequest) { r.UserName = "" }, "userName is required"},
		{"long user name", func(r *RegisterRequest) { r.UserName = strings.Repeat("я", 65) }, "userName must be at most 64 characters"},
		{"no email", func(r *RegisterRequest) { r.Email = "" }, "email is required"},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, "email is invalid"},
		{"display name email", func(r *RegisterRequest) { r.Email = "Alice <alice@example.com>" }, "email is invalid"},
		{"no password", func(r *RegisterRequest) { r.Password = nil }, "password is required"},
		{"long password", func(r *RegisterRequest) { r.Password = []byte(strings.Repeat("a", 73)) }, "password must be at most 72 bytes"},
		{"long bio", func(r *RegisterRequest) { r.Bio = strings.Repeat("b", 501) }, "bio must be at most 500 characters"},
		{"two violations report the first", func(r *RegisterRequest) { r.UserName = ""; r.Email = "" }, "userName is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegister()
			tt.mutate(&r)
			assert.Equal(t, tt.want, r.Validate())
		})
	}
}

func TestRegisterRequest_Normalize(t *testing.T) {
	r := RegisterRequest{UserName: "  bob ", Email: "  Bob@Example.COM ", Bio: " x "}
	r.Normalize()
	assert.Equal(t, "bob", r.UserName)
	assert.Equal(t, "bob@example.com", r.Email)
	assert.Equal(t, "x", r.Bio)
}

func TestLoginRequest_Validate(t *testing.T) {
	r := LoginRequest{Email: " A@B.io", Password: []byte("x")}
	r.Normalize()
	assert.Equal(t, "", r.Validate())

	assert.Equal(t, "password is required", (&LoginRequest{Email: "a@b.io"}).Validate())
	assert.Equal(t, "email is required", (&LoginRequest{Password: []byte("x")}).Validate())
}

func TestUser_ViewOmitsHash(t *testing.T) {
	now := time.Now()
	u := &User{ID: "1", UserName: "n", Email: "e@x.io", PasswordHash: "$2a$...", Bio: "b", ProfileImageURL: "http://img", CreatedAt: now}
	v := u.View()
	assert.Equal(t, UserView{ID: "1", UserName: "n", Email: "e@x.io", Bio: "b", ProfileImageURL: "http://img", CreatedAt: now}, v)
}

func TestRefreshToken_Expired(t *testing.T) {
	now := time.Now()
	r := &RefreshToken{ExpiresAt: now}
	assert.True(t, r.Expired(now))
	assert.False(t, r.Expired(now.Add(-time.Second)))
}
