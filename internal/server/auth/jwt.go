// Package auth mints and verifies the access/refresh JWT pair and defines the
// typed identity that transports hand to the session manager.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind tells access tokens and refresh tokens apart. It travels in the "typ" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")
	ErrWrongKind = errors.New("token has wrong kind")
)

// Claims are the JWT payload for both token kinds. RecordID is set only on
// refresh tokens and names the server-side refresh record they are bound to.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Kind     Kind   `json:"typ"`
	RecordID string `json:"id,omitempty"`
}

// Subject is the identity a token pair is issued for.
type Subject struct {
	UserID string
	Email  string
}

// Keys holds the HMAC keys. They must differ so that a leaked access key
// cannot mint refresh tokens.
type Keys struct {
	Access  []byte
	Refresh []byte
}

type Options struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Signer is immutable after construction and safe for concurrent use.
type Signer struct {
	keys Keys
	opts Options
}

func NewSigner(keys Keys, opts Options) (*Signer, error) {
	if len(keys.Access) == 0 || len(keys.Refresh) == 0 {
		return nil, errors.New("signing keys must not be empty")
	}
	if string(keys.Access) == string(keys.Refresh) {
		return nil, errors.New("access and refresh signing keys must differ")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Signer{
		keys: Keys{
			Access:  append([]byte(nil), keys.Access...),
			Refresh: append([]byte(nil), keys.Refresh...),
		},
		opts: opts,
	}, nil
}

func (s *Signer) AccessTTL() time.Duration  { return s.opts.AccessTTL }
func (s *Signer) RefreshTTL() time.Duration { return s.opts.RefreshTTL }

func (s *Signer) IssueAccessToken(sub Subject) (string, error) {
	return s.issue(sub, KindAccess, "")
}

func (s *Signer) IssueRefreshToken(sub Subject, recordID string) (string, error) {
	if recordID == "" {
		return "", errors.New("refresh token needs a record id")
	}
	return s.issue(sub, KindRefresh, recordID)
}

func (s *Signer) issue(sub Subject, kind Kind, recordID string) (string, error) {
	now := s.opts.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			Issuer:    s.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl(kind))),
		},
		Email:    sub.Email,
		Kind:     kind,
		RecordID: recordID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key(kind))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return tokenString, nil
}

// Verify checks signature, expiry and kind. Errors are ErrExpired,
// ErrWrongKind or ErrMalformed.
func (s *Signer) Verify(tokenString string, expected Kind) (*Claims, error) {
	claims := &Claims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.opts.Now),
	}
	if s.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.opts.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		c, ok := t.Claims.(*Claims)
		if !ok {
			return nil, ErrMalformed
		}
		if c.Kind != expected {
			return nil, ErrWrongKind
		}
		return s.key(expected), nil
	}, parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, ErrWrongKind):
			return nil, ErrWrongKind
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrMalformed
	}
	if expected == KindRefresh && claims.RecordID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (s *Signer) key(kind Kind) []byte {
	if kind == KindRefresh {
		return s.keys.Refresh
	}
	return s.keys.Access
}

func (s *Signer) ttl(kind Kind) time.Duration {
	if kind == KindRefresh {
		return s.opts.RefreshTTL
	}
	return s.opts.AccessTTL
}
