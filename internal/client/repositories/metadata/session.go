package metadata

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

const (
	keyUserID       = "user_id"
	keyEmail        = "email"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// Session is what the CLI remembers about the signed-in user.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
}

// Active reports whether the session can still be refreshed.
func (s Session) Active() bool { return s.RefreshToken != "" }

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save replaces the stored session atomically.
func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewSQLiteRepository(tx)
		for k, v := range map[string]string{
			keyUserID:       sess.UserID,
			keyEmail:        sess.Email,
			keyAccessToken:  sess.AccessToken,
			keyRefreshToken: sess.RefreshToken,
		} {
			if err := r.Set(ctx, k, []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveTokens updates only the token pair, keeping the user fields.
func (s *SessionStore) SaveTokens(ctx context.Context, access, refresh string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewSQLiteRepository(tx)
		if err := r.Set(ctx, keyAccessToken, []byte(access)); err != nil {
			return err
		}
		return r.Set(ctx, keyRefreshToken, []byte(refresh))
	})
}

// Load returns the stored session; a never-saved session is the zero value.
func (s *SessionStore) Load(ctx context.Context) (Session, error) {
	r := NewSQLiteRepository(s.db)
	var sess Session
	for k, dst := range map[string]*string{
		keyUserID:       &sess.UserID,
		keyEmail:        &sess.Email,
		keyAccessToken:  &sess.AccessToken,
		keyRefreshToken: &sess.RefreshToken,
	} {
		v, err := r.Get(ctx, k)
		if err != nil {
			return Session{}, err
		}
		*dst = string(v)
	}
	return sess, nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewSQLiteRepository(tx)
		for _, k := range []string{keyUserID, keyEmail, keyAccessToken, keyRefreshToken} {
			if err := r.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
