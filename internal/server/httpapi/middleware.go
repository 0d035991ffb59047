package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
)

// TokenVerifier is satisfied by *auth.Signer.
type TokenVerifier interface {
	Verify(token string, expected auth.Kind) (*auth.Claims, error)
}

var errMissingToken = errors.New("missing token")

// requireIdentity verifies the token of the given kind and stores the
// resulting auth.Identity in the request context. Access tokens come from
// the accessToken cookie or an Authorization: Bearer header; refresh tokens
// only from the refreshToken cookie.
func requireIdentity(v TokenVerifier, kind auth.Kind) func(http.Handler) http.Handler {
	return requireIdentityOr(v, kind, nil)
}

// requireIdentityOr is requireIdentity with a hook that runs before a 401
// is written, e.g. to expire cookies that can no longer authenticate.
func requireIdentityOr(v TokenVerifier, kind auth.Kind, onReject func(http.ResponseWriter)) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, err error) {
		if onReject != nil {
			onReject(w)
		}
		writeError(w, common.NewTokenInvalidError(err))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, kind)
			if token == "" {
				reject(w, errMissingToken)
				return
			}
			claims, err := v.Verify(token, kind)
			if err != nil {
				reject(w, err)
				return
			}
			ctx := auth.WithIdentity(r.Context(), auth.IdentityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request, kind auth.Kind) string {
	name := common.RefreshTokenCookieName
	if kind == auth.KindAccess {
		name = common.AccessTokenCookieName
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const requestIDHeader = "X-Request-ID"

// logRequests logs one line per request. A missing X-Request-ID is generated
// and echoed back so clients can correlate failures with server logs.
func logRequests(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID, _ = common.MakeRandHexString(8)
			}
			w.Header().Set(requestIDHeader, reqID)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", reqID,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := auth.IdentityFrom(ctx)
	return id
}
