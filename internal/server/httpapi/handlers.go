package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// Sessions is the session manager as seen by the transport.
type Sessions interface {
	Register(ctx context.Context, req models.RegisterRequest) (*services.TokenPair, error)
	Login(ctx context.Context, req models.LoginRequest) (*services.TokenPair, error)
	Refresh(ctx context.Context, id auth.Identity) (*services.TokenPair, error)
	Self(ctx context.Context, id auth.Identity) (*models.UserView, error)
	Logout(ctx context.Context, id auth.Identity) error
}

const (
	defaultMaxUploadBytes = 5 << 20
	profileImageField     = "profileImage"
)

type sessionResponse struct {
	ID string `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerBody struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handler adapts HTTP requests to session operations and carries the
// resulting tokens in cookies.
type Handler struct {
	sessions       Sessions
	cookies        CookieConfig
	log            logging.Logger
	maxUploadBytes int64
}

// Register accepts multipart/form-data (with an optional profileImage file)
// or a JSON body without an image.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, common.KindValidation, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		req = models.RegisterRequest{
			UserName: r.FormValue("userName"),
			Email:    r.FormValue("email"),
			Password: []byte(r.FormValue("password")),
			Bio:      r.FormValue("bio"),
		}

		path, err := h.saveUpload(r)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, common.KindValidation, err.Error())
			return
		}
		if path != "" {
			defer os.Remove(path)
			req.ProfileImagePath = path
		}
	} else {
		var body registerBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, common.KindValidation, "invalid request body")
			return
		}
		req = models.RegisterRequest{
			UserName: body.UserName,
			Email:    body.Email,
			Password: []byte(body.Password),
			Bio:      body.Bio,
		}
	}

	pair, err := h.sessions.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cookies.setTokens(w, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: pair.UserID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, common.KindValidation, "invalid request body")
		return
	}

	pair, err := h.sessions.Login(r.Context(), models.LoginRequest{Email: body.Email, Password: []byte(body.Password)})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cookies.setTokens(w, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, sessionResponse{ID: pair.UserID})
}

func (h *Handler) Self(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Self(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.sessions.Refresh(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cookies.setTokens(w, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, messageResponse{Message: "tokens refreshed"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), identityFrom(r.Context())); err != nil {
		if common.KindOf(err) == common.KindTokenInvalid {
			h.cookies.clearTokens(w)
		}
		writeError(w, err)
		return
	}
	h.cookies.clearTokens(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// saveUpload copies the profileImage part to a temp file and returns its
// path, or "" when no file was sent. The caller removes the file.
func (h *Handler) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile(profileImageField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("invalid %s upload", profileImageField)
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return "", fmt.Errorf("%s must be at most %d bytes", profileImageField, h.maxUploadBytes)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "authkeeper-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("could not store %s", profileImageField)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("could not store %s", profileImageField)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("could not store %s", profileImageField)
	}
	return tmp.Name(), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
