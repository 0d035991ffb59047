// Package services contains server-side business logic. SessionManager
// implements registration, login, refresh token rotation, identity lookup
// and logout on top of the user directory and the refresh token store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/blob"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/authkeeper/internal/server/services"

// Operation names used in spans, metrics and logs.
const (
	opRegister = "register"
	opLogin    = "login"
	opRefresh  = "refresh"
	opSelf     = "self"
	opLogout   = "logout"
)

var (
	errRecordGone   = errors.New("refresh record not found")
	errRecordStale  = errors.New("refresh record expired or owned by another user")
	errRotationLost = errors.New("refresh token was rotated by a concurrent request")
)

// TokenPair is the result of every operation that opens or rotates a session.
type TokenPair struct {
	UserID       string
	RecordID     string
	AccessToken  string
	RefreshToken string
}

// Revoker takes over refresh record deletions that failed on the request path.
type Revoker interface {
	Schedule(recordID string) bool
}

type Option func(*SessionManager)

// WithUploader enables profile images on Register.
func WithUploader(u blob.Uploader) Option { return func(s *SessionManager) { s.uploader = u } }

func WithLogger(l logging.Logger) Option { return func(s *SessionManager) { s.log = l } }

func WithAuditor(a audit.Emitter) Option { return func(s *SessionManager) { s.audit = a } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *SessionManager) { s.metrics = m } }

func WithRevoker(r Revoker) Option { return func(s *SessionManager) { s.revoker = r } }

// SessionManager is safe for concurrent use. It keeps no per-session state;
// the refresh token store is the only source of truth.
type SessionManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.Hasher
	signer      *auth.Signer
	uploader    blob.Uploader
	log         logging.Logger
	audit       audit.Emitter
	metrics     *metrics.Metrics
	revoker     Revoker
	tracer      trace.Tracer
	now         func() time.Time

	// dummyHash is verified against when the email is unknown so that both
	// login failure paths cost one hash comparison.
	dummyHash string
}

func NewSessionManager(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.Hasher, signer *auth.Signer, opts ...Option) (*SessionManager, error) {
	s := &SessionManager{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		signer:      signer,
		log:         logging.Nop{},
		audit:       audit.NopEmitter{},
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "session")

	dummy, err := hasher.Hash(common.GenerateRandByteArray(16))
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Register creates the user and opens the first session for it.
func (s *SessionManager) Register(ctx context.Context, req models.RegisterRequest) (pair *TokenPair, err error) {
	ctx, span := s.start(ctx, opRegister)
	ev := audit.Event{EventType: audit.EventRegister}
	defer func() { s.observe(ctx, span, opRegister, &ev, err) }()

	req.Normalize()
	ev.Email = req.Email
	if msg := req.Validate(); msg != "" {
		return nil, common.NewValidationError(msg)
	}

	if _, lookupErr := s.repomanager.Users(s.db).GetByEmail(ctx, req.Email); lookupErr == nil {
		return nil, common.NewValidationError(common.ErrEmailTaken.Error())
	} else if !errors.Is(lookupErr, common.ErrorNotFound) {
		return nil, common.NewUpstreamError("user lookup", lookupErr)
	}

	var imageURL string
	if req.ProfileImagePath != "" {
		if s.uploader == nil {
			return nil, common.NewUploadUnavailableError()
		}
		imageURL, err = s.uploader.Upload(ctx, req.ProfileImagePath)
		if err != nil {
			return nil, common.NewUpstreamError("profile image upload", err)
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, common.NewInternalError(err)
	}

	user := &models.User{
		UserName:        req.UserName,
		Email:           req.Email,
		PasswordHash:    hash,
		Bio:             req.Bio,
		ProfileImageURL: imageURL,
	}
	var record *models.RefreshToken
	transactional := s.repomanager.TransactionalRefreshTokens()
	create := func(ctx context.Context, db dbx.DBTX) error {
		u, err := s.repomanager.Users(db).Create(ctx, user)
		if err != nil {
			return err
		}
		user = u
		record, err = s.repomanager.RefreshTokens(db).Create(ctx, u.ID, s.signer.RefreshTTL())
		if err != nil && !transactional {
			// Outside a transaction the user row is already written; remove
			// it so the email can be registered again.
			if delErr := s.repomanager.Users(db).Delete(ctx, u.ID); delErr != nil {
				s.log.Error(ctx, "orphaned user after failed register", "user_id", u.ID, "error", delErr)
			}
		}
		return err
	}

	if transactional {
		err = dbx.WithTx(ctx, s.db, nil, create)
	} else {
		err = create(ctx, s.db)
	}
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, common.NewValidationError(common.ErrEmailTaken.Error())
		}
		return nil, common.NewUpstreamError("user store", err)
	}

	ev.UserID, ev.RecordID = user.ID, record.ID
	return s.issue(auth.Subject{UserID: user.ID, Email: user.Email}, record.ID)
}

// Login fails with the same InvalidCredentials error whether the email is
// unknown or the password is wrong.
func (s *SessionManager) Login(ctx context.Context, req models.LoginRequest) (pair *TokenPair, err error) {
	ctx, span := s.start(ctx, opLogin)
	ev := audit.Event{EventType: audit.EventLogin}
	defer func() { s.observe(ctx, span, opLogin, &ev, err) }()

	req.Normalize()
	ev.Email = req.Email
	if msg := req.Validate(); msg != "" {
		return nil, common.NewValidationError(msg)
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewUpstreamError("user lookup", err)
		}
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, common.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, common.NewInvalidCredentialsError()
	}
	ev.UserID = user.ID

	record, err := s.repomanager.RefreshTokens(s.db).Create(ctx, user.ID, s.signer.RefreshTTL())
	if err != nil {
		return nil, common.NewUpstreamError("refresh token store", err)
	}
	ev.RecordID = record.ID

	return s.issue(auth.Subject{UserID: user.ID, Email: user.Email}, record.ID)
}

// Refresh rotates the session bound to id.RecordID. The successor record is
// created first and the predecessor deleted second; the delete decides the
// outcome:
//   - it removed the record: rotation succeeded;
//   - it found nothing: a concurrent refresh already consumed the token, the
//     successor is dropped and the call fails TokenInvalid;
//   - it failed: the deletion is handed to the revoker and the call succeeds.
func (s *SessionManager) Refresh(ctx context.Context, id auth.Identity) (pair *TokenPair, err error) {
	ctx, span := s.start(ctx, opRefresh)
	ev := audit.Event{EventType: audit.EventRefresh, UserID: id.UserID, Email: id.Email, RecordID: id.RecordID}
	defer func() { s.observe(ctx, span, opRefresh, &ev, err) }()

	if id.Kind != auth.KindRefresh || id.RecordID == "" {
		return nil, common.NewTokenInvalidError(auth.ErrWrongKind)
	}

	store := s.repomanager.RefreshTokens(s.db)
	prev, err := store.FindByID(ctx, id.RecordID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewTokenInvalidError(errRecordGone)
		}
		return nil, common.NewUpstreamError("refresh token store", err)
	}
	if prev.UserID != id.UserID || prev.Expired(s.now()) {
		return nil, common.NewTokenInvalidError(errRecordStale)
	}

	next, err := store.Create(ctx, prev.UserID, s.signer.RefreshTTL())
	if err != nil {
		return nil, common.NewUpstreamError("refresh token store", err)
	}

	deleted, delErr := store.Delete(ctx, prev.ID)
	switch {
	case delErr != nil:
		s.deferRevoke(ctx, prev.ID, delErr)
	case !deleted:
		if _, err := store.Delete(ctx, next.ID); err != nil {
			s.deferRevoke(ctx, next.ID, err)
		}
		return nil, common.NewTokenInvalidError(errRotationLost)
	}

	ev.RecordID = next.ID
	return s.issue(auth.Subject{UserID: prev.UserID, Email: id.Email}, next.ID)
}

// Self returns the public projection of the user behind an access token.
func (s *SessionManager) Self(ctx context.Context, id auth.Identity) (view *models.UserView, err error) {
	ctx, span := s.start(ctx, opSelf)
	defer func() { s.observe(ctx, span, opSelf, nil, err) }()

	if id.Kind != auth.KindAccess {
		return nil, common.NewTokenInvalidError(auth.ErrWrongKind)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewTokenInvalidError(err)
		}
		return nil, common.NewUpstreamError("user lookup", err)
	}
	v := user.View()
	return &v, nil
}

// Logout revokes the session bound to id.RecordID. It is idempotent, and a
// failing store does not fail the call: the revoker retries the delete.
func (s *SessionManager) Logout(ctx context.Context, id auth.Identity) (err error) {
	ctx, span := s.start(ctx, opLogout)
	ev := audit.Event{EventType: audit.EventLogout, UserID: id.UserID, Email: id.Email, RecordID: id.RecordID}
	defer func() { s.observe(ctx, span, opLogout, &ev, err) }()

	if id.Kind != auth.KindRefresh || id.RecordID == "" {
		return common.NewTokenInvalidError(auth.ErrWrongKind)
	}

	if _, delErr := s.repomanager.RefreshTokens(s.db).Delete(ctx, id.RecordID); delErr != nil {
		s.deferRevoke(ctx, id.RecordID, delErr)
	}
	return nil
}

func (s *SessionManager) issue(sub auth.Subject, recordID string) (*TokenPair, error) {
	access, err := s.signer.IssueAccessToken(sub)
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	refresh, err := s.signer.IssueRefreshToken(sub, recordID)
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	return &TokenPair{
		UserID:       sub.UserID,
		RecordID:     recordID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *SessionManager) deferRevoke(ctx context.Context, recordID string, cause error) {
	s.log.Warn(ctx, "refresh record delete failed", "record_id", recordID, "error", cause)
	if s.revoker == nil || !s.revoker.Schedule(recordID) {
		s.log.Error(ctx, "refresh record delete could not be scheduled", "record_id", recordID)
		s.metrics.Revocation("unscheduled")
		return
	}
	s.audit.Emit(ctx, audit.Event{EventType: audit.EventRevoke, RecordID: recordID, Error: cause.Error()})
}

func (s *SessionManager) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "session."+op, trace.WithAttributes(attribute.String("session.op", op)))
}

// observe closes the span and records the outcome in metrics, the log and,
// when ev is non-nil, the audit stream.
func (s *SessionManager) observe(ctx context.Context, span trace.Span, op string, ev *audit.Event, err error) {
	defer span.End()

	result := metrics.ResultOK
	kind := common.KindOf(err)
	if err != nil {
		result = kind.String()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	s.metrics.SessionOp(op, result)

	switch {
	case err == nil:
		s.log.Info(ctx, "session operation", "op", op, "result", result)
	case kind == common.KindUpstreamFailure || kind == common.KindInternal:
		s.log.Error(ctx, "session operation failed", "op", op, "result", result, "error", err)
	default:
		s.log.Info(ctx, "session operation rejected", "op", op, "result", result)
	}

	if ev != nil {
		ev.Success = err == nil
		if err != nil {
			ev.Error = result
		}
		s.audit.Emit(ctx, *ev)
	}
}
