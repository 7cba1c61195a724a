package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"casedesk/api/internal/auth"
	"casedesk/api/internal/authpw"
	"casedesk/api/internal/casehistory"
	"casedesk/api/internal/config"
	"casedesk/api/internal/dashcache"
	"casedesk/api/internal/export"
	"casedesk/api/internal/rbac"
	"casedesk/api/internal/search"
	"casedesk/api/internal/session"
	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

const twoFactorChallengeTTL = 5 * time.Minute

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	TwoFactor    bool
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(context.Context) error
	GetUserByID(context.Context, string) (store.User, error)
	ApplyReferenceSeed(context.Context, store.ReferenceSeed) error

	ListCaseTypes(context.Context) ([]store.CaseType, error)
	GetCaseType(context.Context, string) (store.CaseType, error)
	InsertCaseType(context.Context, store.CaseType) error
	UpdateCaseType(context.Context, store.CaseType) error
	DeleteCaseType(context.Context, string) error
	ListStatuses(context.Context) ([]store.Status, error)
	GetStatus(context.Context, string) (store.Status, error)
	InsertStatus(context.Context, store.Status) error
	UpdateStatus(context.Context, store.Status) error
	DeleteStatus(context.Context, string) error
	ListTags(context.Context) ([]store.Tag, error)
	GetTag(context.Context, string) (store.Tag, error)
	InsertTag(context.Context, store.Tag) error
	UpdateTag(context.Context, store.Tag) error
	DeleteTag(context.Context, string) error

	SearchIndividuals(context.Context, string, int, int) ([]store.Individual, int, error)
	GetIndividual(context.Context, string) (store.Individual, error)
	InsertIndividual(context.Context, store.Individual) error
	UpdateIndividual(context.Context, store.Individual) error
	DeleteIndividual(context.Context, string) error
	SearchLegalEntities(context.Context, string, int, int) ([]store.LegalEntity, int, error)
	GetLegalEntity(context.Context, string) (store.LegalEntity, error)
	InsertLegalEntity(context.Context, store.LegalEntity) error
	UpdateLegalEntity(context.Context, store.LegalEntity) error
	DeleteLegalEntity(context.Context, string) error

	SearchCases(context.Context, store.CaseFilter) ([]store.LegalCase, int, error)
	GetCase(context.Context, string) (store.LegalCase, error)
	GetCaseDetail(context.Context, string) (store.CaseDetail, error)
	ExistsCode(context.Context, string, string) (bool, error)
	InsertCase(context.Context, store.LegalCase, store.CaseLinks) error
	UpdateCase(context.Context, store.LegalCase, store.CaseLinks) error
	DeleteCase(context.Context, string) error

	ListDeadlinesByCase(context.Context, string) ([]store.Deadline, error)
	ListUpcomingDeadlines(context.Context, time.Time, time.Time) ([]store.Deadline, error)
	ListOverdueDeadlines(context.Context, time.Time) ([]store.Deadline, error)
	GetDeadline(context.Context, string) (store.Deadline, error)
	InsertDeadline(context.Context, store.Deadline) error
	UpdateDeadline(context.Context, store.Deadline) error
	CompleteDeadline(context.Context, string, bool) error
	DeleteDeadline(context.Context, string) error

	ListMediaByCase(context.Context, string) ([]store.Media, error)
	GetMedia(context.Context, string) (store.Media, error)
	InsertMedia(context.Context, store.Media) error
	DeleteMedia(context.Context, string) error
	SetMediaTags(context.Context, string, []string) error

	ListTodoLists(context.Context, string) ([]store.TodoList, error)
	InsertTodoList(context.Context, store.TodoList) error
	RenameTodoList(context.Context, string, string, string) error
	DeleteTodoList(context.Context, string, string) error
	InsertTodo(context.Context, string, store.Todo) (store.Todo, error)
	UpdateTodo(context.Context, string, store.Todo) (store.Todo, error)
	ToggleTodo(context.Context, string, string) (bool, error)
	DeleteTodo(context.Context, string, string) error

	dashcache.Source
}

type historyService interface {
	Record(caseID string, snap casehistory.Snapshot, author, message string) (casehistory.Commit, bool, error)
	History(caseID string, limit int) ([]casehistory.Commit, error)
	SnapshotAt(caseID, hash string) (casehistory.Snapshot, casehistory.Commit, error)
	Remove(caseID string) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexCase(r search.CaseRecord)
	IndexIndividual(r search.IndividualRecord)
	IndexLegalEntity(r search.LegalEntityRecord)
	Delete(kind search.ResultType, id string)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type objectStore interface {
	Bucket() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
}

// Dependencies wires the optional collaborators of the service. Store,
// Sessions and Auth are required; a nil Search, Objects or Exporter turns the
// matching endpoints into 503 responses.
type Dependencies struct {
	Store     dataStore
	Sessions  session.Store
	Auth      *authpw.Service
	Mailer    mailer
	Search    searchService
	History   historyService
	Exporter  exporter
	Objects   objectStore
	Dashboard *dashcache.Cache
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	auth      *authpw.Service
	mailer    mailer
	search    searchService
	history   historyService
	exporter  exporter
	objects   objectStore
	dashboard *dashcache.Cache
	logger    *zap.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func New(cfg config.Config, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		auth:      deps.Auth,
		mailer:    deps.Mailer,
		search:    deps.Search,
		history:   deps.History,
		exporter:  deps.Exporter,
		objects:   deps.Objects,
		dashboard: deps.Dashboard,
		logger:    logger,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// Bootstrap loads the reference seed into empty tables. A missing seed file
// is not an error.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.SeedFile == "" {
		return nil
	}
	seed, err := store.LoadReferenceSeed(s.cfg.SeedFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("no reference seed file", zap.String("path", s.cfg.SeedFile))
			return nil
		}
		return err
	}
	return s.store.ApplyReferenceSeed(ctx, seed)
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.auth
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is
// issued for the user's current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.ConsumeRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return s.CreateSession(ctx, userID)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         string(rbac.Normalize(user.Role)),
		TwoFactor:    user.TOTPEnabled,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken authenticates an access token. Two-factor challenge tokens
// and revoked tokens are rejected.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if claims.Purpose != "" {
		return Session{}, auth.ErrInvalidToken
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      string(rbac.Normalize(user.Role)),
		TwoFactor: user.TOTPEnabled,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token", zap.String("user_id", sess.UserID), zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session", zap.Error(err))
		}
	}
	return nil
}

// IssueTwoFactorChallenge returns a short-lived token proving the password
// step of a sign-in. It is not accepted as an access token.
func (s *Service) IssueTwoFactorChallenge(user store.User) (string, error) {
	return auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:     user.ID,
		Name:    user.DisplayName,
		Role:    user.Role,
		JTI:     util.NewID("chl"),
		Purpose: auth.PurposeTwoFactor,
		Exp:     s.now().Add(twoFactorChallengeTTL).Unix(),
	})
}

// CompleteTwoFactor exchanges a challenge token and a current TOTP code for a
// session.
func (s *Service) CompleteTwoFactor(ctx context.Context, challenge, code string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), challenge)
	if err != nil {
		return Session{}, err
	}
	if claims.Purpose != auth.PurposeTwoFactor {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.auth.VerifyCode(ctx, claims.Sub, code); err != nil {
		return Session{}, err
	}
	return s.CreateSession(ctx, claims.Sub)
}

// SendVerification mails the verification link when SMTP is configured. It
// reports whether an email went out.
func (s *Service) SendVerification(user store.User, token string) bool {
	if !s.SMTPConfigured() || token == "" {
		return false
	}
	link := strings.TrimRight(s.cfg.AppURL, "/") + "/verify-email?token=" + token
	if err := s.mailer.SendVerificationEmail(user.Email, user.DisplayName, link); err != nil {
		s.logger.Warn("send verification email", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) SendPasswordReset(user store.User, token string) bool {
	if !s.SMTPConfigured() || token == "" {
		return false
	}
	link := strings.TrimRight(s.cfg.AppURL, "/") + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.DisplayName, link); err != nil {
		s.logger.Warn("send password reset email", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	return true
}

// afterWrite drops the cached dashboard summary. It runs after every
// successful write that can move a dashboard number.
func (s *Service) afterWrite(ctx context.Context) {
	s.dashboard.Invalidate(ctx)
}
