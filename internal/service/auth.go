package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mityansk/My-Books/internal/config"
	"github.com/mityansk/My-Books/internal/db"
	"github.com/mityansk/My-Books/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshCookieName = "my_books_refresh"
	minUsernameLength = 3
	minPasswordLength = 8
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTokenReused   = errors.New("refresh token reused")
	ErrMisconfigured = errors.New("auth config invalid")
)

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// AuthRepo is the persistence surface the auth service needs. *db.Postgres
// implements it; tests substitute fakes.
type AuthRepo interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	SetRefreshSession(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetRefreshSession(ctx context.Context, userID int64) (*model.RefreshSession, error)
	RotateRefreshSession(ctx context.Context, userID int64, oldTokenHash, newTokenHash string, newExpiresAt time.Time) (bool, error)
	ClearRefreshSession(ctx context.Context, userID int64) error
}

type AuthService struct {
	repo       AuthRepo
	codec      *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	cookieCfg  CookieConfig
}

func NewAuthService(repo AuthRepo, cfg config.AuthConfig) (*AuthService, error) {
	codec, err := NewTokenCodec([]byte(cfg.AccessSecret), []byte(cfg.RefreshSecret))
	if err != nil {
		return nil, err
	}

	accessTTL, err := time.ParseDuration(cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	return &AuthService{
		repo:       repo,
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cookieCfg: CookieConfig{
			Name:     refreshCookieName,
			Path:     cookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
			MaxAge:   int(refreshTTL.Seconds()),
		},
	}, nil
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

func (s *AuthService) SignUp(ctx context.Context, username, email, password string) (string, string, int64, *model.User, error) {
	if err := validateSignUp(username, email, password); err != nil {
		return "", "", 0, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", 0, nil, err
	}

	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(username), normalizeEmail(email), string(hash))
	if err != nil {
		if isUniqueViolation(err) {
			return "", "", 0, nil, ErrConflict
		}
		return "", "", 0, nil, err
	}

	accessToken, refreshToken, expiresIn, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return "", "", 0, nil, err
	}
	return accessToken, refreshToken, expiresIn, user, nil
}

// SignIn returns the same ErrUnauthorized for an unknown email and a wrong
// password, so responses cannot be used to enumerate accounts.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, string, int64, *model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", "", 0, nil, ErrInvalidInput
	}

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if db.IsNoRows(err) {
			return "", "", 0, nil, ErrUnauthorized
		}
		return "", "", 0, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", 0, nil, ErrUnauthorized
	}

	accessToken, refreshToken, expiresIn, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return "", "", 0, nil, err
	}
	return accessToken, refreshToken, expiresIn, user, nil
}

// Refresh rotates the presented refresh token. The stored session hash acts
// as a compare-and-swap guard: of two concurrent rotations against the same
// token exactly one lands, the other gets ErrTokenReused. A presented token
// that no longer matches the stored hash is a replay of a rotated-out token;
// the whole session is invalidated on detection.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, string, int64, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", "", 0, ErrUnauthorized
	}

	claims, err := s.codec.Decode(refreshToken, TokenClassRefresh)
	if err != nil {
		return "", "", 0, ErrUnauthorized
	}

	session, err := s.repo.GetRefreshSession(ctx, claims.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return "", "", 0, ErrUnauthorized
		}
		return "", "", 0, err
	}
	if time.Now().After(session.ExpiresAt) {
		return "", "", 0, ErrUnauthorized
	}

	presentedHash := hashToken(refreshToken)
	if presentedHash != session.TokenHash {
		_ = s.repo.ClearRefreshSession(ctx, claims.UserID)
		return "", "", 0, ErrTokenReused
	}

	newRefreshToken, _, err := s.codec.Encode(claims.UserID, TokenClassRefresh, s.refreshTTL)
	if err != nil {
		return "", "", 0, err
	}

	ok, err := s.repo.RotateRefreshSession(ctx, claims.UserID, presentedHash, hashToken(newRefreshToken), time.Now().Add(s.refreshTTL))
	if err != nil {
		return "", "", 0, err
	}
	if !ok {
		return "", "", 0, ErrTokenReused
	}

	accessToken, _, err := s.codec.Encode(claims.UserID, TokenClassAccess, s.accessTTL)
	if err != nil {
		return "", "", 0, err
	}

	return accessToken, newRefreshToken, int64(s.accessTTL.Seconds()), nil
}

// SignOut drops the server-side session record. Idempotent: an absent or
// unparseable cookie is not an error.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	claims, err := s.codec.Decode(refreshToken, TokenClassRefresh)
	if err != nil {
		return nil
	}
	return s.repo.ClearRefreshSession(ctx, claims.UserID)
}

func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims, err := s.codec.Decode(tokenStr, TokenClassAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return &model.AuthUser{ID: claims.UserID}, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, userID int64) (string, string, int64, error) {
	accessToken, _, err := s.codec.Encode(userID, TokenClassAccess, s.accessTTL)
	if err != nil {
		return "", "", 0, err
	}

	refreshToken, _, err := s.codec.Encode(userID, TokenClassRefresh, s.refreshTTL)
	if err != nil {
		return "", "", 0, err
	}

	if err := s.repo.SetRefreshSession(ctx, userID, hashToken(refreshToken), time.Now().Add(s.refreshTTL)); err != nil {
		return "", "", 0, err
	}

	return accessToken, refreshToken, int64(s.accessTTL.Seconds()), nil
}

func validateSignUp(username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if len(username) < minUsernameLength || len(username) > 64 {
		return ErrInvalidInput
	}
	if !strings.Contains(email, "@") || len(email) > 254 {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteLaxMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
