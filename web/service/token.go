package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database/model"
)

const tokenIssuer = "taskboard"

type TokenKind string

const (
	AccessKind  TokenKind = "access"
	RefreshKind TokenKind = "refresh"
)

// ErrInvalidToken covers bad signatures, foreign algorithms, the wrong token
// kind and expiry alike.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by both token kinds.
type Claims struct {
	UserID uint       `json:"uid"`
	Role   model.Role `json:"role"`
	Kind   TokenKind  `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens. The two kinds use
// distinct secrets so one can never be replayed as the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(cfg *config.ServerConfig) (*TokenService, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("%w: token secrets must be set", config.ErrMissingConfig)
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) secret(kind TokenKind) []byte {
	if kind == RefreshKind {
		return s.refreshSecret
	}
	return s.accessSecret
}

func (s *TokenService) issue(userID uint, role model.Role, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// IssueAccess returns a signed access token for the user.
func (s *TokenService) IssueAccess(userID uint, role model.Role) (string, error) {
	signed, _, err := s.issue(userID, role, AccessKind, s.accessTTL)
	return signed, err
}

// IssueRefresh returns a signed refresh token and the moment it expires.
func (s *TokenService) IssueRefresh(userID uint, role model.Role) (string, time.Time, error) {
	return s.issue(userID, role, RefreshKind, s.refreshTTL)
}

// Verify checks the token against the secret of kind and returns its claims.
func (s *TokenService) Verify(token string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
