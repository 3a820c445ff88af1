package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/model"
)

// Common auth errors.
var (
	ErrInvalidClientKey  = errors.New("invalid client key")
	ErrIssuanceDisabled  = errors.New("token issuance is disabled")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrUnknownTokenType  = errors.New("unknown token type")
	errInvalidClaims     = errors.New("invalid token claims")
	errUnexpectedSigning = errors.New("unexpected signing method")
)

// TokenType distinguishes learner vs author tokens.
type TokenType string

const (
	TokenTypeLearner TokenType = "learner"
	TokenTypeAuthor  TokenType = "author"
)

// authorPermissions are embedded in every author token.
var authorPermissions = model.PermissionStrings(model.AllPermissions)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      int       `json:"user_id"`
	Permissions []string  `json:"permissions,omitempty"` // Author only
}

// AuthService issues and validates JWTs. Tokens are handed to clients that
// prove possession of the shared client key; every issued token id is
// registered in Redis so it can be revoked before it expires.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService. rdb may be nil, in which case
// tokens are stateless and cannot be revoked.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// CheckClientKey compares a presented client key against the configured
// bcrypt hash.
func (s *AuthService) CheckClientKey(key string) error {
	if s.cfg.ClientKeyHash == "" {
		return ErrIssuanceDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.ClientKeyHash), []byte(key)); err != nil {
		return ErrInvalidClientKey
	}
	return nil
}

// IssueToken verifies the client key and issues a token for the subject.
func (s *AuthService) IssueToken(ctx context.Context, req model.TokenRequest) (string, *Claims, error) {
	if err := s.CheckClientKey(req.ClientKey); err != nil {
		return "", nil, err
	}

	switch TokenType(req.Role) {
	case TokenTypeLearner:
		return s.GenerateToken(ctx, TokenTypeLearner, req.SubjectID, nil)
	case TokenTypeAuthor:
		return s.GenerateToken(ctx, TokenTypeAuthor, req.SubjectID, authorPermissions)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownTokenType, req.Role)
	}
}

// GenerateToken signs a token and registers its id in Redis with the same
// expiry as the JWT.
func (s *AuthService) GenerateToken(ctx context.Context, typ TokenType, userID int, permissions []string) (string, *Claims, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:   typ,
		UserID:      userID,
		Permissions: permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, config.RedisKey.AuthToken(jti), userID, s.cfg.JWTExpiry).Err(); err != nil {
			return "", nil, fmt.Errorf("register token: %w", err)
		}
	}

	return signed, claims, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", errUnexpectedSigning, t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errInvalidClaims
	}

	return claims, nil
}

// CheckTokenActive reports ErrTokenRevoked when the token id is no longer
// registered.
func (s *AuthService) CheckTokenActive(ctx context.Context, jti string) error {
	if s.rdb == nil {
		return nil
	}
	n, err := s.rdb.Exists(ctx, config.RedisKey.AuthToken(jti)).Result()
	if err != nil {
		return fmt.Errorf("check token: %w", err)
	}
	if n == 0 {
		return ErrTokenRevoked
	}
	return nil
}

// RevokeToken removes a token id from the registry.
func (s *AuthService) RevokeToken(ctx context.Context, jti string) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, config.RedisKey.AuthToken(jti)).Err()
}
