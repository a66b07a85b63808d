package services

import (
	"context"
	"errors"
	"time"

	"factory-ops/config"
	"factory-ops/internal/domain/user"
	"factory-ops/internal/repository"
	apperrors "factory-ops/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService verifies bearer credentials. Issuance and account management
// belong to the workforce API; IssueAccessToken exists for dev tooling.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	ttl := time.Duration(cfg.JWTExpiryMin) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: ttl,
		now:       time.Now,
	}
}

type AccessClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, apperrors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return AccessClaims{}, apperrors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, apperrors.ErrUnauthorized
	}

	return *claims, nil
}

// AuthenticateToken resolves a bearer token to an active user. Every failure
// collapses to ErrUnauthorized so callers cannot tell a bad signature from a
// suspended account.
func (s *AuthService) AuthenticateToken(ctx context.Context, tokenString string) (user.User, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return user.User{}, err
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return user.User{}, apperrors.ErrUnauthorized
	}

	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return user.User{}, apperrors.ErrUnauthorized
		}
		return user.User{}, err
	}
	if !u.IsActive() {
		return user.User{}, apperrors.ErrUnauthorized
	}
	return u, nil
}

func (s *AuthService) IssueAccessToken(userID uuid.UUID) (string, int64, error) {
	now := s.now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}
