package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

var ErrInvalidAccessToken = errors.New("invalid or expired access token")

// JWTClaims is what the platform auth service signs; Subject is the user id.
type JWTClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// AuthService verifies platform-issued access tokens. This service never logs
// users in; it only trusts HS256 tokens signed with the shared secret.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	SignAccessToken(userID uuid.UUID, name string, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	now          func() time.Time
}

func NewAuthService(jwtSecretKey string, baseLog *logger.Logger) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		now:          time.Now,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, ErrInvalidAccessToken
	}
	if len(as.jwtSecretKey) == 0 {
		return ctx, fmt.Errorf("%w: no signing secret configured", ErrInvalidAccessToken)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(as.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, ErrInvalidAccessToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, fmt.Errorf("%w: subject is not a user id", ErrInvalidAccessToken)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Name:        claims.Name,
	}), nil
}

// SignAccessToken mints a token the way the platform does; used by scormctl
// and tests.
func (as *authService) SignAccessToken(userID uuid.UUID, name string, ttl time.Duration) (string, error) {
	now := as.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecretKey)
}
