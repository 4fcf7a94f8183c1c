package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var ErrInvalidToken = errors.New("invalid or missing access token")

const tokenTypeAccess = "access"

// Claims are the identity fields payroll reads from an access token.
type Claims struct {
	UserID string
	Role   string
}

type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	GenerateAccessToken(userID string, role string, ttl time.Duration) (token string, expiresAt int64, err error)
}

// JWTService verifies HS256 tokens issued by the identity service. Issuing is
// kept for tooling and tests.
type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(userID string, role string, ttl time.Duration) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(ttl).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id": userID,
		"role":    role,
		"type":    tokenTypeAccess,
		"exp":     expiresAt,
	})
	return tokenString, expiresAt, err
}

// ClaimsFromContext reads the verified access token placed in ctx by
// jwtauth.Verify.
func ClaimsFromContext(ctx context.Context) (Claims, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return Claims{}, ErrInvalidToken
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != tokenTypeAccess {
		return Claims{}, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Claims{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	return Claims{UserID: userID, Role: role}, nil
}
