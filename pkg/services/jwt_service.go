// Package services holds the operator token service guarding the run
// control endpoints.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "ai-marketing-team"

// JWTService handles JWT token generation and validation
type JWTService struct {
	secret          []byte
	tokenExpiration time.Duration
	now             func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string, expiration time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &JWTService{
		secret:          []byte(secret),
		tokenExpiration: expiration,
		now:             time.Now,
	}, nil
}

// Claims represents the JWT claims
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for an operator
func (s *JWTService) GenerateToken(operator string) (string, error) {
	if operator == "" {
		return "", errors.New("operator name is required")
	}
	now := s.now()
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the operator name
func (s *JWTService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.Operator, nil
	}

	return "", fmt.Errorf("invalid token claims")
}
