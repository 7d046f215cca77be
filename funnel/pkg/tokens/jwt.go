// Package tokens issues and checks the bearer tokens that guard the
// operator admin API.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Roles.
const (
	RoleAdmin  = "ADMIN"
	RoleSeller = "SELLER"
)

const issuer = "leadpixel-funnel"

// DefaultTTL is the lifetime of minted tokens.
const DefaultTTL = 12 * time.Hour

type Claims struct {
	Role       string `json:"role"`
	OperatorID string `json:"operator_id,omitempty"`
	jwt.RegisteredClaims
}

// CanManage reports whether the holder may act on operatorID's data.
func (c *Claims) CanManage(operatorID string) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleSeller:
		return c.OperatorID != "" && c.OperatorID == operatorID
	}
	return false
}

type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenGenerator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs a token for subject. Sellers must carry an operator id.
func (tg *TokenGenerator) Generate(subject, role, operatorID string) (string, error) {
	switch role {
	case RoleAdmin:
	case RoleSeller:
		if operatorID == "" {
			return "", fmt.Errorf("seller token requires an operator id")
		}
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := tg.now()
	claims := Claims{
		Role:       role,
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tg.secret)
}

func (tg *TokenGenerator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(tg.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
