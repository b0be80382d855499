package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("the confirmation link is invalid or has expired")

// Token is the verified content of a confirmation or reset link.
type Token struct {
	UserID   uint
	NewEmail string
}

type tokenClaims struct {
	UserID   uint   `json:"user_id"`
	NewEmail string `json:"new_email,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens carried by confirmation and reset mails.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Generate(tok Token) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:   tok.UserID,
		NewEmail: tok.NewEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *Tokens) Verify(tokenStr string) (Token, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return Token{}, ErrInvalidToken
	}
	return Token{UserID: claims.UserID, NewEmail: claims.NewEmail}, nil
}
