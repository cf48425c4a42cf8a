// Package auth implements session tokens and password hashing. A session
// token is a signed, time-limited JWT carrying the verified identity claims
// that the request guard attaches to the request context.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/server/models"
)

// Claims is the set of assertions carried by a session token. The standard
// Subject claim holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
}

// Identity is the verified caller decoded from a valid session token. It is
// the only channel through which downstream owner-scoping learns who is
// calling.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   models.Role
}

// GenerateToken mints an HS256-signed session token for the given user.
func GenerateToken(user *models.User, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of a session token and
// decodes its claims. Any verification failure yields common.ErrInvalidToken
// so the boundary reports one uniform authentication error.
func ParseToken(tokenString string, secretKey []byte) (*Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
