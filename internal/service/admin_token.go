package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminRole = "admin"

var ErrInvalidToken = errors.New("invalid token")

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminTokens issues and checks HS256 bearer tokens for admin endpoints.
type AdminTokens struct {
	secret []byte
	now    func() time.Time
}

func NewAdminTokens(secret string) *AdminTokens {
	return &AdminTokens{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for subject valid for ttl.
func (a *AdminTokens) Issue(subject string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := adminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse validates tokenString and returns its subject.
func (a *AdminTokens) Parse(tokenString string) (string, error) {
	var claims adminClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Role != adminRole {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
