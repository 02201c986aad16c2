package stubserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims are carried by both access and refresh tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func (t *tokenIssuer) issue(acc *account, typ string) (string, error) {
	ttl := t.accessTTL
	if typ == tokenRefresh {
		ttl = t.refreshTTL
	}
	now := t.now()
	claims := Claims{
		Email: acc.Email,
		Role:  string(acc.Role),
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   acc.ID,
			Issuer:    "medtrax-stub",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (t *tokenIssuer) pair(acc *account) (access, refresh string, err error) {
	if access, err = t.issue(acc, tokenAccess); err != nil {
		return "", "", err
	}
	if refresh, err = t.issue(acc, tokenRefresh); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// parse validates signature, expiry and token type.
func (t *tokenIssuer) parse(raw, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, errors.New("wrong token type")
	}
	return claims, nil
}
