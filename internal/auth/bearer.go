package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingAuthorization   = errors.New("auth: missing authorization header")
	ErrMalformedAuthorization = errors.New("auth: invalid authorization header")
)

const bearerPrefix = "bearer "

// AccessVerifier verifies access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*Claims, error)
}

// ParseBearer extracts the token of an "Authorization: Bearer <token>"
// header value.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingAuthorization
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrMalformedAuthorization
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedAuthorization
	}
	return token, nil
}

// VerifyBearer resolves the principal behind an Authorization header. It
// returns ErrMissingAuthorization, ErrMalformedAuthorization or
// ErrInvalidToken.
func VerifyBearer(v AccessVerifier, header string) (Principal, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return Principal{}, err
	}
	claims, err := v.VerifyAccess(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return claims.Principal(), nil
}
