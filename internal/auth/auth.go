// Package auth resolves the authenticated user from a request's bearer
// token. Authentication is optional: anonymous carts are keyed by session
// id, so a missing token is not an error.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"kitchencart/internal/model"
)

// Verifier validates HS256 bearer tokens issued by the ordering platform
// and extracts the user id claim.
type Verifier struct {
	secret []byte
}

// New creates a verifier for the given signing secret.
func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// UserID returns the authenticated user id for the request, or "" when
// no Authorization header is present. A header that is present but
// invalid (bad signature, expired, wrong algorithm, missing claim) is an
// error rather than a silent downgrade to anonymous.
func (v *Verifier) UserID(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", nil
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", model.NewUnauthorizedError("authorization header must use the Bearer scheme")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", model.NewUnauthorizedError("invalid bearer token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", model.NewUnauthorizedError("invalid bearer token")
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return "", model.NewUnauthorizedError("bearer token missing userId claim")
	}
	return userID, nil
}
