// Package utils provides helper functions for token creation and
// password hashing.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT plus its expiry. Access tokens are
// short-lived and sent in the Authorization header on rule-authoring
// endpoints.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs a token for an operator. Besides the standard
// sub/exp/iat claims it carries the operator's role and store so the
// command handlers know which store's rules the caller may touch without
// another lookup.
func NewAccessToken(secret, operatorID, storeID, role string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":      operatorID,
		"store_id": storeID,
		"role":     role,
		"exp":      exp.Unix(),
		"iat":      time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
