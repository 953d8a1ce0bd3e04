// Package auth verifies actor access tokens and carries the actor in request contexts.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/hrygo/familycal/store"
)

const (
	// Issuer is the issuer of access tokens.
	Issuer = "familycal"
	// KeyID is the key id placed in the token header.
	KeyID = "v1"
	// AccessTokenAudienceName is the audience of actor access tokens.
	AccessTokenAudienceName = "actor.access-token"
)

// Actor is the authenticated identity a request acts for.
type Actor struct {
	UserID   int32
	FamilyID *int32
}

// Scope returns the event owner scope the actor reads and writes.
func (a Actor) Scope() store.OwnerScope {
	return store.OwnerScope{UserID: a.UserID, FamilyID: a.FamilyID}
}

// ClaimsMessage is the JWT payload of an access token.
type ClaimsMessage struct {
	FamilyID *int32 `json:"family_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an access token for actor. A zero expirationTime
// produces a token without expiry.
func GenerateAccessToken(actor Actor, expirationTime time.Time, secret []byte) (string, error) {
	registeredClaims := jwt.RegisteredClaims{
		Issuer:   Issuer,
		Audience: jwt.ClaimStrings{AccessTokenAudienceName},
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Subject:  fmt.Sprint(actor.UserID),
	}
	if !expirationTime.IsZero() {
		registeredClaims.ExpiresAt = jwt.NewNumericDate(expirationTime)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &ClaimsMessage{
		FamilyID:         actor.FamilyID,
		RegisteredClaims: registeredClaims,
	})
	token.Header["kid"] = KeyID

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// ParseAccessToken verifies tokenString and returns its actor.
func ParseAccessToken(tokenString string, secret []byte) (Actor, error) {
	claims := &ClaimsMessage{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Name {
			return nil, errors.Errorf("unexpected access token signing method=%v, expect %v", t.Header["alg"], jwt.SigningMethodHS256)
		}
		if kid, ok := t.Header["kid"].(string); ok && kid == KeyID {
			return secret, nil
		}
		return nil, errors.Errorf("unexpected access token kid=%v", t.Header["kid"])
	}, jwt.WithAudience(AccessTokenAudienceName), jwt.WithIssuer(Issuer))
	if err != nil {
		return Actor{}, errors.Wrap(err, "invalid access token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil || userID <= 0 {
		return Actor{}, errors.Errorf("invalid access token subject %q", claims.Subject)
	}
	return Actor{UserID: int32(userID), FamilyID: claims.FamilyID}, nil
}
