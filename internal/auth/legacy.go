package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const legacyIssuer = "reelforge-api"

// LegacyClaims are the claims of HMAC-signed tokens issued by this service
type LegacyClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// HMACVerifier validates and issues HMAC-signed tokens (development and service accounts)
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier returns nil when no secret is configured
func NewHMACVerifier(secret string) *HMACVerifier {
	if secret == "" {
		return nil
	}
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) IsConfigured() bool {
	return v != nil && len(v.secret) > 0
}

// Validate implements TokenVerifier
func (v *HMACVerifier) Validate(tokenString string) (*Identity, error) {
	claims := &LegacyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return &Identity{UserID: userID, Email: claims.Email}, nil
}

// Issue signs a token for userID that expires after ttl (no expiry when ttl is 0)
func (v *HMACVerifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := time.Now()
	claims := LegacyClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   legacyIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
