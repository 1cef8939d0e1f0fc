package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("webhook: missing authorization token")
	ErrInvalidToken = errors.New("webhook: invalid token")
	ErrBodyMismatch = errors.New("webhook: body digest mismatch")
	ErrWrongIssuer  = errors.New("webhook: unexpected issuer")
)

// Verifier authenticates platform webhook deliveries.
//
// The platform signs each delivery with an HS256 JWT whose issuer is the API
// key and whose "sha256" claim is the hex digest of the request body, so a
// valid token binds the sender to this exact payload.
type Verifier struct {
	apiKey    string
	apiSecret []byte
}

func NewVerifier(apiKey, apiSecret string) (*Verifier, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("webhook: api key and secret are required")
	}
	return &Verifier{apiKey: apiKey, apiSecret: []byte(apiSecret)}, nil
}

type bodyClaims struct {
	SHA256 string `json:"sha256"`
	jwt.RegisteredClaims
}

// Verify checks the Authorization value against the raw body.
func (v *Verifier) Verify(authHeader string, body []byte) error {
	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if raw == "" {
		return ErrMissingToken
	}

	var claims bodyClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.apiSecret, nil
	})
	if err != nil || !tok.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if iss, _ := claims.GetIssuer(); iss != v.apiKey {
		return ErrWrongIssuer
	}

	sum := sha256.Sum256(body)
	if claims.SHA256 != hex.EncodeToString(sum[:]) {
		return ErrBodyMismatch
	}
	return nil
}
