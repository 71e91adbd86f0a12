package supabase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"med-minder/internal/ports/auth"
)

var (
	ErrTokenEmpty = errors.New("token is empty")
)

// Verifier implementa auth.AuthVerifier para tokens de Supabase.
// Si hay JWTSecret, valida el access token localmente (GoTrue firma HS256
// con el JWT secret del proyecto); si no, cae al lookup remoto vía Client.
type Verifier struct {
	jwtSecret string
	client    *Client
}

func NewVerifier(jwtSecret string, client *Client) *Verifier {
	return &Verifier{
		jwtSecret: strings.TrimSpace(jwtSecret),
		client:    client,
	}
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	if v.jwtSecret != "" {
		return v.verifyLocal(token)
	}
	if v.client.IsConfigured() {
		return v.client.GetUser(ctx, token)
	}
	return auth.Claims{}, ErrNotConfigured
}

func (v *Verifier) verifyLocal(token string) (auth.Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.jwtSecret), nil
	})
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return auth.Claims{}, ErrUnauthorized
	}

	// GoTrue pone el user id en sub.
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return auth.Claims{}, errors.New("token missing sub claim")
	}

	return auth.Claims{
		UserID: sub,
		Email:  strings.TrimSpace(claims.Email),
	}, nil
}
