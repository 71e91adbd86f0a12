package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"med-minder/internal/platform/httpclient"
	"med-minder/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("supabase client not configured")
	ErrUnauthorized  = errors.New("supabase unauthorized")
	ErrUpstream      = errors.New("supabase upstream error")
)

// Config del cliente GoTrue.
// ProjectURL y AnonKey vienen de env vars en el servicio que lo instancie
// (SUPABASE_URL, SUPABASE_ANON_KEY).
type Config struct {
	ProjectURL string
	AnonKey    string

	// Timeout HTTP.
	Timeout time.Duration
}

// Client habla con el endpoint de auth de Supabase (GoTrue) para resolver
// un access token a su usuario. Alternativa remota a la verificación local
// de JWT del Verifier.
type Client struct {
	http    *httpclient.Client
	anonKey string
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.ProjectURL), "/")
	if base == "" {
		return &Client{}, nil
	}

	hc, err := httpclient.NewWithBaseURL(base, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    hc,
		anonKey: strings.TrimSpace(cfg.AnonKey),
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.anonKey != ""
}

// GetUser resuelve el access token contra GET /auth/v1/user.
func (c *Client) GetUser(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	headers := map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + token,
	}

	var out struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	err := c.http.DoJSON(ctx, http.MethodGet, "/auth/v1/user", headers, nil, &out)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return auth.Claims{}, ErrUnauthorized
			}
			return auth.Claims{}, fmt.Errorf("%w: status=%d", ErrUpstream, httpErr.StatusCode)
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	out.ID = strings.TrimSpace(out.ID)
	if out.ID == "" {
		return auth.Claims{}, errors.New("supabase response missing user id")
	}

	return auth.Claims{
		UserID: out.ID,
		Email:  strings.TrimSpace(out.Email),
	}, nil
}
