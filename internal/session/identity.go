package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no access token is persisted.
var ErrNoToken = errors.New("no access token")

// TokenStore reads and writes the persisted access token. The value is either
// an oauth2.Token JSON blob or a bare JWT.
type TokenStore struct {
	store KeyStore
	key   string
}

func NewTokenStore(store KeyStore, key string) *TokenStore {
	if key == "" {
		key = "auth_token"
	}
	return &TokenStore{store: store, key: key}
}

// Save persists tok.
func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return s.store.Set(ctx, s.key, string(data))
}

// Load returns the persisted token.
func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	if s.store == nil {
		return nil, ErrNoToken
	}
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, ErrNoToken
	}

	tok := &oauth2.Token{}
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), tok); err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}
	} else {
		tok.AccessToken = raw
	}
	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if tok.Expiry.IsZero() {
		if claims, err := parseClaims(tok.AccessToken); err == nil {
			if exp, ok := claims["exp"].(float64); ok {
				tok.Expiry = time.Unix(int64(exp), 0)
			}
		}
	}
	return tok, nil
}

// Token implements oauth2.TokenSource over the persisted token, so a torn
// down session stops sending a bearer immediately.
func (s *TokenStore) Token() (*oauth2.Token, error) {
	return s.Load(context.Background())
}

// UserID returns the subject of the persisted JWT, or "" when unknown.
func (s *TokenStore) UserID(ctx context.Context) string {
	tok, err := s.Load(ctx)
	if err != nil {
		return ""
	}
	claims, err := parseClaims(tok.AccessToken)
	if err != nil {
		return ""
	}
	for _, k := range []string{"sub", "user_id", "uid"} {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// parseClaims reads claims without verifying the signature; the value is only
// used for diagnostics and expiry hints.
func parseClaims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
