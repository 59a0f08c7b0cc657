// Package authgw stands in for the external Auth gateway named in spec
// §6.3: it implements only the JWT-validation middleware surface C3
// needs to extract a user_id, plus a TokenRefresher interface C4 can
// hook an auth-retry onto (no default implementation — token issuance
// and refresh stay out of scope). Adapted from the teacher's
// internal/auth/jwt.go, trimmed of the WorkOS/pgx-specific upstream IdP
// machinery that has no equivalent component in this spec.
package authgw

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

// CtxUserID is the request-context key the middleware stores the
// authenticated user id under.
const CtxUserID ctxKey = "notesync_uid"

// Config configures token validation. HS256Secret covers the dev/backend
// path; JWKSURL optionally enables RS256 validation against an upstream
// IdP, matching the teacher's two-mode design.
type Config struct {
	HS256Secret string
	DevMode     bool
	Issuer      string
	JWKSURL     string
	Audience    string
}

// TokenRefresher is the collaborator C4's request builder calls when a
// sync request comes back 401: exchange the refresh token for a fresh
// access token. No implementation ships here — spec §6.3 keeps token
// issuance/refresh out of scope — but the interface lets syncclient's
// retry hook be exercised against a test double.
type TokenRefresher interface {
	Refresh(ctx context.Context) (accessToken string, err error)
}

type jwksCache struct {
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	lastFetch  time.Time
	cacheTTL   time.Duration
	jwksURL    string
	httpClient *http.Client
}

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKSCache(url string) *jwksCache {
	return &jwksCache{
		keys:       make(map[string]*rsa.PublicKey),
		cacheTTL:   time.Hour,
		jwksURL:    url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *jwksCache) fetch(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && time.Since(c.lastFetch) < c.cacheTTL && len(c.keys) > 0 {
		return nil
	}

	resp, err := c.httpClient.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read jwks response: %w", err)
	}

	var parsed jwksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("parse jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range parsed.Keys {
		if k.Kty != "RSA" || k.Use != "sig" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 | int(b)
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: eInt}
	}
	if len(keys) == 0 {
		return errors.New("no valid RSA signing keys in jwks")
	}

	c.keys = keys
	c.lastFetch = time.Now()
	return nil
}

func (c *jwksCache) get(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	expired := time.Since(c.lastFetch) >= c.cacheTTL
	c.mu.RUnlock()
	if expired {
		if err := c.fetch(false); err != nil {
			log.Warn().Err(err).Msg("jwks refresh failed, using stale cache")
		}
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := c.fetch(true); err != nil {
		return nil, fmt.Errorf("fetch jwks for missing kid %s: %w", kid, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("kid %s not found in jwks", kid)
	}
	return key, nil
}

// ValidateToken validates a bearer token and returns its subject claim.
// Supports HS256 (dev/backend secret) and RS256 (upstream IdP via JWKS),
// same dual-mode split as the teacher's ValidateToken.
func ValidateToken(token string, cfg Config, jwks *jwksCache) (string, error) {
	if token == "" {
		return "", errors.New("token is empty")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA:
			if jwks == nil {
				return nil, errors.New("jwks not configured")
			}
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("missing kid in token header")
			}
			return jwks.get(kid)
		case *jwt.SigningMethodHMAC:
			if cfg.HS256Secret == "" {
				return nil, errors.New("hs256 secret not configured")
			}
			return []byte(cfg.HS256Secret), nil
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("jwt validation failed: %w", err)
	}

	if cfg.Issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != cfg.Issuer {
			return "", fmt.Errorf("invalid issuer: expected %s, got %v", cfg.Issuer, claims["iss"])
		}
	}
	if cfg.Audience != "" {
		if aud, ok := claims["aud"].(string); !ok || aud != cfg.Audience {
			return "", fmt.Errorf("invalid audience: expected %s, got %v", cfg.Audience, claims["aud"])
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing or invalid sub claim")
	}
	return sub, nil
}

// Middleware authenticates every request with a Bearer token (or, in
// DevMode, an X-Debug-Sub header when no token is present) and stores
// the resulting user id in the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	var jwks *jwksCache
	if cfg.JWKSURL != "" {
		jwks = newJWKSCache(cfg.JWKSURL)
		if err := jwks.fetch(false); err != nil {
			log.Warn().Err(err).Msg("jwks pre-fetch failed, will retry on first request")
		}
	}
	if cfg.DevMode {
		log.Warn().Msg("authgw: DevMode enabled, X-Debug-Sub bypasses JWT validation")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			sub := ""
			if cfg.DevMode && tok == "" {
				sub = r.Header.Get("X-Debug-Sub")
			}
			if tok != "" {
				var err error
				sub, err = ValidateToken(tok, cfg, jwks)
				if err != nil {
					log.Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}
			if sub == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id stashed by Middleware.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(CtxUserID).(string); ok {
		return v
	}
	return ""
}
