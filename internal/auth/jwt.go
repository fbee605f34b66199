// Package auth authenticates the gateway's narrow admin surface (global
// kill-switch activate/deactivate, cross-workspace listings). Nothing in
// the webhook ingress or outbound send paths goes through this package:
// those are authenticated by provider signature and system-user token
// respectively (§6.1).
package auth

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

const ctxSubjectKey ctxKey = "admin_subject"

// JWTCfg holds the admin JWT authentication configuration. HS256Secret
// authenticates operator tooling directly; Issuer/JWKSURL optionally
// delegate to an upstream identity provider for RS256 tokens.
type JWTCfg struct {
	HS256Secret string
	DevMode     bool // allows X-Debug-Sub header; must only be set outside production
	Issuer      string
	JWKSURL     string
	Audience    string
}

type jwksCache struct {
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	lastFetch  time.Time
	cacheTTL   time.Duration
	jwksURL    string
	httpClient *http.Client
}

var globalJWKSCache *jwksCache

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

func (c *jwksCache) fetchJWKS(forceRefresh bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && time.Since(c.lastFetch) < c.cacheTTL && len(c.keys) > 0 {
		return nil
	}

	resp, err := c.httpClient.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || key.Use != "sig" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			log.Warn().Err(err).Str("kid", key.Kid).Msg("auth: failed to decode modulus")
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			log.Warn().Err(err).Str("kid", key.Kid).Msg("auth: failed to decode exponent")
			continue
		}
		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 | int(b)
		}
		keys[key.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: eInt}
	}
	if len(keys) == 0 {
		return errors.New("no valid RSA signing keys found in JWKS")
	}

	c.keys = keys
	c.lastFetch = time.Now()
	log.Info().Int("key_count", len(keys)).Msg("auth: refreshed JWKS cache")
	return nil
}

func (c *jwksCache) getPublicKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	expired := time.Since(c.lastFetch) >= c.cacheTTL
	c.mu.RUnlock()
	if expired {
		if err := c.fetchJWKS(false); err != nil {
			log.Warn().Err(err).Msg("auth: failed to refresh expired JWKS cache, using stale keys")
		}
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := c.fetchJWKS(true); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS for missing key %s: %w", kid, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key ID %s not found in JWKS even after refresh", kid)
}

// InitJWKSCache pre-fetches the upstream JWKS if one is configured. Safe
// to call once at startup; a no-op when JWKSURL is empty.
func InitJWKSCache(cfg JWTCfg) error {
	if cfg.JWKSURL == "" {
		return nil
	}
	if globalJWKSCache != nil {
		return nil
	}
	globalJWKSCache = &jwksCache{
		keys:       make(map[string]*rsa.PublicKey),
		cacheTTL:   1 * time.Hour,
		jwksURL:    cfg.JWKSURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if err := globalJWKSCache.fetchJWKS(false); err != nil {
		log.Warn().Err(err).Msg("auth: failed to pre-fetch JWKS (will retry on first request)")
		return err
	}
	log.Info().Str("jwks_url", cfg.JWKSURL).Msg("auth: upstream RS256 validation enabled")
	return nil
}

// ValidateToken validates an admin JWT and returns its subject claim.
// Supports RS256 (via the configured JWKS) and HS256 (via the shared
// secret) in the same call, mirroring the provider's dual-mode admin
// tooling.
func ValidateToken(tokenString string, cfg JWTCfg) (string, error) {
	if tokenString == "" {
		return "", errors.New("token is empty")
	}
	if cfg.JWKSURL != "" && globalJWKSCache == nil {
		return "", errors.New("JWKS cache not initialized")
	}

	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA:
			if globalJWKSCache == nil {
				return nil, errors.New("JWKS cache not initialized")
			}
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("missing kid in token header")
			}
			return globalJWKSCache.getPublicKey(kid)
		case *jwt.SigningMethodHMAC:
			if cfg.HS256Secret == "" {
				return nil, errors.New("HS256 secret not configured")
			}
			return []byte(cfg.HS256Secret), nil
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
	})
	if err != nil || !t.Valid {
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

// Middleware authenticates admin requests. In dev mode it additionally
// accepts X-Debug-Sub in place of a bearer token.
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	_ = InitJWKSCache(cfg)
	if cfg.DevMode {
		log.Warn().Msg("auth: SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
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
				sub, err = ValidateToken(tok, cfg)
				if err != nil {
					log.Warn().Err(err).Msg("auth: jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}
			if sub == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxSubjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject extracts the authenticated admin's subject claim from context.
func Subject(ctx context.Context) string {
	if v, ok := ctx.Value(ctxSubjectKey).(string); ok {
		return v
	}
	return ""
}
