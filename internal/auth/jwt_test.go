package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type mockJWKSServer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	kid        string
}

func newMockJWKSServer() (*mockJWKSServer, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &mockJWKSServer{privateKey: privateKey, publicKey: &privateKey.PublicKey, kid: "test-key-id"}, nil
}

func (m *mockJWKSServer) issueToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.kid
	return token.SignedString(m.privateKey)
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func TestValidateToken_HS256_Valid(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "shared-secret"}
	claims := jwt.MapClaims{
		"sub": "admin-1",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sub, err := ValidateToken(tokenString, cfg)
	if err != nil {
		t.Fatalf("expected valid token, got error: %v", err)
	}
	if sub != "admin-1" {
		t.Errorf("expected sub=admin-1, got %s", sub)
	}
}

func TestValidateToken_HS256_WrongSecret(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "shared-secret"}
	claims := jwt.MapClaims{"sub": "admin-1", "exp": time.Now().Add(1 * time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken(tokenString, cfg); err == nil {
		t.Fatal("expected rejection for token signed with wrong secret")
	}
}

func TestValidateToken_RS256_Valid(t *testing.T) {
	server, err := newMockJWKSServer()
	if err != nil {
		t.Fatalf("mock jwks: %v", err)
	}
	globalJWKSCache = &jwksCache{
		keys:      map[string]*rsa.PublicKey{server.kid: server.publicKey},
		lastFetch: time.Now(),
		cacheTTL:  time.Hour,
	}
	defer func() { globalJWKSCache = nil }()

	cfg := JWTCfg{JWKSURL: "https://idp.example/.well-known/jwks.json", Issuer: "https://idp.example"}
	claims := jwt.MapClaims{
		"sub": "admin-2",
		"iss": "https://idp.example",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}
	tokenString, err := server.issueToken(claims)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sub, err := ValidateToken(tokenString, cfg)
	if err != nil {
		t.Fatalf("expected valid token, got error: %v", err)
	}
	if sub != "admin-2" {
		t.Errorf("expected sub=admin-2, got %s", sub)
	}
}

func TestValidateToken_RS256_WrongIssuer(t *testing.T) {
	server, err := newMockJWKSServer()
	if err != nil {
		t.Fatalf("mock jwks: %v", err)
	}
	globalJWKSCache = &jwksCache{
		keys:      map[string]*rsa.PublicKey{server.kid: server.publicKey},
		lastFetch: time.Now(),
		cacheTTL:  time.Hour,
	}
	defer func() { globalJWKSCache = nil }()

	cfg := JWTCfg{JWKSURL: "https://idp.example/.well-known/jwks.json", Issuer: "https://idp.example"}
	claims := jwt.MapClaims{
		"sub": "admin-2",
		"iss": "https://evil.example",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}
	tokenString, err := server.issueToken(claims)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = ValidateToken(tokenString, cfg)
	if err == nil {
		t.Fatal("expected rejection due to issuer mismatch")
	}
	if !contains(err.Error(), "invalid issuer") {
		t.Errorf("expected invalid issuer error, got: %v", err)
	}
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "shared-secret"}
	claims := jwt.MapClaims{"sub": "admin-1", "exp": time.Now().Add(-1 * time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken(tokenString, cfg); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateToken_MissingSubClaim(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "shared-secret"}
	claims := jwt.MapClaims{"exp": time.Now().Add(1 * time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken(tokenString, cfg); err == nil {
		t.Fatal("expected token without sub claim to be rejected")
	}
}

func TestMiddleware_DevModeDebugHeader(t *testing.T) {
	cfg := JWTCfg{DevMode: true}
	var gotSub string
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/kill-switch", nil)
	req.Header.Set("X-Debug-Sub", "local-operator")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotSub != "local-operator" {
		t.Errorf("expected subject local-operator, got %q", gotSub)
	}
}

func TestMiddleware_RejectsMissingAuth(t *testing.T) {
	cfg := JWTCfg{HS256Secret: "shared-secret"}
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/kill-switch", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
