package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goWA/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testConfig() config.File {
	cfg := config.Default()
	cfg.WhatsApp.Driver = config.DriverMemory
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func newTestGateway(t *testing.T, cfg config.File) (*gateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw, err := newGateway(context.Background(), cfg, discardLogger(), rdb)
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	t.Cleanup(gw.Close)
	return gw, mr
}

func serve(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGatewayMemoryDriverEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.AuditStream = "wagw:audit"
	gw, mr := newTestGateway(t, cfg)
	h := gw.Handler()

	if rec := serve(t, h, http.MethodPost, "/session", `{"sessionId":"s1"}`, ""); rec.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := serve(t, h, http.MethodPost, "/send", `{"sessionId":"s1","phone":"5511999990000","message":"hi"}`, "")
		if rec.Code == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("send never succeeded: status %d body %s", rec.Code, rec.Body)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := serve(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wagw_send_success_total 1") {
		t.Fatalf("metrics missing send counter:\n%s", rec.Body)
	}

	gw.Close()
	n, err := redis.NewClient(&redis.Options{Addr: mr.Addr()}).XLen(context.Background(), "wagw:audit").Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if n == 0 {
		t.Fatal("expected audit events in the redis stream")
	}
}

func TestGatewayAuthEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = testSecret
	gw, _ := newTestGateway(t, cfg)
	h := gw.Handler()

	if rec := serve(t, h, http.MethodGet, "/session/list", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	manager, err := newTokenManager(cfg.Auth)
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	token, err := manager.CreateAccess("acme", nil, []string{"read"})
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	if rec := serve(t, h, http.MethodGet, "/session/list", "", token); rec.Code != http.StatusOK {
		t.Fatalf("with token: status %d body %s", rec.Code, rec.Body)
	}
	if rec := serve(t, h, http.MethodPost, "/session", `{"sessionId":"s1"}`, token); rec.Code != http.StatusForbidden {
		t.Fatalf("missing scope: status %d", rec.Code)
	}
}

func TestGatewayOptionalRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Events = false
	cfg.Server.Metrics = false
	gw, _ := newTestGateway(t, cfg)

	if gw.hub != nil {
		t.Fatal("hub built with events disabled")
	}
	for _, path := range []string{"/metrics", "/events"} {
		if rec := serve(t, gw.Handler(), http.MethodGet, path, "", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d, want 404", path, rec.Code)
		}
	}
}

func TestGatewayRedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := newGateway(ctx, cfg, discardLogger(), nil); err == nil {
		t.Fatal("expected redis ping error")
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("WAGW_AUTH_SECRET", testSecret)
	t.Setenv("WAGW_WHATSAPP_DRIVER", config.DriverMemory)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--env-file", "", "--tenant", "acme", "--session", "s1,s2", "--scope", "send"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	manager, err := newTokenManager(config.AuthConfig{SigningMethod: "hs256", Secret: testSecret, AccessTTL: time.Hour})
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	claims, err := manager.ParseAccess(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Tenant != "acme" || !claims.AllowsSession("s2") || claims.AllowsSession("s3") || !claims.HasScope("send") {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenCommandRequiresTenant(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--env-file", ""})
	if err := root.Execute(); err == nil {
		t.Fatal("expected missing --tenant error")
	}
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	if _, err := newTokenManager(config.AuthConfig{SigningMethod: "hs256", AccessTTL: time.Hour}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "wagateway ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestGatewayHealthz(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig())
	rec := serve(t, gw.Handler(), http.MethodGet, "/healthz", "", "")
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("healthz: %v %q", err, rec.Body)
	}
}
