package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func newTestManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-0123456789", Issuer: "elio-os", AccessTokenTTL: time.Minute})
}

func authRouter(mgr *jwt.Manager, bl TokenBlacklist, roles ...string) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{JWTAuth(mgr, bl)}
	if len(roles) > 0 {
		handlers = append(handlers, RoleAuth(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"|"+c.GetString("role"))
	})
	r.GET("/p", handlers...)
	return r
}

func doGet(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_InjectsIdentity(t *testing.T) {
	mgr := newTestManager()
	token, err := mgr.GenerateAccessToken("person-1", "member")
	if err != nil {
		t.Fatalf("GenerateAccessToken 应成功: %v", err)
	}

	w := doGet(authRouter(mgr, nil), "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if w.Body.String() != "person-1|member" {
		t.Errorf("期望注入 person-1|member，实际 %s", w.Body.String())
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	mgr := newTestManager()
	other := jwt.NewManager(&config.AuthConfig{JWTSecret: "another-secret-987654", Issuer: "elio-os"})
	forged, _ := other.GenerateAccessToken("person-1", "admin")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"bad scheme", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doGet(authRouter(mgr, nil), tt.header); w.Code != http.StatusUnauthorized {
				t.Errorf("期望 401，实际 %d", w.Code)
			}
		})
	}
}

func TestJWTAuth_Blacklist(t *testing.T) {
	mgr := newTestManager()
	token, _ := mgr.GenerateAccessToken("person-1", "member")
	claims, _ := mgr.ParseToken(token)

	revoked := &fakeBlacklist{revoked: map[string]bool{claims.ID: true}}
	if w := doGet(authRouter(mgr, revoked), "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Errorf("已吊销 Token 期望 401，实际 %d", w.Code)
	}

	// 黑名单查询失败时降级放行
	broken := &fakeBlacklist{err: errors.New("redis down")}
	if w := doGet(authRouter(mgr, broken), "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("黑名单不可用时期望放行，实际 %d", w.Code)
	}
}

func TestRoleAuth(t *testing.T) {
	mgr := newTestManager()
	member, _ := mgr.GenerateAccessToken("person-1", "member")
	admin, _ := mgr.GenerateAccessToken("person-2", "admin")
	r := authRouter(mgr, nil, "admin", "manager")

	if w := doGet(r, "Bearer "+member); w.Code != http.StatusForbidden {
		t.Errorf("member 期望 403，实际 %d", w.Code)
	}
	if w := doGet(r, "Bearer "+admin); w.Code != http.StatusOK {
		t.Errorf("admin 期望 200，实际 %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/p", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" || w.Body.String() != "abc-123" {
		t.Errorf("应沿用传入的 Request-ID，实际 %s", w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 100))
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("超长 Request-ID 应被替换为 UUID，实际 %q", got)
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/p", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/p", strings.NewReader(strings.Repeat("a", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/p", strings.NewReader("{}")))
	if w.Code != http.StatusNoContent {
		t.Errorf("期望 204，实际 %d", w.Code)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("期望允许 localhost:5173，实际 %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
