package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/repositories"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func performRequest(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// RequestIDMiddleware
// ---------------------------------------------------------------------------

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	var seen string
	router.GET("/", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := performRequest(router, http.MethodGet, "/", nil)

	echoed := w.Header().Get(RequestIDHeader)
	if echoed == "" {
		t.Fatal("response missing X-Request-ID header")
	}
	if seen != echoed {
		t.Errorf("context id %q != header id %q", seen, echoed)
	}
}

func TestRequestID_ReusesInbound(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(router, http.MethodGet, "/", map[string]string{RequestIDHeader: "upstream-id-7"})
	if got := w.Header().Get(RequestIDHeader); got != "upstream-id-7" {
		t.Errorf("X-Request-ID = %q, want upstream-id-7", got)
	}
}

// ---------------------------------------------------------------------------
// SecurityHeadersMiddleware
// ---------------------------------------------------------------------------

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware(APISecurityHeadersConfig()))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(router, http.MethodGet, "/", nil)

	checks := map[string]string{
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":           "no-referrer",
	}
	for header, want := range checks {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// AuthMiddleware
// ---------------------------------------------------------------------------

func authTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *auth.Actor) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := auth.SetJWTSecret("0123456789abcdef0123456789abcdef"); err != nil {
		t.Fatalf("SetJWTSecret: %v", err)
	}

	var captured auth.Actor
	router := gin.New()
	router.Use(AuthMiddleware(repositories.NewUserRepository(db)))
	router.GET("/", func(c *gin.Context) {
		captured, _ = auth.ActorFromContext(c)
		c.Status(http.StatusOK)
	})
	return router, mock, &captured
}

func userRow(id int64, role string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "full_name", "role", "password_hash", "active", "created_at", "updated_at"}).
		AddRow(id, "msantos", "Maria Santos", role, "x", active, time.Now(), time.Now())
}

func TestAuth_ValidTokenSetsActor(t *testing.T) {
	router, mock, captured := authTestRouter(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WillReturnRows(userRow(5, "ICT_Coordinator", true))

	token, err := auth.GenerateToken(5, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	w := performRequest(router, http.MethodGet, "/", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if captured.ID != 5 || captured.Role != auth.RoleICTCoordinator || captured.Name != "Maria Santos" {
		t.Errorf("actor = %+v, want id 5 / ICT_Coordinator / Maria Santos", *captured)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	router, _, _ := authTestRouter(t)
	if w := performRequest(router, http.MethodGet, "/", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	router, _, _ := authTestRouter(t)
	w := performRequest(router, http.MethodGet, "/", map[string]string{"Authorization": "Token abc"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_GarbageToken(t *testing.T) {
	router, _, _ := authTestRouter(t)
	w := performRequest(router, http.MethodGet, "/", map[string]string{"Authorization": "Bearer not-a-jwt"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_DeactivatedUserRejected(t *testing.T) {
	router, mock, _ := authTestRouter(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WillReturnRows(userRow(5, "Registrar", false))

	token, _ := auth.GenerateToken(5, time.Hour)
	w := performRequest(router, http.MethodGet, "/", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deactivated user", w.Code)
	}
}

func TestAuth_UnknownUserRejected(t *testing.T) {
	router, mock, _ := authTestRouter(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "role", "password_hash", "active", "created_at", "updated_at"}))

	token, _ := auth.GenerateToken(404, time.Hour)
	w := performRequest(router, http.MethodGet, "/", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for unknown user", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestMemoryLimiter_BurstThenDeny(t *testing.T) {
	ml := NewMemoryLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer ml.Stop()

	for i := 0; i < 3; i++ {
		allowed, _, err := ml.Allow(context.Background(), "ip:10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("request %d: allowed=%v err=%v, want allowed", i+1, allowed, err)
		}
	}
	if allowed, _, _ := ml.Allow(context.Background(), "ip:10.0.0.1"); allowed {
		t.Error("4th request within burst window should be denied")
	}
	// A different client has its own bucket.
	if allowed, _, _ := ml.Allow(context.Background(), "ip:10.0.0.2"); !allowed {
		t.Error("separate client should not share the exhausted bucket")
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	ml := NewMemoryLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer ml.Stop()

	router := gin.New()
	router.Use(RateLimitMiddleware(ml))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := performRequest(router, http.MethodGet, "/", nil); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}
	w := performRequest(router, http.MethodGet, "/", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}

func TestRateLimitKey_IgnoresActor(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:51234"
	c.Set(auth.ActorContextKey, auth.Actor{ID: 5, Role: auth.RoleICTCoordinator})

	key := rateLimitKey(c)
	if key != "ip:203.0.113.7" {
		t.Errorf("key = %q, want the client IP bucket regardless of actor", key)
	}
}

func TestRedisLimiter_SharedBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRedisLimiter(client, RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2})
	defer rl.Stop()

	ctx := context.Background()
	allowedCount := 0
	for i := 0; i < 4; i++ {
		allowed, _, err := rl.Allow(ctx, "user:1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if allowed {
			allowedCount++
		}
	}
	if allowedCount != 2 {
		t.Errorf("allowed %d of 4 requests, want burst of 2", allowedCount)
	}
}

func TestRateLimitMiddleware_FailsOpenOnBackendError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rl := NewRedisLimiter(client, RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1})
	mr.Close()

	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := performRequest(router, http.MethodGet, "/", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when limiter backend is down", w.Code)
	}
}
