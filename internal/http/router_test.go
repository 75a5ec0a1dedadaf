package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/studyloop/go-chat-store/internal/config"
	"github.com/studyloop/go-chat-store/internal/domain"
	"github.com/studyloop/go-chat-store/internal/repo"
)

func newTestStack(t *testing.T) (*gin.Engine, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		APIBasePath: "/api/v1",
		Cache:       config.CacheConfig{TTL: time.Hour, ListMax: 100},
		Sync:        config.SyncConfig{LockTTL: time.Minute, BatchSize: 50, Interval: time.Minute},
		RateRPS:     100,
		RateBurst:   100,
		OTEL:        config.OTELConfig{ServiceName: "router-test"},
	}

	r := gin.New()
	RegisterRoutes(r, db, rdb, cfg)
	return r, db, srv
}

func TestRegisterRoutes_HealthAndMetrics(t *testing.T) {
	r, _, _ := newTestStack(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
}

func TestRegisterRoutes_SaveAndRead(t *testing.T) {
	r, _, _ := newTestStack(t)

	body := strings.NewReader(`{"query":"what is a monad?","response":"a monoid in the category of endofunctors","spaceId":"sp1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("save = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}

	var saved domain.ChatEntry
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.ID == "" || saved.SpaceID != "sp1" {
		t.Fatalf("saved = %+v", saved)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/chats?spaceId=sp1", nil)
	req.Header.Set("X-User-ID", "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d %s", w.Code, w.Body.String())
	}
	var page struct {
		Chats []domain.ChatEntry `json:"chats"`
		Count int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if page.Count != 1 || page.Chats[0].ID != saved.ID {
		t.Fatalf("page = %+v", page)
	}
}

func TestRegisterRoutes_Fallbacks(t *testing.T) {
	r, _, _ := newTestStack(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("no-route = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/chats", nil))
	if w.Code != http.StatusMethodNotAllowed || !strings.Contains(w.Body.String(), `"code":"method_not_allowed"`) {
		t.Fatalf("no-method = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_SecurityHeaders(t *testing.T) {
	r, _, _ := newTestStack(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got == "" {
		t.Fatal("missing X-Frame-Options")
	}
}
