package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/go-chat-store/internal/domain"
	"github.com/studyloop/go-chat-store/internal/repo"
	"github.com/studyloop/go-chat-store/internal/services"
)

//
// Stub services
//

type stubChatService struct {
	saveEntry *domain.ChatEntry
	saveErr   error
	saveOpts  services.SaveOptions

	getEntry *domain.ChatEntry
	getErr   error

	history     []domain.ChatEntry
	historyErr  error
	historyOpts services.HistoryOptions

	deleteErr error
	deletedID string

	clearErr   error
	clearScope services.ScopeOptions

	stats    repo.ChatStats
	statsErr error
}

func (s *stubChatService) Save(_ context.Context, userID, query, response string, opts services.SaveOptions) (*domain.ChatEntry, error) {
	s.saveOpts = opts
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if s.saveEntry != nil {
		return s.saveEntry, nil
	}
	return &domain.ChatEntry{ID: "chat_1_stub", UserID: userID, Query: query, Response: response}, nil
}

func (s *stubChatService) GetOne(context.Context, string) (*domain.ChatEntry, error) {
	return s.getEntry, s.getErr
}

func (s *stubChatService) GetHistory(_ context.Context, _ string, opts services.HistoryOptions) ([]domain.ChatEntry, error) {
	s.historyOpts = opts
	return s.history, s.historyErr
}

func (s *stubChatService) DeleteOne(_ context.Context, id, _ string, _ services.ScopeOptions) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stubChatService) ClearHistory(_ context.Context, _ string, opts services.ScopeOptions) error {
	s.clearScope = opts
	return s.clearErr
}

func (s *stubChatService) Stats(context.Context, string, services.ScopeOptions) (repo.ChatStats, error) {
	return s.stats, s.statsErr
}

type stubSyncService struct {
	status    services.SyncStatus
	statusErr error
	manual    services.ManualSyncResult
}

func (s *stubSyncService) Status(context.Context) (services.SyncStatus, error) {
	return s.status, s.statusErr
}

func (s *stubSyncService) TriggerManual(context.Context) services.ManualSyncResult {
	return s.manual
}

//
// Harness
//

func newTestRouter(chatSvc ChatService, syncSvc SyncService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(chatSvc, syncSvc)
	r.POST("/chats", h.SaveChat)
	r.GET("/chats", h.GetHistory)
	r.DELETE("/chats", h.ClearHistory)
	r.GET("/chats/stats", h.GetStats)
	r.GET("/chats/:id", h.GetChat)
	r.DELETE("/chats/:id", h.DeleteChat)
	r.GET("/sync", h.GetSyncStatus)
	r.POST("/sync", h.TriggerSync)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

//
// SaveChat
//

func TestSaveChat_Created(t *testing.T) {
	chat := &stubChatService{}
	r := newTestRouter(chat, &stubSyncService{})

	w := doJSON(t, r, http.MethodPost, "/chats", "u1", SaveChatRequest{
		Query:            "what is osmosis?",
		Response:         "water diffusion",
		SpaceID:          "sp1",
		StudyMaterialIDs: []string{"m1"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got domain.ChatEntry
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "u1" || got.Query != "what is osmosis?" {
		t.Fatalf("entry = %+v", got)
	}
	if chat.saveOpts.SpaceID != "sp1" || len(chat.saveOpts.StudyMaterialIDs) != 1 {
		t.Fatalf("opts = %+v", chat.saveOpts)
	}
}

func TestSaveChat_Unauthorized(t *testing.T) {
	r := newTestRouter(&stubChatService{}, &stubSyncService{})
	w := doJSON(t, r, http.MethodPost, "/chats", "", SaveChatRequest{Query: "q"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSaveChat_BadBodyAndValidation(t *testing.T) {
	chat := &stubChatService{}
	r := newTestRouter(chat, &stubSyncService{})

	// missing required query field
	w := doJSON(t, r, http.MethodPost, "/chats", "u1", map[string]string{"response": "r"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing query status = %d", w.Code)
	}

	// service-level validation maps to 400
	chat.saveErr = services.ErrTooLong
	w = doJSON(t, r, http.MethodPost, "/chats", "u1", SaveChatRequest{Query: "q"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("too-long status = %d", w.Code)
	}

	// infrastructure failure maps to 500 with a stable code
	chat.saveErr = errors.New("redis down")
	w = doJSON(t, r, http.MethodPost, "/chats", "u1", SaveChatRequest{Query: "q"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("infra status = %d", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != ErrCodeSaveFailed {
		t.Fatalf("error code = %q; want %q", body.Code, ErrCodeSaveFailed)
	}
}

//
// GetChat
//

func TestGetChat_FoundAndNotFound(t *testing.T) {
	chat := &stubChatService{getEntry: &domain.ChatEntry{ID: "c1", UserID: "u1"}}
	r := newTestRouter(chat, &stubSyncService{})

	w := doJSON(t, r, http.MethodGet, "/chats/c1", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	chat.getEntry = nil
	chat.getErr = services.ErrChatNotFound
	w = doJSON(t, r, http.MethodGet, "/chats/missing", "u1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("not-found status = %d", w.Code)
	}
	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Code != ErrCodeNotFound {
		t.Fatalf("error code = %q", body.Code)
	}
}

//
// GetHistory
//

func TestGetHistory_ResponseShapeAndParams(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	chat := &stubChatService{history: []domain.ChatEntry{
		{ID: "c2", UserID: "u1", Query: "b", CreatedAt: created.Add(time.Minute)},
		{ID: "c1", UserID: "u1", Query: "a", CreatedAt: created},
	}}
	r := newTestRouter(chat, &stubSyncService{})

	w := doJSON(t, r, http.MethodGet, "/chats?spaceId=sp1&limit=10&offset=5", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Chats) != 2 || resp.Chats[0].ID != "c2" {
		t.Fatalf("resp = %+v", resp)
	}
	if chat.historyOpts.SpaceID != "sp1" || chat.historyOpts.Limit != 10 || chat.historyOpts.Offset != 5 {
		t.Fatalf("opts = %+v", chat.historyOpts)
	}
}

func TestGetHistory_LimitClampedAndDefaults(t *testing.T) {
	chat := &stubChatService{}
	r := newTestRouter(chat, &stubSyncService{})

	// limit above the cap is clamped to 100
	w := doJSON(t, r, http.MethodGet, "/chats?limit=5000", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if chat.historyOpts.Limit != 100 {
		t.Fatalf("clamped limit = %d; want 100", chat.historyOpts.Limit)
	}

	// garbage limit falls back to the default
	w = doJSON(t, r, http.MethodGet, "/chats?limit=abc", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if chat.historyOpts.Limit != 50 {
		t.Fatalf("default limit = %d; want 50", chat.historyOpts.Limit)
	}

	// empty history serializes as [] with count 0, not null
	var resp struct {
		Chats json.RawMessage `json:"chats"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(resp.Chats) != "[]" || resp.Count != 0 {
		t.Fatalf("empty history = %s, count %d", resp.Chats, resp.Count)
	}
}

//
// DeleteChat / ClearHistory
//

func TestDeleteChat_NoContent(t *testing.T) {
	chat := &stubChatService{}
	r := newTestRouter(chat, &stubSyncService{})

	w := doJSON(t, r, http.MethodDelete, "/chats/c1?spaceId=sp1", "u1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if chat.deletedID != "c1" {
		t.Fatalf("deleted id = %q", chat.deletedID)
	}

	w = doJSON(t, r, http.MethodDelete, "/chats/c1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete status = %d", w.Code)
	}
}

func TestClearHistory_PassesScope(t *testing.T) {
	chat := &stubChatService{}
	r := newTestRouter(chat, &stubSyncService{})

	w := doJSON(t, r, http.MethodDelete, "/chats?studyMaterialId=m1", "u1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if chat.clearScope.StudyMaterialID != "m1" {
		t.Fatalf("scope = %+v", chat.clearScope)
	}
}

//
// GetStats
//

func TestGetStats(t *testing.T) {
	chat := &stubChatService{stats: repo.ChatStats{TotalChats: 7, TodayChats: 2}}
	r := newTestRouter(chat, &stubSyncService{})

	w := doJSON(t, r, http.MethodGet, "/chats/stats", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats repo.ChatStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalChats != 7 || stats.TodayChats != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	chat.statsErr = errors.New("db down")
	w = doJSON(t, r, http.MethodGet, "/chats/stats", "u1", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("error status = %d", w.Code)
	}
}

//
// userID extraction
//

func TestUserID_ContextWinsOverHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "ctx-user"); c.Next() })
	var seen string
	r.GET("/probe", func(c *gin.Context) {
		seen = userID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User-ID", "header-user")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "ctx-user" {
		t.Fatalf("userID = %q; want ctx-user", seen)
	}
}
