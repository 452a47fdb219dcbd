package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sohaibansari420/careease-backened/internal/auth"
	"github.com/sohaibansari420/careease-backened/internal/core"
	"github.com/sohaibansari420/careease-backened/internal/ratelimit"
	"github.com/sohaibansari420/careease-backened/internal/store"
)

func init() {
	auth.BcryptCost = bcrypt.MinCost
}

type fixedResponder struct{ reply string }

func (f fixedResponder) Complete(ctx context.Context, history []core.Turn) (string, error) {
	return f.reply, nil
}

func (f fixedResponder) TitleFor(ctx context.Context, userMessage, aiMessage string, priorTitles []string) (string, error) {
	return "", core.ErrMissingCredential
}

type testServer struct {
	handler http.Handler
	auth    *core.AuthService
	store   *store.SQLiteStore
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := zap.NewNop()
	stats := &core.AssistantStats{}
	authSvc := core.NewAuthService(s, auth.NewTokenManager("test-secret", time.Hour), nil, logger)
	svc := Services{
		Auth:    authSvc,
		Chats:   core.NewChatService(s, fixedResponder{reply: "Use a pill organizer."}, core.ChatOptions{Stats: stats}, logger),
		Alarms:  core.NewAlarmService(s, nil, logger),
		Reports: core.NewReportService(s, s, s, nil, logger),
		Admin:   core.NewAdminService(s, s, stats, nil, logger),
	}
	h := NewAPIHandler(svc, Options{Environment: "test", Database: s, FrontendOrigins: []string{"http://localhost:3000"}, Limiter: limiter}, logger)
	return &testServer{handler: NewRouter(h), auth: authSvc, store: s}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	rec, body := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "Passw0rd",
		"firstName": "Test",
		"lastName":  "User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["data"].(map[string]any)["token"].(string)
}

func (ts *testServer) admin(t *testing.T) (string, string) {
	t.Helper()
	user, err := ts.auth.CreateAdmin(context.Background(), core.RegisterInput{
		Username:  "admin",
		Email:     "admin@example.com",
		Password:  "Adm1nPass",
		FirstName: "Site",
		LastName:  "Admin",
	})
	require.NoError(t, err)
	session, err := ts.auth.Login(context.Background(), core.LoginInput{Email: "admin@example.com", Password: "Adm1nPass"})
	require.NoError(t, err)
	return session.Token, user.ID
}

func TestHealthAndIndex(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, body = ts.do(t, http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["endpoints"], "chat")
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.do(t, http.MethodGet, "/api/unknown/thing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "API endpoint not found", body["message"])
	assert.Equal(t, "/api/unknown/thing", body["path"])
}

func TestRequiresToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.do(t, http.MethodGet, "/api/chat", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = ts.do(t, http.MethodGet, "/api/chat", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatConversation(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register(t, "caregiver")

	rec, body := ts.do(t, http.MethodPost, "/api/chat", token, map[string]string{
		"title":    "Medication",
		"issue":    "Mom forgets her pills",
		"category": "medication",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	chat := body["data"].(map[string]any)["chat"].(map[string]any)
	chatID := chat["id"].(string)
	assert.Equal(t, "active", chat["status"])
	assert.Equal(t, "medication", chat["category"])

	rec, body = ts.do(t, http.MethodPost, "/api/chat/"+chatID+"/messages", token, map[string]string{"content": "What can help?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, "What can help?", data["userMessage"].(map[string]any)["content"])
	assert.Equal(t, "Use a pill organizer.", data["assistantMessage"].(map[string]any)["content"])

	rec, body = ts.do(t, http.MethodGet, "/api/chat/"+chatID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := body["data"].(map[string]any)["chat"].(map[string]any)
	assert.Len(t, stored["messages"], 2)
	assert.Equal(t, float64(2), stored["metadata"].(map[string]any)["totalMessages"])

	rec, body = ts.do(t, http.MethodGet, "/api/chat", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := body["data"].(map[string]any)
	assert.Len(t, list["chats"], 1)
	assert.Equal(t, float64(1), list["pagination"].(map[string]any)["total"])

	other := ts.register(t, "stranger")
	rec, _ = ts.do(t, http.MethodGet, "/api/chat/"+chatID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationFailures(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register(t, "caregiver")

	rec, body := ts.do(t, http.MethodPost, "/api/chat", token, map[string]string{
		"title":    "Help",
		"issue":    "Something is wrong at home",
		"category": "gardening",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", body["message"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "category", errs[0].(map[string]any)["field"])

	rec, _ = ts.do(t, http.MethodPost, "/api/user/alarms", token, map[string]string{"name": "Pills", "time": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	raw := httptest.NewRecorder()
	ts.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec, body = ts.do(t, http.MethodPost, "/api/chat", token, map[string]any{"title": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", body["message"])
	assert.NotContains(t, rec.Body.String(), "Go struct")

	rec, body = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["errors"])
}

func TestAlarmRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register(t, "caregiver")

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec, body := ts.do(t, http.MethodPost, "/api/user/alarms", token, map[string]string{"name": "Evening pills", "time": at})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alarmID := body["data"].(map[string]any)["alarm"].(map[string]any)["id"].(string)

	rec, body = ts.do(t, http.MethodPut, "/api/user/alarms/"+alarmID+"/complete", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alarm := body["data"].(map[string]any)["alarm"].(map[string]any)
	assert.Equal(t, true, alarm["isCompleted"])
	assert.Equal(t, true, alarm["isActive"])

	rec, body = ts.do(t, http.MethodGet, "/api/user/alarms", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].(map[string]any)["alarms"], 1)

	rec, _ = ts.do(t, http.MethodDelete, "/api/user/alarms/"+alarmID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAccess(t *testing.T) {
	ts := newTestServer(t, nil)
	userToken := ts.register(t, "member")
	adminToken, adminID := ts.admin(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := ts.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Len(t, data["users"], 2)
	assert.Equal(t, float64(1), data["stats"].(map[string]any)["adminUsers"])

	rec, body = ts.do(t, http.MethodPut, "/api/admin/users/"+adminID+"/ban", adminToken, map[string]any{"banned": true, "banReason": "test"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot ban admin users", body["message"])

	var memberID string
	for _, u := range data["users"].([]any) {
		if u.(map[string]any)["username"] == "member" {
			memberID = u.(map[string]any)["id"].(string)
		}
	}
	require.NotEmpty(t, memberID)

	rec, body = ts.do(t, http.MethodPut, "/api/admin/users/"+memberID+"/ban", adminToken, map[string]any{"banned": true, "banReason": "Spam"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User banned successfully", body["message"])

	rec, _ = ts.do(t, http.MethodGet, "/api/chat", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = ts.do(t, http.MethodPut, "/api/admin/users/"+memberID+"/ban", adminToken, map[string]any{"banned": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User unbanned successfully", body["message"])

	rec, body = ts.do(t, http.MethodGet, "/api/admin/dashboard/analytics?timeframe=7d", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7d", body["data"].(map[string]any)["timeframe"])

	rec, _ = ts.do(t, http.MethodGet, "/api/admin/assistant/stats", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReportFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	userToken := ts.register(t, "reporter")
	adminToken, _ := ts.admin(t)

	_, body := ts.do(t, http.MethodPost, "/api/chat", userToken, map[string]string{
		"title":    "Advice",
		"issue":    "The advice seemed wrong",
		"category": "health",
	})
	chatID := body["data"].(map[string]any)["chat"].(map[string]any)["id"].(string)

	rec, body := ts.do(t, http.MethodPost, "/api/chat/"+chatID+"/reports", userToken, map[string]string{
		"reportType":  "misinformation",
		"description": "Dosage advice was incorrect",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reportID := body["data"].(map[string]any)["report"].(map[string]any)["id"].(string)

	rec, body = ts.do(t, http.MethodPut, "/api/admin/reports/"+reportID, adminToken, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, rec.Code)
	report := body["data"].(map[string]any)["report"].(map[string]any)
	assert.NotEmpty(t, report["resolvedBy"])
	assert.NotEmpty(t, report["resolvedAt"])

	rec, body = ts.do(t, http.MethodGet, "/api/admin/reports?status=resolved", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].(map[string]any)["reports"], 1)
}

func TestRateLimitedRoute(t *testing.T) {
	ts := newTestServer(t, ratelimit.NewMemoryLimiter())

	var rec *httptest.ResponseRecorder
	for i := 0; i < ratelimit.Auth.Limit; i++ {
		rec, _ = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))

	rec, body := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many authentication attempts, please try again later.", body["message"])
	assert.Equal(t, "5", rec.Header().Get("RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("RateLimit-Reset"))
}
