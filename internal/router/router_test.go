package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/taskflow-dev/taskflow/internal/audit"
	"github.com/taskflow-dev/taskflow/internal/auth"
	"github.com/taskflow-dev/taskflow/internal/handlers"
	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/notify"
	"github.com/taskflow-dev/taskflow/internal/recurrence"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/services"
	"github.com/taskflow-dev/taskflow/internal/testutil"
	"github.com/taskflow-dev/taskflow/internal/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	engine *gin.Engine
	tokens *auth.TokenIssuer
	audits *repository.AuditRepository
	users  map[string]*models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gdb := testutil.NewDB(t)
	tokens, err := auth.NewTokenIssuer("router-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	users := repository.NewUserRepository(gdb)
	tasks := repository.NewTaskRepository(gdb)
	audits := repository.NewAuditRepository(gdb)
	registry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(registry)

	h := handlers.New(handlers.Options{
		DB:        gdb,
		Auth:      services.NewAuthService(users, tokens),
		Tasks:     services.NewTaskService(tasks, users, audit.NewRecorder(audits), dispatcher, recurrence.NewEngine(tasks)),
		Analytics: services.NewAnalyticsService(tasks),
		Users:     users,
		Audits:    audits,
		Registry:  registry,
		CookieTTL: time.Hour,
	})

	return &testServer{
		engine: NewRouter(Config{Handler: h, Tokens: tokens, Users: users, AllowedOrigins: []string{"http://localhost:5173"}}),
		tokens: tokens,
		audits: audits,
		users: map[string]*models.User{
			"admin":   testutil.CreateUser(t, gdb, "Admin", types.RoleAdmin),
			"manager": testutil.CreateUser(t, gdb, "Manager", types.RoleManager),
			"userA":   testutil.CreateUser(t, gdb, "User A", types.RoleUser),
			"userB":   testutil.CreateUser(t, gdb, "User B", types.RoleUser),
		},
	}
}

func (s *testServer) token(t *testing.T, who string) string {
	t.Helper()
	u := s.users[who]
	token, err := s.tokens.GenerateJWT(u.ID, u.Role)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, who string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, who))
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Nia", "email": "Nia@Example.com", "password": "pw-123456"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Nia", "email": "nia@example.com", "password": "x"})
	if w.Code != http.StatusBadRequest || decode[gin.H](t, w)["error"] != "Email already in use." {
		t.Fatalf("duplicate register: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "x@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields status = %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "nia@example.com", "password": "pw-123456"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	login := decode[struct {
		Token string             `json:"token"`
		User  types.UserResponse `json:"user"`
	}](t, w)
	if login.Token == "" || login.User.Role != types.RoleUser || login.User.Email != "nia@example.com" {
		t.Fatalf("unexpected login body %+v", login)
	}

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "nia@example.com", "password": "wrong"})
	if w.Code != http.StatusBadRequest || decode[gin.H](t, w)["error"] != "Invalid credentials." {
		t.Fatalf("bad login: %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: login.Token})
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nia@example.com") {
		t.Fatalf("me via cookie: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Token abc"},
		{name: "garbage", header: "Bearer abc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	assignee := s.users["userB"].ID

	w := s.do(t, http.MethodPost, "/api/tasks", "userA", gin.H{
		"title":      "Write report",
		"dueDate":    "2024-09-30",
		"priority":   "high",
		"assignedTo": assignee,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	created := decode[types.TaskResponse](t, w)
	if created.CreatedBy.Name != "User A" || created.AssignedTo == nil || created.AssignedTo.Name != "User B" {
		t.Fatalf("joined summaries missing: %+v", created)
	}
	if created.Status != types.StatusTodo || created.DueDate == nil || created.DueDate.Day() != 30 {
		t.Fatalf("unexpected task %+v", created)
	}

	path := fmt.Sprintf("/api/tasks/%d", created.ID)

	if w := s.do(t, http.MethodPost, "/api/tasks", "userA", gin.H{"title": ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing title status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/tasks", "userA", gin.H{"title": "x", "priority": "urgent"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad priority status = %d", w.Code)
	}

	if w := s.do(t, http.MethodGet, path, "userB", nil); w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/tasks/9999", "userB", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/tasks/abc", "userB", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("get bad id status = %d", w.Code)
	}

	w = s.do(t, http.MethodPut, path, "userB", gin.H{"title": "Stolen"})
	if w.Code != http.StatusForbidden || decode[gin.H](t, w)["error"] != "Forbidden: users can only update their own tasks." {
		t.Fatalf("foreign update: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPut, path, "userA", gin.H{"status": "in progress", "assignedTo": nil})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	updated := decode[types.TaskResponse](t, w)
	if updated.Status != types.StatusInProgress || updated.AssignedTo != nil || updated.Title != "Write report" || updated.Priority != types.PriorityHigh {
		t.Fatalf("partial update wrong: %+v", updated)
	}

	w = s.do(t, http.MethodGet, "/api/tasks?status=in%20progress&search=REPORT", "userB", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if list := decode[[]types.TaskResponse](t, w); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	if w := s.do(t, http.MethodGet, "/api/tasks?dueDate=not-a-date", "userB", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad dueDate filter status = %d", w.Code)
	}

	if w := s.do(t, http.MethodDelete, path, "userB", nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d", w.Code)
	}
	w = s.do(t, http.MethodDelete, path, "userA", nil)
	if w.Code != http.StatusOK || decode[gin.H](t, w)["message"] != "Task deleted." {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodDelete, path, "userA", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}
}

func TestRoleGatedRoutes(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		path string
		who  string
		want int
	}{
		{"/api/audit", "admin", http.StatusOK},
		{"/api/audit", "manager", http.StatusForbidden},
		{"/api/audit", "userA", http.StatusForbidden},
		{"/api/analytics/overdue", "manager", http.StatusOK},
		{"/api/analytics/completed-per-user", "admin", http.StatusOK},
		{"/api/analytics/completion-rate", "userA", http.StatusForbidden},
		{"/api/users", "userA", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.who+tc.path, func(t *testing.T) {
			if w := s.do(t, http.MethodGet, tc.path, tc.who, nil); w.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/users", "userA", nil)
	if users := decode[[]types.UserResponse](t, w); len(users) != 4 || users[0].Role == "" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestAuditLogNewestFirst(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/tasks", "admin", gin.H{"title": "Audited"})
	task := decode[types.TaskResponse](t, w)
	s.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", task.ID), "admin", gin.H{"status": "done"})

	w = s.do(t, http.MethodGet, "/api/audit", "admin", nil)
	logs := decode[[]types.AuditLogResponse](t, w)
	if len(logs) != 2 || logs[0].Action != audit.ActionUpdate || logs[1].Action != audit.ActionCreate {
		t.Fatalf("unexpected audit log %+v", logs)
	}
	if logs[0].User == nil || logs[0].User.Role != types.RoleAdmin || logs[0].TargetType != types.TargetTypeTask {
		t.Fatalf("actor not resolved: %+v", logs[0])
	}
}

func TestWebSocketReceivesAssignment(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + s.token(t, "manager")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello frame
	if err := conn.ReadJSON(&hello); err != nil || hello.Event != "connected" {
		t.Fatalf("welcome frame: %+v %v", hello, err)
	}

	w := s.do(t, http.MethodPost, "/api/tasks", "admin", gin.H{"title": "Triage", "assignedTo": s.users["manager"].ID})
	task := decode[types.TaskResponse](t, w)

	var got frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read notification: %v", err)
	}
	if got.Event != types.EventTaskAssigned {
		t.Fatalf("event = %q", got.Event)
	}
	var payload struct {
		TaskID uint `json:"taskId"`
	}
	if err := json.Unmarshal(got.Data, &payload); err != nil || payload.TaskID != task.ID {
		t.Fatalf("payload %s, want task %d", got.Data, task.ID)
	}
}

func TestWebSocketRejectsAnonymous(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
