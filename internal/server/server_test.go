package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"factory-ops/config"
	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/notification"
	"factory-ops/internal/domain/user"
	"factory-ops/internal/handler"
	"factory-ops/internal/repository/memstore"
	"factory-ops/internal/services"
	"factory-ops/internal/websocket"
	"factory-ops/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type routesEnv struct {
	store   *memstore.Store
	auth    *services.AuthService
	chat    *services.ChatService
	dir     *websocket.SessionDirectory
	handler http.Handler
}

func newRoutesEnv(t *testing.T, health func(context.Context) error) *routesEnv {
	t.Helper()
	cfg := &config.Config{AppMode: TestMode, AppPort: "0", AuthCookieName: "access_token", JWTSecret: "routes-secret", JWTExpiryMin: 5}
	l := logger.NewFromZap(zap.NewNop())

	store := memstore.New()
	auth := services.NewAuthService(store.Users(), cfg)
	eventLogger := websocket.NewEventLogger(zap.NewNop())
	dir := websocket.NewSessionDirectory(nil, nil)
	hub := websocket.NewHub(dir, 0, eventLogger)

	publisher := services.NewEventPublisher(hub, nil, nil)
	notifications := services.NewNotificationService(store.Notifications(), publisher, 0)
	chat := services.NewChatService(store.Users(), store.Conversations(), store.Messages(), notifications, publisher, nil)
	receipts := services.NewReceiptService(store.Conversations(), store.Messages(), publisher, nil)
	conversations := services.NewConversationService(store.Conversations(), store.Messages(), store.Users(), publisher)
	dispatcher := websocket.NewDispatcher(services.NewMembershipService(store.Conversations()), chat, receipts, eventLogger)

	srv := New(cfg, l)
	srv.SetupRoutes(&Handlers{
		Conversation: handler.NewConversationHandler(conversations),
		Message:      handler.NewMessageHandler(conversations),
		Notification: handler.NewNotificationHandler(notifications),
		Attachment:   handler.NewAttachmentHandler(services.NewAttachmentService(nil, 0)),
		User:         handler.NewUserHandler(services.NewUserService(store.Users()), dir),
		Realtime:     websocket.NewHandler(auth, hub, dispatcher, eventLogger, websocket.HandlerOptions{}),
	}, Dependencies{Auth: auth, Health: health})

	t.Cleanup(func() {
		hub.Shutdown()
		chat.Wait()
	})
	return &routesEnv{store: store, auth: auth, chat: chat, dir: dir, handler: srv.Engine()}
}

func (e *routesEnv) addUser(t *testing.T, name string) (user.User, string) {
	t.Helper()
	u := user.User{ID: uuid.New(), Username: name, DisplayName: name, Status: user.StatusActive}
	e.store.PutUser(u)
	token, _, err := e.auth.IssueAccessToken(u.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

func (e *routesEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	if data != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", env.Data, err)
		}
	}
	return env
}

func TestPingAndHealth(t *testing.T) {
	healthy := true
	env := newRoutesEnv(t, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("database unreachable")
	})

	if rec := env.do(t, http.MethodGet, "/ping", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ping = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}

	healthy = false
	rec = env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec, nil).Code != "UNHEALTHY" {
		t.Fatalf("unhealthy = %d %s", rec.Code, rec.Body.String())
	}
}

func TestV1RequiresAuth(t *testing.T) {
	env := newRoutesEnv(t, nil)

	for _, token := range []string{"", "garbage"} {
		rec := env.do(t, http.MethodGet, "/v1/conversations", token, nil)
		if rec.Code != http.StatusUnauthorized || decode(t, rec, nil).Code != "UNAUTHORIZED" {
			t.Fatalf("token %q: %d %s", token, rec.Code, rec.Body.String())
		}
	}
}

func TestAuthCookieAccepted(t *testing.T) {
	env := newRoutesEnv(t, nil)
	_, token := env.addUser(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications/unread-count", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie auth = %d %s", rec.Code, rec.Body.String())
	}
}

func TestConversationRoutes(t *testing.T) {
	env := newRoutesEnv(t, nil)
	_, aliceToken := env.addUser(t, "alice")
	bob, bobToken := env.addUser(t, "bob")
	carol, carolToken := env.addUser(t, "carol")

	rec := env.do(t, http.MethodPost, "/v1/conversations", aliceToken, map[string]any{
		"name":         "Line 4",
		"isGroup":      true,
		"participants": []string{bob.ID.String()},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID           string `json:"id"`
		Participants []struct {
			UserID string `json:"userId"`
		} `json:"participants"`
	}
	decode(t, rec, &created)
	if len(created.Participants) != 2 {
		t.Fatalf("participants = %+v", created.Participants)
	}

	if rec := env.do(t, http.MethodPost, "/v1/conversations", aliceToken, map[string]any{"participants": []string{"nope"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad participant id = %d", rec.Code)
	}

	path := "/v1/conversations/" + created.ID
	rec = env.do(t, http.MethodPost, path+"/participants", carolToken, map[string]string{"userId": carol.ID.String()})
	if rec.Code != http.StatusForbidden || decode(t, rec, nil).Code != "FORBIDDEN" {
		t.Fatalf("outsider add = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, path+"/participants", bobToken, map[string]string{"userId": carol.ID.String()}); rec.Code != http.StatusOK {
		t.Fatalf("add = %d %s", rec.Code, rec.Body.String())
	}

	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decode(t, env.do(t, http.MethodGet, "/v1/conversations", carolToken, nil), &page)
	if page.Total != 1 || page.Items[0].ID != created.ID {
		t.Fatalf("carol conversations = %+v", page)
	}

	if rec := env.do(t, http.MethodDelete, path+"/participants/me", carolToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("leave = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path+"/messages", carolToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("history after leave = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/conversations/not-a-uuid/messages", aliceToken, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad conversation id = %d", rec.Code)
	}
}

func TestMessageHistoryCursor(t *testing.T) {
	env := newRoutesEnv(t, nil)
	alice, aliceToken := env.addUser(t, "alice")
	bob, _ := env.addUser(t, "bob")

	now := time.Now()
	conv := &conversation.Conversation{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	if err := env.store.Conversations().Create(t.Context(), conv, []uuid.UUID{alice.ID, bob.ID}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.chat.SendMessage(t.Context(), services.SendMessageInput{SenderID: bob.ID, ConversationID: conv.ID, Content: "status ok"}); err != nil {
			t.Fatalf("send: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	env.chat.Wait()

	path := "/v1/conversations/" + conv.ID.String() + "/messages"
	var first struct {
		Messages   []json.RawMessage `json:"messages"`
		NextBefore *time.Time        `json:"nextBefore"`
	}
	decode(t, env.do(t, http.MethodGet, path+"?limit=2", aliceToken, nil), &first)
	if len(first.Messages) != 2 || first.NextBefore == nil {
		t.Fatalf("first page = %d, cursor %v", len(first.Messages), first.NextBefore)
	}

	var second struct {
		Messages   []json.RawMessage `json:"messages"`
		NextBefore *time.Time        `json:"nextBefore"`
	}
	decode(t, env.do(t, http.MethodGet, path+"?limit=2&before="+url.QueryEscape(first.NextBefore.Format(time.RFC3339Nano)), aliceToken, nil), &second)
	if len(second.Messages) != 1 {
		t.Fatalf("second page = %d", len(second.Messages))
	}

	if rec := env.do(t, http.MethodGet, path+"?before=yesterday", aliceToken, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad cursor = %d", rec.Code)
	}
}

func TestNotificationRoutes(t *testing.T) {
	env := newRoutesEnv(t, nil)
	alice, aliceToken := env.addUser(t, "alice")
	_, bobToken := env.addUser(t, "bob")

	notifications := services.NewNotificationService(env.store.Notifications(), services.NewEventPublisher(nil, nil, nil), 0)
	var mine []uuid.UUID
	for _, title := range []string{"Press 2 alarm", "Shift handover"} {
		n, err := notifications.Create(t.Context(), alice.ID, services.NotificationInput{
			Type: notification.TypeSystem, Title: title, Content: title,
		})
		if err != nil {
			t.Fatalf("create notification: %v", err)
		}
		mine = append(mine, n.ID)
	}

	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, env.do(t, http.MethodGet, "/v1/notifications/unread-count", aliceToken, nil), &count)
	if count.Count != 2 {
		t.Fatalf("unread = %d", count.Count)
	}

	var updated struct {
		Updated int64 `json:"updated"`
	}
	ids := []string{mine[0].String()}
	decode(t, env.do(t, http.MethodPost, "/v1/notifications/read", bobToken, map[string]any{"ids": ids}), &updated)
	if updated.Updated != 0 {
		t.Fatalf("bob marked %d of alice's notifications", updated.Updated)
	}
	decode(t, env.do(t, http.MethodPost, "/v1/notifications/read", aliceToken, map[string]any{"ids": ids}), &updated)
	if updated.Updated != 1 {
		t.Fatalf("updated = %d", updated.Updated)
	}

	var page struct {
		Items []notification.Notification `json:"items"`
		Total int64                       `json:"total"`
	}
	decode(t, env.do(t, http.MethodGet, "/v1/notifications?unread=true", aliceToken, nil), &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != mine[1] {
		t.Fatalf("unread page = %+v", page)
	}

	decode(t, env.do(t, http.MethodPost, "/v1/notifications/read-all", aliceToken, nil), &updated)
	if updated.Updated != 1 {
		t.Fatalf("read-all updated = %d", updated.Updated)
	}
	if rec := env.do(t, http.MethodPost, "/v1/notifications/read", aliceToken, map[string]any{"ids": []string{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ids = %d", rec.Code)
	}
}

func TestUserSearchAndPresence(t *testing.T) {
	env := newRoutesEnv(t, nil)
	alice, aliceToken := env.addUser(t, "alice")
	env.addUser(t, "albert")
	env.addUser(t, "bob")

	var profiles []user.Profile
	decode(t, env.do(t, http.MethodGet, "/v1/users/search?q=al", aliceToken, nil), &profiles)
	if len(profiles) != 2 {
		t.Fatalf("profiles = %+v", profiles)
	}

	env.dir.Register(alice.ID, "phone")
	var online struct {
		Users []string `json:"users"`
		Count int      `json:"count"`
	}
	decode(t, env.do(t, http.MethodGet, "/v1/presence/online", aliceToken, nil), &online)
	if online.Count != 1 || online.Users[0] != alice.ID.String() {
		t.Fatalf("online = %+v", online)
	}
}

func TestPresignWithoutStorage(t *testing.T) {
	env := newRoutesEnv(t, nil)
	_, token := env.addUser(t, "alice")

	rec := env.do(t, http.MethodPost, "/v1/attachments/presign", token, map[string]any{
		"fileName": "report.pdf", "contentType": "application/pdf", "fileSize": 1024,
	})
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec, nil).Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("presign = %d %s", rec.Code, rec.Body.String())
	}
}
