package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/calls"
	"github.com/widechat/widechat/internal/chat"
	"github.com/widechat/widechat/internal/config"
	"github.com/widechat/widechat/internal/events"
	"github.com/widechat/widechat/internal/identity"
	"github.com/widechat/widechat/internal/presence"
	"github.com/widechat/widechat/internal/signaling"
	"github.com/widechat/widechat/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	cfg := config.Config{
		AllowAnyOrigin: true,
	}
	st := store.NewInMemoryStore()
	marker := presence.NewMemoryMarker()
	registry := presence.NewRegistry(30*time.Second, marker, zerolog.Nop())
	router := events.NewRouter(registry, nil, zerolog.Nop())
	events.BindPresence(registry, router, nil)
	relay := signaling.NewRelay(router, nil, zerolog.Nop())
	issuer := identity.NewIssuer("test-secret", time.Hour)

	srv := New(cfg, Deps{
		Registry: registry,
		Marker:   marker,
		Relay:    relay,
		Calls:    calls.NewService(st, router, zerolog.Nop()),
		Chat:     chat.NewService(st, router, zerolog.Nop()),
		Store:    st,
		Issuer:   issuer,
		Log:      zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, client *http.Client, url, token string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return res
}

func register(t *testing.T, ts *httptest.Server, username, email string) (token, userID string) {
	t.Helper()
	res := postJSON(t, http.DefaultClient, ts.URL+"/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "correct-horse",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"uid"`
		} `json:"user"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if out.Token == "" || out.User.ID == "" {
		t.Fatalf("register response missing token or uid")
	}
	return out.Token, out.User.ID
}

func TestRegisterAndLogin(t *testing.T) {
	ts, _ := newTestServer(t)

	_, _ = register(t, ts, "alice", "alice@example.com")

	dup := postJSON(t, http.DefaultClient, ts.URL+"/v1/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "another-pass",
	})
	defer dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want %d", dup.StatusCode, http.StatusConflict)
	}

	login := postJSON(t, http.DefaultClient, ts.URL+"/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	defer login.Body.Close()
	if login.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", login.StatusCode, http.StatusOK)
	}

	wrong := postJSON(t, http.DefaultClient, ts.URL+"/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	defer wrong.Body.Close()
	if wrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want %d", wrong.StatusCode, http.StatusUnauthorized)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, http.DefaultClient, ts.URL+"/v1/messages", "", map[string]string{
		"receiver_id": "bob", "text": "hi",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	forged := postJSON(t, http.DefaultClient, ts.URL+"/v1/messages", "not-a-token", map[string]string{
		"receiver_id": "bob", "text": "hi",
	})
	defer forged.Body.Close()
	if forged.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d, want %d", forged.StatusCode, http.StatusUnauthorized)
	}
}

func TestSendAndEditMessage(t *testing.T) {
	ts, _ := newTestServer(t)
	aliceToken, _ := register(t, ts, "alice", "alice@example.com")
	bobToken, bobID := register(t, ts, "bob", "bob@example.com")

	res := postJSON(t, http.DefaultClient, ts.URL+"/v1/messages", aliceToken, map[string]string{
		"receiver_id": bobID,
		"text":        "hello",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var msg struct {
		ID string `json:"message_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}

	// Receiver must not be able to edit the sender's message.
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/messages/"+msg.ID, bytes.NewReader([]byte(`{"text":"hacked"}`)))
	req.Header.Set("Authorization", "Bearer "+bobToken)
	edit, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("edit request: %v", err)
	}
	defer edit.Body.Close()
	if edit.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign edit status = %d, want %d", edit.StatusCode, http.StatusForbidden)
	}
}

func TestUserStatusFallsBackToMarker(t *testing.T) {
	ts, srv := newTestServer(t)
	aliceToken, _ := register(t, ts, "alice", "alice@example.com")
	_, bobID := register(t, ts, "bob", "bob@example.com")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/users/"+bobID+"/status", nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer res.Body.Close()
	var payload struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Online {
		t.Fatal("bob has no session, status must be offline")
	}

	// A live registry session flips the answer without touching the marker.
	srv.registry.Activate(bobID, newWSConn())
	res2, err := http.DefaultClient.Do(req.Clone(req.Context()))
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer res2.Body.Close()
	if err := json.NewDecoder(res2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Online {
		t.Fatal("bob has a session, status must be online")
	}
}

func TestSetOwnStatus(t *testing.T) {
	ts, srv := newTestServer(t)
	aliceToken, aliceID := register(t, ts, "alice", "alice@example.com")

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/users/status", bytes.NewReader([]byte(`{"online":true}`)))
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /v1/users/status: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	user, err := srv.store.UserByID(req.Context(), aliceID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if !user.IsOnline {
		t.Fatal("user doc should be flagged online")
	}

	off, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/users/status", bytes.NewReader([]byte(`{"online":false}`)))
	off.Header.Set("Authorization", "Bearer "+aliceToken)
	res2, err := http.DefaultClient.Do(off)
	if err != nil {
		t.Fatalf("PUT /v1/users/status: %v", err)
	}
	res2.Body.Close()

	user, _ = srv.store.UserByID(off.Context(), aliceID)
	if user.IsOnline || user.LastSeen.IsZero() {
		t.Fatalf("user doc should be offline with a last-seen stamp, got %+v", user)
	}
	marker, err := srv.marker.Get(off.Context(), aliceID)
	if err != nil {
		t.Fatalf("marker Get: %v", err)
	}
	if marker.Online {
		t.Fatal("marker should mirror the manual offline flag")
	}
}

func TestSearchUsersByUsername(t *testing.T) {
	ts, _ := newTestServer(t)
	aliceToken, _ := register(t, ts, "alice", "alice@example.com")
	_, _ = register(t, ts, "bob", "bob@example.com")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/users/search?username=bo", nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("search request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var payload struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(payload.Users) != 1 || payload.Users[0].Username != "bob" {
		t.Fatalf("unexpected search result: %+v", payload.Users)
	}
}

func TestStatusPostsRoute(t *testing.T) {
	ts, _ := newTestServer(t)
	aliceToken, aliceID := register(t, ts, "alice", "alice@example.com")

	post := postJSON(t, http.DefaultClient, ts.URL+"/v1/status", aliceToken, map[string]string{
		"content": "out hiking",
	})
	post.Body.Close()
	if post.StatusCode != http.StatusCreated {
		t.Fatalf("post status = %d, want %d", post.StatusCode, http.StatusCreated)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/status/"+aliceID, nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var payload struct {
		Statuses []struct {
			Content string `json:"content"`
		} `json:"statuses"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode statuses: %v", err)
	}
	if len(payload.Statuses) != 1 || payload.Statuses[0].Content != "out hiking" {
		t.Fatalf("unexpected statuses: %+v", payload.Statuses)
	}
}

func TestForwardAndBroadcastRoutes(t *testing.T) {
	ts, _ := newTestServer(t)
	aliceToken, _ := register(t, ts, "alice", "alice@example.com")
	bobToken, bobID := register(t, ts, "bob", "bob@example.com")
	_, carolID := register(t, ts, "carol", "carol@example.com")

	res := postJSON(t, http.DefaultClient, ts.URL+"/v1/messages", aliceToken, map[string]string{
		"receiver_id": bobID,
		"text":        "original",
	})
	defer res.Body.Close()
	var msg struct {
		ID string `json:"message_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}

	fwd := postJSON(t, http.DefaultClient, ts.URL+"/v1/messages/"+msg.ID+"/forward", bobToken, map[string]string{
		"receiver_id": carolID,
	})
	defer fwd.Body.Close()
	if fwd.StatusCode != http.StatusCreated {
		t.Fatalf("forward status = %d, want %d", fwd.StatusCode, http.StatusCreated)
	}
	var forwarded struct {
		ID       string `json:"message_id"`
		SenderID string `json:"sender_id"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(fwd.Body).Decode(&forwarded); err != nil {
		t.Fatalf("decode forward: %v", err)
	}
	if forwarded.ID == msg.ID || forwarded.SenderID != bobID || forwarded.Text != "original" {
		t.Fatalf("unexpected forwarded message: %+v", forwarded)
	}

	bc := postJSON(t, http.DefaultClient, ts.URL+"/v1/broadcasts", aliceToken, map[string]any{
		"receiver_ids": []string{bobID, carolID},
		"text":         "to everyone",
	})
	defer bc.Body.Close()
	if bc.StatusCode != http.StatusCreated {
		t.Fatalf("broadcast status = %d, want %d", bc.StatusCode, http.StatusCreated)
	}
	var sent struct {
		Messages []struct {
			ReceiverID string `json:"receiver_id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(bc.Body).Decode(&sent); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if len(sent.Messages) != 2 {
		t.Fatalf("broadcast sent %d messages, want 2", len(sent.Messages))
	}

	empty := postJSON(t, http.DefaultClient, ts.URL+"/v1/broadcasts", aliceToken, map[string]any{
		"receiver_ids": []string{},
		"text":         "void",
	})
	defer empty.Body.Close()
	if empty.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty broadcast status = %d, want %d", empty.StatusCode, http.StatusBadRequest)
	}
}

func TestCallFlowOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)
	aliceToken, _ := register(t, ts, "alice", "alice@example.com")
	bobToken, bobID := register(t, ts, "bob", "bob@example.com")

	res := postJSON(t, http.DefaultClient, ts.URL+"/v1/calls", aliceToken, map[string]string{
		"receiver_id": bobID,
		"call_type":   "video",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("initiate status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created struct {
		Call struct {
			ID string `json:"call_id"`
		} `json:"call"`
		Delivered bool `json:"delivered"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if created.Delivered {
		t.Fatal("bob is offline, delivered must be false")
	}

	accept := postJSON(t, http.DefaultClient, ts.URL+"/v1/calls/"+created.Call.ID+"/response", bobToken, map[string]string{
		"action": "accept",
	})
	defer accept.Body.Close()
	if accept.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d, want %d", accept.StatusCode, http.StatusOK)
	}
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
