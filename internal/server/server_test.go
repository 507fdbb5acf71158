package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentineltk/sentinel/internal/app"
	"github.com/sentineltk/sentinel/internal/engine"
	"github.com/sentineltk/sentinel/internal/model"
	"github.com/sentineltk/sentinel/internal/rules"
	"github.com/sentineltk/sentinel/internal/server"
	"github.com/sentineltk/sentinel/internal/storage"
	"github.com/sentineltk/sentinel/internal/testutil"
)

func newTestServer(t *testing.T) (*server.Server, *testutil.DummyReputation) {
	t.Helper()

	logger := &testutil.DummyLogger{}
	store := storage.NewMemoryStore(storage.Config{})
	rep := &testutil.DummyReputation{Scores: map[string]int{}}

	eng, err := engine.NewRiskEngine(engine.DefaultWeights(), store, rep, logger)
	if err != nil {
		t.Fatalf("NewRiskEngine: %v", err)
	}
	ruleMgr, err := rules.NewManager(rules.NewMemoryPlatform(), logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	hub := server.NewActionHub(logger)
	coordinator, err := app.NewCoordinator(eng, store, ruleMgr, rep, hub, hub, logger)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	s, err := server.NewServer(server.Config{ListenAddr: ":0"}, coordinator, store, hub, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, rep
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORSHeaderPresent(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := doJSON(t, s, "GET", "/history", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}
}

// ─── Validation ────────────────────────────────────────────────────────

func TestServer_RejectsMalformedInput(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad tab id", "POST", "/tabs/abc/navigate", `{"url":"https://x.com"}`, http.StatusBadRequest},
		{"missing url", "POST", "/tabs/1/navigate", `{}`, http.StatusBadRequest},
		{"invalid json", "POST", "/tabs/1/navigate", `{`, http.StatusBadRequest},
		{"unknown tab state", "GET", "/tabs/99/state", "", http.StatusNotFound},
		{"signals unknown tab", "POST", "/tabs/99/signals", `{"hasFakeBadge":true}`, http.StatusNotFound},
		{"override unknown tab", "POST", "/tabs/99/override", "", http.StatusNotFound},
		{"whitelist missing domain", "POST", "/whitelist", `{}`, http.StatusBadRequest},
		{"report missing domain", "POST", "/report", `{"reason":"phishing"}`, http.StatusBadRequest},
		{"report bad reason", "POST", "/report", `{"domain":"x.com","reason":"bogus"}`, http.StatusBadRequest},
		{"history bad days", "GET", "/history?days=zero", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Errorf("%s %s = %d, want %d (body: %s)", tc.method, tc.path, rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

// ─── Tab lifecycle over HTTP ───────────────────────────────────────────

func TestServer_NavigateReturnsSession(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := doJSON(t, s, "POST", "/tabs/1/navigate", `{"url":"https://example.com/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	var session model.TabSession
	decodeJSON(t, rec, &session)
	if session.Hostname != "example.com" {
		t.Errorf("hostname = %q", session.Hostname)
	}
	if session.Score == nil || session.Score.Level != model.LevelSafe {
		t.Errorf("score = %+v, want safe", session.Score)
	}
}

func TestServer_SignalsUpdateScore(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	doJSON(t, s, "POST", "/tabs/2/navigate", `{"url":"https://gooogle.com/"}`)

	rec := doJSON(t, s, "POST", "/tabs/2/signals",
		`{"hasFakeBadge":true,"hasSensitiveInput":true,"sensitiveInputTypes":["credit_card"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	var session model.TabSession
	decodeJSON(t, rec, &session)
	// 20 typosquat + 25 badge + 8 cc.
	if session.Score.Score != 53 {
		t.Errorf("score = %d, want 53", session.Score.Score)
	}
}

func TestServer_OverrideAndState(t *testing.T) {
	t.Parallel()
	s, rep := newTestServer(t)
	rep.Scores["badsite.com"] = 80

	doJSON(t, s, "POST", "/tabs/3/navigate", `{"url":"https://badsite.com/"}`)

	rec := doJSON(t, s, "POST", "/tabs/3/override", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("override status = %d", rec.Code)
	}

	state := doJSON(t, s, "GET", "/tabs/3/state", "")
	var session model.TabSession
	decodeJSON(t, state, &session)
	if !session.UserOverride || session.QuarantineActive {
		t.Errorf("session = %+v", session)
	}
}

func TestServer_TabDelete(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	doJSON(t, s, "POST", "/tabs/4/navigate", `{"url":"https://example.com/"}`)

	if rec := doJSON(t, s, "DELETE", "/tabs/4", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := doJSON(t, s, "GET", "/tabs/4/state", ""); rec.Code != http.StatusNotFound {
		t.Errorf("state after delete = %d, want 404", rec.Code)
	}
}

// ─── Whitelist / report / history ──────────────────────────────────────

func TestServer_WhitelistLifecycle(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	if rec := doJSON(t, s, "POST", "/whitelist", `{"domain":"example.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	var list struct {
		Domains []string `json:"domains"`
	}
	rec := doJSON(t, s, "GET", "/whitelist", "")
	decodeJSON(t, rec, &list)
	if len(list.Domains) != 1 || list.Domains[0] != "example.com" {
		t.Errorf("domains = %v", list.Domains)
	}

	if rec := doJSON(t, s, "DELETE", "/whitelist/example.com", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, s, "GET", "/whitelist", "")
	decodeJSON(t, rec, &list)
	if len(list.Domains) != 0 {
		t.Errorf("domains after delete = %v", list.Domains)
	}
}

func TestServer_ReportAccepted(t *testing.T) {
	t.Parallel()
	s, rep := newTestServer(t)

	rec := doJSON(t, s, "POST", "/report", `{"domain":"scam.example","reason":"fake_shop"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}
	if len(rep.ReportCalls) != 1 || rep.ReportCalls[0].Reason != model.ReasonFakeShop {
		t.Errorf("report calls = %+v", rep.ReportCalls)
	}
}

func TestServer_HistoryAfterNavigation(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	doJSON(t, s, "POST", "/tabs/5/navigate", `{"url":"https://example.com/"}`)

	var payload struct {
		Records []storage.ScanRecord `json:"records"`
	}
	rec := doJSON(t, s, "GET", "/history?days=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	decodeJSON(t, rec, &payload)
	if len(payload.Records) != 1 || payload.Records[0].Domain != "example.com" {
		t.Errorf("records = %+v", payload.Records)
	}
}

// ─── WebSocket action stream ───────────────────────────────────────────

func TestServer_ActionStreamReplaysVerdict(t *testing.T) {
	t.Parallel()
	s, rep := newTestServer(t)
	rep.Scores["badsite.com"] = 80

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	doJSON(t, s, "POST", "/tabs/6/navigate", `{"url":"https://badsite.com/"}`)

	wsURL := strings.Replace(httpSrv.URL, "http", "ws", 1) + "/ws/tabs/6/actions"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg server.ActionMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "risk_action" || msg.Action != model.ActionFullBlock || msg.Score != 80 {
		t.Errorf("replayed message = %+v", msg)
	}
}

func TestServer_ActionStreamReceivesLiveUpdates(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	httpSrv := httptest.NewServer(s)
	defer httpSrv.Close()

	wsURL := strings.Replace(httpSrv.URL, "http", "ws", 1) + "/ws/tabs/7/actions"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	doJSON(t, s, "POST", "/tabs/7/navigate", `{"url":"https://example.com/"}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg server.ActionMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Action != model.ActionNone {
		t.Errorf("message = %+v, want NONE", msg)
	}
}
