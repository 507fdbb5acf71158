package reputation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentineltk/sentinel/internal/model"
	"github.com/sentineltk/sentinel/internal/reputation"
	"github.com/sentineltk/sentinel/internal/testutil"
)

func newClient(t *testing.T, baseURL string) *reputation.Client {
	t.Helper()
	cfg := reputation.DefaultConfig()
	cfg.BaseURL = baseURL
	c, err := reputation.NewClient(cfg, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClient_Score(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/score" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Domain != "badsite.com" {
			t.Errorf("domain = %q", body.Domain)
		}
		json.NewEncoder(w).Encode(map[string]int{"score": 35})
	}))
	defer srv.Close()

	score, ok := newClient(t, srv.URL).Score(context.Background(), "badsite.com")
	if !ok || score != 35 {
		t.Errorf("Score = (%d, %v), want (35, true)", score, ok)
	}
}

func TestClient_Score_DegradesToNoData(t *testing.T) {
	t.Parallel()

	t.Run("non-200", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		if score, ok := newClient(t, srv.URL).Score(context.Background(), "x.com"); ok || score != 0 {
			t.Errorf("Score = (%d, %v), want (0, false)", score, ok)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		if _, ok := newClient(t, srv.URL).Score(context.Background(), "x.com"); ok {
			t.Error("malformed body must answer no-data")
		}
	})

	t.Run("offline", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		if _, ok := newClient(t, srv.URL).Score(context.Background(), "x.com"); ok {
			t.Error("connection failure must answer no-data")
		}
	})

	t.Run("slow backend", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		cfg := reputation.Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}
		c, err := reputation.NewClient(cfg, &testutil.DummyLogger{}, nil)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if _, ok := c.Score(context.Background(), "x.com"); ok {
			t.Error("timeout must answer no-data")
		}
	})
}

func TestClient_Report(t *testing.T) {
	t.Parallel()

	var got struct {
		Domain string `json:"domain"`
		Reason string `json:"reason"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/report" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).Report(context.Background(), "scam.example", model.ReasonFakeShop)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got.Domain != "scam.example" || got.Reason != "fake_shop" {
		t.Errorf("payload = %+v", got)
	}
}

func TestClient_Report_RejectionSwallowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// Backend policy (rate limits, validation) must never bubble up to the
	// user flow; only transport failures do.
	if err := newClient(t, srv.URL).Report(context.Background(), "scam.example", model.ReasonScam); err != nil {
		t.Errorf("rejected report should be swallowed, got %v", err)
	}
}

func TestClient_Report_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	if err := newClient(t, srv.URL).Report(context.Background(), "scam.example", model.ReasonScam); err == nil {
		t.Error("transport failure should surface an error")
	}
}

func TestClient_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := reputation.NewClient(reputation.Config{}, &testutil.DummyLogger{}, nil); err == nil {
		t.Error("empty base URL should be rejected")
	}
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var noop reputation.Noop
	if score, ok := noop.Score(context.Background(), "x.com"); ok || score != 0 {
		t.Errorf("Noop.Score = (%d, %v)", score, ok)
	}
	if err := noop.Report(context.Background(), "x.com", model.ReasonOther); err == nil {
		t.Error("Noop.Report should error")
	}
}
