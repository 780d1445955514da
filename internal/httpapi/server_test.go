package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, opts ServerOptions) (*App, *httptest.Server) {
	t.Helper()
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	opts.Addr = "127.0.0.1:0"
	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(func() {
		app.Hub.Close()
		ts.Close()
		_ = app.Engine.Store.Close()
	})
	return app, ts
}

// doJSON sends body (if any) as JSON and decodes the response into out (if any).
func doJSON(t *testing.T, c *http.Client, method, url string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s (status %d): %v", method, url, resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

func createID(t *testing.T, url string, body any) string {
	t.Helper()
	var out struct {
		ID string `json:"id"`
	}
	if code := doJSON(t, nil, http.MethodPost, url, body, &out); code != http.StatusCreated {
		t.Fatalf("POST %s status=%d", url, code)
	}
	if out.ID == "" {
		t.Fatalf("POST %s: empty id", url)
	}
	return out.ID
}

func TestServerSmoke(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})

	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/health", nil, nil); code != http.StatusOK {
		t.Fatalf("/health status=%d", code)
	}

	var cfg map[string]any
	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/config", nil, &cfg); code != http.StatusOK {
		t.Fatalf("/config status=%d", code)
	}
	if cfg["profile"] != "rich" || cfg["bootstrap_id"] == "" {
		t.Fatalf("/config: got %v", cfg)
	}

	wsID := createID(t, ts.URL+"/workspaces", map[string]any{"name": "Ops"})

	var list []map[string]any
	doJSON(t, nil, http.MethodGet, ts.URL+"/workspaces", nil, &list)
	if len(list) != 1 || list[0]["id"] != wsID {
		t.Fatalf("GET /workspaces: got %v", list)
	}

	var ws map[string]any
	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/workspaces/"+wsID, nil, &ws); code != http.StatusOK {
		t.Fatalf("GET workspace status=%d", code)
	}
	if ws["name"] != "Ops" {
		t.Fatalf("workspace: got %v", ws)
	}

	var errBody struct{ Error string }
	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/workspaces/missing", nil, &errBody); code != http.StatusNotFound {
		t.Fatalf("GET missing workspace status=%d", code)
	}
	if errBody.Error == "" {
		t.Fatal("expected error message in JSON")
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(b), `missionctl_tasks{status="planning"} 0`) {
		t.Fatalf("/metrics: got %s", b)
	}
}

func TestBootstrap(t *testing.T) {
	t.Parallel()
	app, ts := newTestServer(t, ServerOptions{})
	wsID, err := app.Engine.SeedDemo(t.Context())
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	var boot struct {
		Workspaces       []map[string]any `json:"workspaces"`
		InitialWorkspace *string          `json:"initial_workspace"`
		Agents           []map[string]any `json:"agents"`
		Tasks            []map[string]any `json:"tasks"`
		Activities       []map[string]any `json:"activities"`
	}
	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/bootstrap", nil, &boot); code != http.StatusOK {
		t.Fatalf("GET /bootstrap status=%d", code)
	}
	if boot.InitialWorkspace == nil || *boot.InitialWorkspace != wsID {
		t.Fatalf("initial_workspace: got %v want %s", boot.InitialWorkspace, wsID)
	}
	if len(boot.Agents) != 3 || len(boot.Tasks) != 1 || len(boot.Activities) == 0 {
		t.Fatalf("bootstrap: agents=%d tasks=%d activities=%d", len(boot.Agents), len(boot.Tasks), len(boot.Activities))
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{MaxBodyBytes: 64})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing task", http.MethodGet, "/tasks/nope", "", http.StatusNotFound},
		{"missing agent", http.MethodPatch, "/agents/nope", `{"status":"working"}`, http.StatusNotFound},
		{"empty workspace name", http.MethodPost, "/workspaces", `{"name":""}`, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/workspaces", `{`, http.StatusBadRequest},
		{"body too large", http.MethodPost, "/workspaces", `{"name":"` + strings.Repeat("x", 100) + `"}`, http.StatusRequestEntityTooLarge},
		{"method", http.MethodDelete, "/workspaces", "", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/tasks/a/b/c", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/activities?limit=-1", "", http.StatusBadRequest},
		{"bad activity type", http.MethodGet, "/activities?type=bogus", "", http.StatusBadRequest},
		{"missing delivered", http.MethodPost, "/notifications/nope/delivered", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s %s: %v", tt.method, tt.path, err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("%s %s: status=%d want %d", tt.method, tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestPasswordGate(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{Password: "s3cret"})

	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/health", nil, nil); code != http.StatusOK {
		t.Fatalf("/health status=%d", code)
	}
	if code := doJSON(t, nil, http.MethodGet, ts.URL+"/workspaces", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("GET /workspaces without login status=%d", code)
	}
	if code := doJSON(t, nil, http.MethodPost, ts.URL+"/login", map[string]string{"password": "wrong"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d", code)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	c := &http.Client{Jar: jar}
	if code := doJSON(t, c, http.MethodPost, ts.URL+"/login", map[string]string{"password": "s3cret"}, nil); code != http.StatusOK {
		t.Fatalf("login status=%d", code)
	}
	if code := doJSON(t, c, http.MethodGet, ts.URL+"/workspaces", nil, nil); code != http.StatusOK {
		t.Fatalf("GET /workspaces with cookie status=%d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/workspaces", nil)
	req.Header.Set("X-API-Key", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with key: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /workspaces with X-API-Key status=%d", resp.StatusCode)
	}
}

func TestLoginWithoutPassword(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	if code := doJSON(t, nil, http.MethodPost, ts.URL+"/login", map[string]string{"password": "anything"}, nil); code != http.StatusOK {
		t.Fatalf("login status=%d", code)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{CORSOrigins: []string{"http://localhost:5173"}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/workspaces", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("Allow-Origin=%q", got)
	}
	allowed := resp.Header.Get("Access-Control-Allow-Headers")
	for _, h := range []string{"Content-Type", "X-API-Key", "Authorization"} {
		if !strings.Contains(allowed, h) {
			t.Errorf("Allow-Headers %q missing %s", allowed, h)
		}
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Errorf("Allow-Methods %q missing DELETE", resp.Header.Get("Access-Control-Allow-Methods"))
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/workspaces", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Allow-Origin %q", got)
	}
}
