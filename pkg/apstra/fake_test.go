package apstra

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeController stands in for the Apstra REST API. Routes are keyed by
// "METHOD /path"; every request except login is recorded in calls.
type fakeController struct {
	mu          sync.Mutex
	logins      int
	loginStatus int
	loginBody   string
	calls       []string
	bodies      map[string][]byte
	headers     map[string]http.Header
	routes      map[string]http.HandlerFunc
}

func newFakeController(t *testing.T) (*fakeController, *httptest.Server) {
	t.Helper()
	fc := &fakeController{
		loginStatus: http.StatusCreated,
		loginBody:   `{"token":"tok-123","id":"user-1"}`,
		bodies:      map[string][]byte{},
		headers:     map[string]http.Header{},
		routes:      map[string]http.HandlerFunc{},
	}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	return fc, srv
}

func (fc *fakeController) handle(key string, h http.HandlerFunc) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.routes[key] = h
}

func (fc *fakeController) respond(key string, status int, body string) {
	fc.handle(key, func(w http.ResponseWriter, _ *http.Request) {
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (fc *fakeController) setLogin(status int, body string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.loginStatus = status
	fc.loginBody = body
}

func (fc *fakeController) loginCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.logins
}

func (fc *fakeController) recorded() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]string(nil), fc.calls...)
}

func (fc *fakeController) bodyOf(key string) []byte {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.bodies[key]
}

func (fc *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.EscapedPath()
	body, _ := io.ReadAll(r.Body)

	fc.mu.Lock()
	if key == "POST "+loginPath {
		fc.logins++
		fc.bodies[key] = body
		fc.headers[key] = r.Header.Clone()
		status, resp := fc.loginStatus, fc.loginBody
		fc.mu.Unlock()
		// widen the window for concurrent first callers
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
		return
	}
	fc.calls = append(fc.calls, key)
	fc.bodies[key] = body
	fc.headers[key] = r.Header.Clone()
	h, ok := fc.routes[key]
	fc.mu.Unlock()

	if !ok {
		http.Error(w, "no route "+key, http.StatusNotFound)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:  baseURL,
		Username: "admin",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(testConfig(srv.URL), testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}
