package linkmux

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// localHostRequest creates a request that passes tsweb's loopback check.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAdminSendAPI(t *testing.T) {
	port, _, replies := newPipePort()
	m := New[Porter](port)
	defer m.Close()
	mux := http.NewServeMux()
	AttachAdminRoutes(mux, m)

	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(replies).ReadString('\n')
		got <- line
	}()

	tests := []struct {
		name   string
		method string
		frame  string
		status int
	}{
		{"post", http.MethodPost, `42["manual",{}]`, http.StatusOK},
		{"empty", http.MethodPost, "  ", http.StatusBadRequest},
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"frame": {tt.frame}}
			req := localHostRequest(tt.method, "/debug/link-send-api", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	select {
	case line := <-got:
		if line != "42[\"manual\",{}]\n" {
			t.Errorf("device received %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame never reached the device")
	}
}

func TestAdminPages(t *testing.T) {
	port, _, _ := newPipePort()
	m := New[Porter](port)
	defer m.Close()
	mux := http.NewServeMux()
	AttachAdminRoutes(mux, m)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/link-send", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "link-tail.js") {
		t.Errorf("link-send page: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/link-tail.js", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "EventSource") {
		t.Errorf("tail script missing EventSource")
	}
}

func TestAdminTail(t *testing.T) {
	port, _, _ := newPipePort()
	m := New[Porter](port)
	defer m.Close()
	mux := http.NewServeMux()
	AttachAdminRoutes(mux, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := localHostRequest(http.MethodGet, "/debug/link-tail", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), ": ping") {
		t.Errorf("body = %q, want initial ping", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodPost, "/debug/link-tail", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}
