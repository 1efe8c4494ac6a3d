package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// seedRun stores a finished run with the given links and returns its id.
func seedRun(t *testing.T, server *Server, input string, links ...string) string {
	t.Helper()
	id, err := server.db.CreateRun(input, "lines")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	for _, l := range links {
		if _, err := server.db.AddLink(id, "host", l); err != nil {
			t.Fatalf("failed to add link: %v", err)
		}
	}
	if err := server.db.FinishRun(id, len(links)); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}
	return id
}

func serve(server *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

// TestHandleIndex tests the run list page.
func TestHandleIndex(t *testing.T) {
	server := newTestServer(t)

	t.Run("GET with no runs", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/")

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("expected Content-Type 'text/html; charset=utf-8', got %q", ct)
		}
		if !strings.Contains(w.Body.String(), "No uploads recorded yet") {
			t.Error("expected empty-state message")
		}
	})

	t.Run("GET lists runs", func(t *testing.T) {
		id := seedRun(t, server, "holiday.mkv", "https://files.catbox.moe/a.mkv")

		w := serve(server, http.MethodGet, "/")

		body := w.Body.String()
		if !strings.Contains(body, "holiday.mkv") {
			t.Error("expected run input in page")
		}
		if !strings.Contains(body, "/runs/"+id) {
			t.Error("expected link to run detail")
		}
	})

	t.Run("POST returns method not allowed", func(t *testing.T) {
		w := serve(server, http.MethodPost, "/")

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})
}

// TestHandleRun tests the run detail page.
func TestHandleRun(t *testing.T) {
	server := newTestServer(t)
	id := seedRun(t, server, "holiday.mkv", "https://files.catbox.moe/a.mkv", "https://0x0.st/b.mkv")

	t.Run("GET shows links", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/runs/"+id)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		body := w.Body.String()
		for _, want := range []string{"https://files.catbox.moe/a.mkv", "https://0x0.st/b.mkv", "style=markdown"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected page to contain %q", want)
			}
		}
	})

	t.Run("unknown run returns not found", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/runs/does-not-exist")

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("DELETE returns method not allowed", func(t *testing.T) {
		w := serve(server, http.MethodDelete, "/runs/"+id)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})
}

// TestHandleRunLinks tests the plain-text formatted link export.
func TestHandleRunLinks(t *testing.T) {
	server := newTestServer(t)
	id := seedRun(t, server, "holiday.mkv", "https://files.catbox.moe/a.mkv", "https://0x0.st/b.mkv")

	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"default uses run style", "", "https://files.catbox.moe/a.mkv\nhttps://0x0.st/b.mkv\n"},
		{"markdown", "?style=markdown", "- [catbox.moe](https://files.catbox.moe/a.mkv)\n- [0x0.st](https://0x0.st/b.mkv)\n"},
		{"reddit", "?style=reddit", "[Mirror 1](https://files.catbox.moe/a.mkv) | [Mirror 2](https://0x0.st/b.mkv)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, http.MethodGet, "/runs/"+id+"/links"+tt.query)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
				t.Errorf("expected Content-Type 'text/plain; charset=utf-8', got %q", ct)
			}
			if got := w.Body.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}

	t.Run("invalid style returns bad request", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/runs/"+id+"/links?style=html")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("unknown run returns not found", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/runs/nope/links")

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("POST returns method not allowed", func(t *testing.T) {
		w := serve(server, http.MethodPost, "/runs/"+id+"/links")

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})
}
