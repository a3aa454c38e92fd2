package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestUploadRequestValidate(t *testing.T) {
	valid := UploadRequest{
		FilePath:    writeTempFile(t, "song.mp3", "audio bytes"),
		Description: "a perfectly fine description",
		Category:    "audio",
		AIConsent:   true,
	}

	tests := []struct {
		name    string
		mutate  func(r *UploadRequest)
		wantArg string
	}{
		{"missing file", func(r *UploadRequest) { r.FilePath = "/does/not/exist" }, "/does/not/exist"},
		{"directory instead of file", func(r *UploadRequest) { r.FilePath = t.TempDir() }, ""},
		{"short description", func(r *UploadRequest) { r.Description = "too short" }, "-description"},
		{"unknown category", func(r *UploadRequest) { r.Category = "video" }, "-category"},
		{"no consent", func(r *UploadRequest) { r.AIConsent = false }, "-consent"},
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %T, want *ValidationError", err)
			}
			if tt.wantArg != "" && verr.Arg != tt.wantArg {
				t.Errorf("got arg %q, want %q", verr.Arg, tt.wantArg)
			}
		})
	}
}

func TestOpenSession(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/session" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var in struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&in)
			if in.Name != "Alice" {
				t.Errorf("got name %q", in.Name)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"session_id": "abcDEF1234567890"})
		}))
		defer srv.Close()

		c := New(srv.URL, "")
		sid, err := c.OpenSession(ctx, "Alice")
		if err != nil {
			t.Fatalf("OpenSession failed: %v", err)
		}
		if sid != "abcDEF1234567890" {
			t.Errorf("got session id %q", sid)
		}
		if c.sessionID != sid {
			t.Error("client did not remember the session id")
		}
	})

	t.Run("server error surfaces the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "name is required"})
		}))
		defer srv.Close()

		c := New(srv.URL, "")
		if _, err := c.OpenSession(ctx, ""); err == nil {
			t.Fatal("expected error")
		} else if got := err.Error(); got != "failed to open session: name is required" {
			t.Errorf("got %q", got)
		}
	})
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	filePath := writeTempFile(t, "notes.txt", "file payload")
	req := UploadRequest{
		FilePath:    filePath,
		Description: "some interesting notes",
		Category:    "text",
		AIConsent:   true,
	}

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/uploads" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("X-Session-Id") != "abcDEF1234567890" {
				t.Error("missing session header")
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("failed to parse multipart form: %v", err)
			}
			if got := r.FormValue("description"); got != "some interesting notes" {
				t.Errorf("got description %q", got)
			}
			if got := r.FormValue("category"); got != "text" {
				t.Errorf("got category %q", got)
			}
			if got := r.FormValue("ai_consent"); got != "true" {
				t.Errorf("got ai_consent %q", got)
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("missing file part: %v", err)
			}
			file.Close()
			if header.Filename != "notes.txt" {
				t.Errorf("got filename %q", header.Filename)
			}

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"upload":    map[string]string{"id": "up-1"},
				"xp_earned": 20,
				"message":   "Great job!",
			})
		}))
		defer srv.Close()

		c := New(srv.URL, "abcDEF1234567890")
		res, err := c.Upload(ctx, req)
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		if res.UploadID != "up-1" || res.XPEarned != 20 || res.Message != "Great job!" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("no session", func(t *testing.T) {
		c := New("http://unused", "")
		if _, err := c.Upload(ctx, req); err == nil {
			t.Fatal("expected error without a session")
		}
	})

	t.Run("quota rejection surfaces the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "daily upload limit reached"})
		}))
		defer srv.Close()

		c := New(srv.URL, "abcDEF1234567890")
		if _, err := c.Upload(ctx, req); err == nil {
			t.Fatal("expected error")
		} else if got := err.Error(); got != "upload rejected: daily upload limit reached" {
			t.Errorf("got %q", got)
		}
	})
}
