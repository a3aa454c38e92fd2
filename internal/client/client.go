// Package client implements the CLI upload client for a peerdrop server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

var categories = map[string]bool{
	"audio": true, "document": true, "code": true,
	"text": true, "image": true, "archive": true,
}

// UploadRequest describes one file to upload.
type UploadRequest struct {
	FilePath    string
	Description string
	Category    string
	AIConsent   bool
}

// Validate checks the request locally before any network traffic.
func (r UploadRequest) Validate() error {
	info, err := os.Stat(r.FilePath)
	if err != nil {
		return &ValidationError{Arg: r.FilePath, Cause: "not found or not accessible"}
	}
	if info.IsDir() {
		return &ValidationError{Arg: r.FilePath, Cause: "is a directory, expected a file"}
	}
	if len(r.Description) < 10 {
		return &ValidationError{Arg: "-description", Cause: "must be at least 10 characters"}
	}
	if !categories[r.Category] {
		return &ValidationError{Arg: "-category", Cause: "must be one of audio, document, code, text, image, archive"}
	}
	if !r.AIConsent {
		return &ValidationError{Arg: "-consent", Cause: "consent is required to upload"}
	}
	return nil
}

// UploadResult is the server's answer to a successful upload.
type UploadResult struct {
	UploadID string
	XPEarned int64
	Message  string
}

// Client talks to a peerdrop server.
type Client struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

// New creates a client. sessionID may be empty; call OpenSession first then.
func New(baseURL, sessionID string) *Client {
	return &Client{
		baseURL:   baseURL,
		sessionID: sessionID,
		http:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// OpenSession creates a new session (and account) on the server and
// remembers the session id for subsequent calls.
func (c *Client) OpenSession(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("failed to open session: %s", readError(resp.Body))
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}

	c.sessionID = out.SessionID
	return out.SessionID, nil
}

// Upload sends the file to the server as a multipart form.
func (c *Client) Upload(ctx context.Context, r UploadRequest) (*UploadResult, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("no session: call OpenSession or pass -session")
	}

	file, err := os.Open(r.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(r.FilePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	w.WriteField("description", r.Description)
	w.WriteField("category", r.Category)
	w.WriteField("ai_consent", "true")

	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Session-Id", c.sessionID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("upload rejected: %s", readError(resp.Body))
	}

	var out struct {
		Upload struct {
			ID string `json:"id"`
		} `json:"upload"`
		XPEarned int64  `json:"xp_earned"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	return &UploadResult{
		UploadID: out.Upload.ID,
		XPEarned: out.XPEarned,
		Message:  out.Message,
	}, nil
}

func readError(r io.Reader) string {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&out); err == nil && out.Error != "" {
		return out.Error
	}
	return "unknown error"
}
