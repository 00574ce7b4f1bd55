package platform

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

func TestUpload_Success(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/media" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token")
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("title") != "Test video" {
			t.Errorf("unexpected title field: %q", r.FormValue("title"))
		}

		json.NewEncoder(w).Encode(map[string]string{"media_id": "media-123"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Token: "test-token"})

	result, err := client.Upload(context.Background(), UploadRequest{
		VideoPath: videoPath,
		Title:     "Test video",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MediaID != "media-123" {
		t.Errorf("expected media-123, got %s", result.MediaID)
	}
}

func TestUpload_FileMissing(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:1"})

	_, err := client.Upload(context.Background(), UploadRequest{VideoPath: "/no/such/file.mp4"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPublish_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/posts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Idempotency-Key") != "sched-42" {
			t.Errorf("missing idempotency key, got %q", r.Header.Get("X-Idempotency-Key"))
		}

		var req PublishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Privacy != "public" {
			t.Errorf("unexpected privacy %q", req.Privacy)
		}

		json.NewEncoder(w).Encode(map[string]string{"post_id": "post-777"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Token: "t"})

	result, err := client.Publish(context.Background(), PublishRequest{
		MediaID:        "media-123",
		Title:          "Test video",
		Privacy:        "public",
		IdempotencyKey: "sched-42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PostID != "post-777" {
		t.Errorf("expected post-777, got %s", result.PostID)
	}
	if result.AlreadyPublished {
		t.Error("fresh publish must not be marked as duplicate")
	}
}

// TestPublish_Conflict — 409 с тем же idempotency key означает, что
// пост уже создан предыдущей попыткой; клиент возвращает успех с
// существующим post_id.
func TestPublish_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"post_id": "post-existing"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	result, err := client.Publish(context.Background(), PublishRequest{
		MediaID:        "media-123",
		IdempotencyKey: "sched-42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PostID != "post-existing" {
		t.Errorf("expected existing post id, got %s", result.PostID)
	}
	if !result.AlreadyPublished {
		t.Error("expected AlreadyPublished = true")
	}
}

func TestPublish_ServerError_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"code": "internal", "message": "try later"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Publish(context.Background(), PublishRequest{MediaID: "m"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != "internal" {
		t.Errorf("expected code internal, got %q", apiErr.Code)
	}
	if !IsRetryable(err) {
		t.Error("5xx must be retryable")
	}
}

func TestPublish_BadRequest_NotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"code": "bad_privacy", "message": "unknown privacy"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Publish(context.Background(), PublishRequest{MediaID: "m", Privacy: "secret"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Error("4xx must not be retryable")
	}
}

func TestIsRetryable_Unreachable(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := client.Publish(context.Background(), PublishRequest{MediaID: "m"})
	if err == nil {
		t.Fatal("expected network error")
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("network errors must be retryable")
	}
}
