package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clipsight/errors"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:          baseURL,
		Model:            "test-model",
		PollInitialDelay: time.Millisecond,
		PollInterval:     time.Millisecond,
		PollMaxAttempts:  5,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func TestUploadReturnsHandle(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload/v1beta/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("x-goog-api-key")
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/related") {
			t.Errorf("Content-Type = %q, want multipart/related", r.Header.Get("Content-Type"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"file": map[string]any{
				"name":     "files/abc123",
				"uri":      "https://files.example/abc123",
				"mimeType": "video/mp4",
				"state":    StateProcessing,
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	handle, err := client.Upload(context.Background(), "secret-key", []byte("video-bytes"), "video/mp4", "clip.mp4")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if gotKey != "secret-key" {
		t.Errorf("credential header = %q, want secret-key", gotKey)
	}
	if handle.Name != "files/abc123" {
		t.Errorf("handle.Name = %q", handle.Name)
	}
	if handle.State != StateProcessing {
		t.Errorf("handle.State = %q, want PROCESSING", handle.State)
	}
}

func TestUploadPayloadTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
			"error": map[string]any{"code": 413, "message": "Request payload size exceeds the limit", "status": "FAILED_PRECONDITION"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Upload(context.Background(), "secret-key", []byte("big"), "video/mp4", "clip.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsKind(err, errors.KindTransport) {
		t.Errorf("error kind = %v, want transport", errors.KindOf(err))
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Error("error message must not leak the credential")
	}
}

func TestAwaitActivePollsUntilReady(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/files/abc123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		state := StateProcessing
		if polls.Add(1) >= 3 {
			state = StateActive
		}
		writeJSON(w, http.StatusOK, FileHandle{
			Name:  "files/abc123",
			URI:   "https://files.example/abc123",
			State: state,
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	handle := &FileHandle{Name: "files/abc123", State: StateProcessing}

	ready, err := client.AwaitActive(context.Background(), "secret-key", handle)
	if err != nil {
		t.Fatalf("AwaitActive() error = %v", err)
	}
	if ready.State != StateActive {
		t.Errorf("state = %q, want ACTIVE", ready.State)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d, want 3", polls.Load())
	}
}

func TestAwaitActiveFailureStateNamed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, FileHandle{Name: "files/abc123", State: StateFailed})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.AwaitActive(context.Background(), "secret-key", &FileHandle{Name: "files/abc123", State: StateProcessing})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsKind(err, errors.KindProcessing) {
		t.Errorf("error kind = %v, want processing", errors.KindOf(err))
	}
	if !strings.Contains(err.Error(), StateFailed) {
		t.Errorf("error %q should name the terminal state", err.Error())
	}
}

func TestAwaitActiveBoundedPolling(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		writeJSON(w, http.StatusOK, FileHandle{Name: "files/abc123", State: StateProcessing})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.AwaitActive(context.Background(), "secret-key", &FileHandle{Name: "files/abc123", State: StateProcessing})
	if err == nil {
		t.Fatal("an asset stuck in PROCESSING must not hang")
	}
	if !errors.IsKind(err, errors.KindProcessing) {
		t.Errorf("error kind = %v, want processing", errors.KindOf(err))
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error %q should report the timeout", err.Error())
	}
	if polls.Load() != 5 {
		t.Errorf("polls = %d, want the configured bound of 5", polls.Load())
	}
}

func TestAwaitActiveHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, FileHandle{Name: "files/abc123", State: StateProcessing})
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:          server.URL,
		PollInitialDelay: 50 * time.Millisecond,
		PollInterval:     50 * time.Millisecond,
		PollMaxAttempts:  100,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := client.AwaitActive(ctx, "secret-key", &FileHandle{Name: "files/abc123", State: StateProcessing})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestGenerateAnalysisInlineRequestShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{
					map[string]any{"text": `{"video_meta":{"duration":"00:01:00","lighting":"daylight"},"events":[],"summary":"ok"}`},
				}}},
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	text, err := client.GenerateAnalysis(context.Background(), "secret-key", InlinePayload("video/mp4", []byte("video-bytes")))
	if err != nil {
		t.Fatalf("GenerateAnalysis() error = %v", err)
	}
	if !strings.Contains(text, "video_meta") {
		t.Errorf("unexpected text %q", text)
	}

	if _, ok := captured["systemInstruction"]; !ok {
		t.Error("request must carry the system instruction")
	}

	genCfg, ok := captured["generationConfig"].(map[string]any)
	if !ok {
		t.Fatal("request must carry generationConfig")
	}
	if genCfg["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", genCfg["temperature"])
	}
	if genCfg["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", genCfg["responseMimeType"])
	}
	if _, ok := genCfg["responseSchema"]; !ok {
		t.Error("request must carry the response schema")
	}

	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want instruction plus payload", len(parts))
	}
	if _, ok := parts[1].(map[string]any)["inlineData"]; !ok {
		t.Error("inline payload must use inlineData")
	}
}

func TestGenerateAnalysisFilePayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": "{}"}}}},
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.GenerateAnalysis(context.Background(), "secret-key", FilePayload("video/mp4", "https://files.example/abc123"))
	if err != nil {
		t.Fatalf("GenerateAnalysis() error = %v", err)
	}

	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	fd, ok := parts[1].(map[string]any)["fileData"].(map[string]any)
	if !ok {
		t.Fatal("file payload must use fileData")
	}
	if fd["fileUri"] != "https://files.example/abc123" {
		t.Errorf("fileUri = %v", fd["fileUri"])
	}
}

func TestGenerateAnalysisAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": map[string]any{"code": 403, "message": "Permission denied", "status": "PERMISSION_DENIED"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.GenerateAnalysis(context.Background(), "bad-key", InlinePayload("video/mp4", []byte("x")))
	if !errors.IsKind(err, errors.KindAuth) {
		t.Fatalf("error = %v, want auth kind", err)
	}
}

func TestGenerateAnalysisInvalidKeyAs400(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "message": "API key not valid. Please pass a valid API key.", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.GenerateAnalysis(context.Background(), "bad-key", InlinePayload("video/mp4", []byte("x")))
	if !errors.IsKind(err, errors.KindAuth) {
		t.Fatalf("error = %v, want auth kind", err)
	}
}

func TestGenerateAnalysisNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer server.Close()

	client := testClient(server.URL)
	text, err := client.GenerateAnalysis(context.Background(), "secret-key", InlinePayload("video/mp4", []byte("x")))
	if err != nil {
		t.Fatalf("GenerateAnalysis() error = %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestGenerateAnalysisRejectsZeroPayload(t *testing.T) {
	client := testClient("http://unreachable.invalid")
	_, err := client.GenerateAnalysis(context.Background(), "secret-key", Payload{})
	if err == nil {
		t.Fatal("a zero payload must be rejected before the network call")
	}
}
