package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"courseassist/internal/chat"
	"courseassist/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func geminiReply(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":"` + text + `"}]},"finishReason":"STOP"}]}`
}

func TestGemini_TextRequest(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		if !strings.Contains(r.URL.Path, "gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected api key in query, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(geminiReply("Hello from Gemini")))
	}))
	defer server.Close()

	g := NewGemini(config.GeminiConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-1.5-flash",
	}, server.Client(), testLogger())

	turns := []chat.Turn{
		{Role: chat.RoleSystem, Text: "Be helpful"},
		{Role: chat.RoleUser, Text: "First question"},
		{Role: chat.RoleAssistant, Text: "First answer"},
		{Role: chat.RoleUser, Text: "Second question"},
	}

	result, err := g.Generate(context.Background(), Request{Turns: turns})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Text != "Hello from Gemini" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Transcript != "" {
		t.Errorf("gemini must not produce a transcript, got %q", result.Transcript)
	}

	// Системный промпт уходит отдельной инструкцией
	si, ok := captured["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatalf("expected systemInstruction in request: %v", captured)
	}
	siText := si["parts"].([]any)[0].(map[string]any)["text"].(string)
	if siText != "Be helpful" {
		t.Errorf("unexpected systemInstruction: %q", siText)
	}

	// Остальные сообщения склеены в один блок "<Role>: <text>"
	contents := captured["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("expected single content, got %d", len(contents))
	}
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected single text part, got %d", len(parts))
	}
	block := parts[0].(map[string]any)["text"].(string)
	want := "User: First question\n\nAssistant: First answer\n\nUser: Second question"
	if block != want {
		t.Errorf("unexpected prompt block:\n got: %q\nwant: %q", block, want)
	}
}

func TestGemini_AudioInline(t *testing.T) {
	audio := []byte{0x1a, 0x45, 0xdf, 0xa3}
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Write([]byte(geminiReply("heard you")))
	}))
	defer server.Close()

	g := NewGemini(config.GeminiConfig{APIKey: "k", BaseURL: server.URL, Model: "gemini-1.5-flash"}, server.Client(), testLogger())

	result, err := g.Generate(context.Background(), Request{
		Turns: []chat.Turn{{Role: chat.RoleUser, Text: "What did I say?"}},
		Audio: &Audio{Data: audio},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Text != "heard you" {
		t.Errorf("unexpected text: %q", result.Text)
	}

	parts := captured["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text part + audio part, got %d", len(parts))
	}
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	if inline["mime_type"] != "audio/webm" {
		t.Errorf("expected default mime audio/webm, got %v", inline["mime_type"])
	}
	if inline["data"] != base64.StdEncoding.EncodeToString(audio) {
		t.Errorf("audio bytes not base64-encoded as expected")
	}
}

func TestGemini_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer server.Close()

	g := NewGemini(config.GeminiConfig{APIKey: "k", BaseURL: server.URL, Model: "m"}, server.Client(), testLogger())

	_, err := g.Generate(context.Background(), Request{
		Turns: []chat.Turn{{Role: chat.RoleUser, Text: "Hi"}},
	})
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Status != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", provErr.Status)
	}
	if !strings.Contains(provErr.Detail, "quota exceeded") {
		t.Errorf("expected body in detail, got %q", provErr.Detail)
	}
}

func TestGemini_MissingCredentials(t *testing.T) {
	g := NewGemini(config.GeminiConfig{BaseURL: "http://127.0.0.1:1", Model: "m"}, http.DefaultClient, testLogger())

	_, err := g.Generate(context.Background(), Request{
		Turns: []chat.Turn{{Role: chat.RoleUser, Text: "Hi"}},
	})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}
