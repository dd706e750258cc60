package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/certassist/pkg/llm"
)

func TestOllamaClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected path '/api/chat', got %q", r.URL.Path)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if stream, ok := req["stream"].(bool); !ok || stream {
			t.Error("expected stream:false in request body")
		}
		if req["model"] != "phi3" {
			t.Errorf("expected model 'phi3', got %v", req["model"])
		}

		resp := map[string]any{
			"message": map[string]any{
				"role":    "assistant",
				"content": "hello from ollama",
			},
			"prompt_eval_count": 12,
			"eval_count":        7,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "phi3"})

	resp, err := client.Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello from ollama" {
		t.Errorf("expected 'hello from ollama', got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("expected 19 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaClientResponseFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "fallback text"})
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "phi3"})

	resp, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "fallback text" {
		t.Errorf("expected fallback field to be used, got %q", resp.Content)
	}
}

func TestOllamaClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "phi3"})

	if _, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
