package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var testSources = []*domain.Source{
	{DocumentName: "nda.md", ChunkText: "The notice period is 30 days.", Score: 0.91},
	{DocumentName: "policy.md", ChunkText: "Remote work requires approval.", Score: 0.62},
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt("What is the notice period?", testSources)

	for _, want := range []string{
		"[1] nda.md",
		"[2] policy.md",
		"The notice period is 30 days.",
		"Question: What is the notice period?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "[1]") > strings.Index(prompt, "[2]") {
		t.Error("sources must be numbered in order")
	}
}

func TestOpenAILLM_GenerateAnswer(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":" 30 days [1] "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	llm, err := NewOpenAILLM(&domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "sk-test",
		BaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer, err := llm.GenerateAnswer(context.Background(), "What is the notice period?", testSources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "30 days [1]" {
		t.Errorf("expected trimmed answer, got %q", answer)
	}
	if got["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("expected default max tokens, got %v", got["max_tokens"])
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
}

func TestOpenAILLM_GenerateAnswer_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	llm, _ := NewOpenAILLM(&domain.LLMSettings{APIKey: "sk-test", BaseURL: server.URL})

	if _, err := llm.GenerateAnswer(context.Background(), "q", testSources); err == nil {
		t.Error("expected error for failed completion")
	}
}

func TestNewOpenAILLM_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAILLM(&domain.LLMSettings{}); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestOllamaEmbedding_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("expected /api/embed, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	emb, err := NewOllamaEmbedding(server.URL, "nomic-embed-text", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 || result[1][1] != 0.4 {
		t.Errorf("unexpected embeddings %v", result)
	}

	if _, err := emb.Embed(context.Background(), []string{"a", "b", "c"}); err == nil {
		t.Error("expected error when embedding count does not match inputs")
	}
}

func TestOllamaLLM_GenerateAnswer(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Thirty days [1]"},"done":true}` + "\n"))
	}))
	defer server.Close()

	llm, err := NewOllamaLLM(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		Model:    "llama3.2",
		BaseURL:  server.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer, err := llm.GenerateAnswer(context.Background(), "notice?", testSources)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Thirty days [1]" {
		t.Errorf("unexpected answer %q", answer)
	}
	if got["stream"] != false {
		t.Errorf("expected non-streaming request, got %v", got["stream"])
	}
}

func TestOllamaLLM_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	llm, _ := NewOllamaLLM(&domain.LLMSettings{Model: "llama3.2", BaseURL: server.URL})
	if err := llm.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAILLM_SuggestQueries(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"2","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"1. Who signs the NDA?\n2. Can notice be waived?\n"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	llm, err := NewOpenAILLM(&domain.LLMSettings{APIKey: "sk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := llm.SuggestQueries(context.Background(), "What is the notice period?", []string{"nda.md", "policy.md"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "1. Who signs the NDA?\n2. Can notice be waived?" {
		t.Errorf("unexpected text %q", text)
	}
	if got["max_tokens"] != float64(suggestMaxTokens) {
		t.Errorf("expected %d max tokens, got %v", suggestMaxTokens, got["max_tokens"])
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	content, _ := user["content"].(string)
	if !strings.Contains(content, "nda.md, policy.md") || !strings.Contains(content, "What is the notice period?") {
		t.Errorf("prompt missing documents or question:\n%s", content)
	}
}
