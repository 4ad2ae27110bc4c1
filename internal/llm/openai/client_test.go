package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/llm"
)

func TestCompleteSendsJSONModeRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"content":"{\"trips\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1/", Model: "m"}, nil)
	out, err := c.Complete(context.Background(), llm.CompletionRequest{ReqID: "r1", Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"trips":[]}` {
		t.Fatalf("unexpected content %q", out)
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" || got["model"] != "m" {
		t.Fatalf("unexpected request body: %v", got)
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	var sErr *llm.StatusError
	if !errors.As(err, &sErr) || sErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected a 429 status error, got %v", err)
	}
	if !errors.Is(llm.ClassifyError(err), common.ErrQuota) {
		t.Fatalf("expected quota classification")
	}
}

func TestCompleteRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"content":"","refusal":"no"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	if common.KindOf(err) != common.KindAIRequest {
		t.Fatalf("expected AI request error, got %v", err)
	}
}
