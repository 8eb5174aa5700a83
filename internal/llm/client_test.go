package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/mailsense/internal/config"
	"github.com/fyrsmithlabs/mailsense/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(config.LLMConfig{
		APIKey:  config.Secret("test-key"),
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
		Timeout: config.Duration(5 * time.Second),
	})
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}
	return client
}

func chatReply(text string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":    "cmpl-1",
		"model": "gpt-4o-mini",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": text}, "finish_reason": "stop"},
		},
	})
	return b
}

func TestNewHTTPClient_MissingKey(t *testing.T) {
	_, err := NewHTTPClient(config.LLMConfig{Model: "gpt-4o-mini"})
	if err != ErrMissingAPIKey {
		t.Fatalf("NewHTTPClient() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestHTTPClient_Complete(t *testing.T) {
	t.Run("returns response text", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization = %q", got)
			}
			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.Model != "gpt-4o-mini" {
				t.Errorf("model = %q", req.Model)
			}
			w.Write(chatReply(`{"category": "Work"}`))
		})

		got, err := client.Complete(context.Background(), Request{Prompt: "classify this"})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if got != `{"category": "Work"}` {
			t.Errorf("Complete() = %q", got)
		}
	})

	t.Run("5xx is transient", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		})

		_, err := client.Complete(context.Background(), Request{Prompt: "x"})
		if !retry.IsTransient(err) {
			t.Errorf("Complete() error = %v, want transient", err)
		}
	})

	t.Run("429 is transient", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := client.Complete(context.Background(), Request{Prompt: "x"})
		if !retry.IsTransient(err) {
			t.Errorf("Complete() error = %v, want transient", err)
		}
	})

	t.Run("4xx is permanent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "bad prompt"}}`))
		})

		_, err := client.Complete(context.Background(), Request{Prompt: "x"})
		if err == nil {
			t.Fatal("Complete() expected error")
		}
		if retry.IsTransient(err) {
			t.Errorf("Complete() error = %v, want permanent", err)
		}
		if !strings.Contains(err.Error(), "bad prompt") {
			t.Errorf("Complete() error = %v, want API message", err)
		}
	})

	t.Run("scrubs secrets from outbound prompt", func(t *testing.T) {
		var sent string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req chatRequest
			json.NewDecoder(r.Body).Decode(&req)
			sent = req.Messages[len(req.Messages)-1].Content
			w.Write(chatReply("ok"))
		})

		_, err := client.Complete(context.Background(), Request{
			Prompt: "my key is sk-abcdefghijklmnopqrstuvwxyz123456 please help",
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if strings.Contains(sent, "sk-abcdefghijklmnopqrstuvwxyz123456") {
			t.Errorf("outbound prompt leaked secret: %q", sent)
		}
	})

	t.Run("client timeout consumes the full retry budget", func(t *testing.T) {
		var requests int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			time.Sleep(200 * time.Millisecond)
			w.Write(chatReply("too late"))
		}))
		t.Cleanup(srv.Close)

		client, err := NewHTTPClient(config.LLMConfig{
			APIKey:  config.Secret("test-key"),
			BaseURL: srv.URL,
			Model:   "gpt-4o-mini",
			Timeout: config.Duration(20 * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("NewHTTPClient() error = %v", err)
		}

		policy := retry.Policy{Attempts: 3, Delay: time.Millisecond}
		err = policy.Do(context.Background(), "complete", func(ctx context.Context) error {
			_, err := client.Complete(ctx, Request{Prompt: "x"})
			return err
		})
		if err == nil {
			t.Fatal("Do() expected error")
		}
		if requests != 3 {
			t.Errorf("requests = %d, want 3 (client timeouts must stay retryable)", requests)
		}
		if !strings.Contains(err.Error(), "after 3 attempts") {
			t.Errorf("Do() error = %v, want exhaustion, not cancellation", err)
		}
	})

	t.Run("cancellation is not transient", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write(chatReply("ok"))
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.Complete(ctx, Request{Prompt: "x"})
		if err == nil {
			t.Fatal("Complete() expected error")
		}
		if retry.IsTransient(err) {
			t.Errorf("Complete() error = %v, cancellation must not be transient", err)
		}
	})
}

func TestScrubSecrets(t *testing.T) {
	in := "password: hunter42 and OPENAI_API_KEY=sk-abc123 end"
	got := ScrubSecrets(in)
	if strings.Contains(got, "hunter42") {
		t.Errorf("ScrubSecrets() leaked password: %q", got)
	}
	if strings.Contains(got, "sk-abc123") {
		t.Errorf("ScrubSecrets() leaked env secret: %q", got)
	}
}
