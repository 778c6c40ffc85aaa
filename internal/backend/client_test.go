package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionJSON(text string, tokens int) string {
	resp := map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
		"usage": map[string]int{"total_tokens": tokens},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestInvokeSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(completionJSON("hello there", 42)))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key123", "test-model", srv.URL)
	comp, err := c.Invoke(context.Background(), "say hello", 256)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if comp.Text != "hello there" || comp.TokensUsed != 42 || comp.Model != "test-model" {
		t.Errorf("completion = %+v", comp)
	}
	if gotAuth != "Bearer key123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != 256 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestInvokeRetriesRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionJSON("recovered", 10)))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "m", srv.URL)
	comp, err := c.Invoke(context.Background(), "p", 0)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if comp.Text != "recovered" {
		t.Errorf("text = %q", comp.Text)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestInvokeNonRetryableError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "m", srv.URL)
	if _, err := c.Invoke(context.Background(), "p", 0); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 500)", attempts)
	}
}

func TestInvokeEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionJSON("   ", 5)))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "m", srv.URL)
	_, err := c.Invoke(context.Background(), "p", 0)
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestInvokeContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClientWithBaseURL("key", "m", srv.URL)
	if _, err := c.Invoke(ctx, "p", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
