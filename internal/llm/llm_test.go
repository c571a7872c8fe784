package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var conversation = []Message{
	{Role: "system", Content: "You are a tutor."},
	{Role: "user", Content: "hello"},
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"401", &APIError{StatusCode: http.StatusUnauthorized}, true},
		{"wrapped 401", fmt.Errorf("send: %w", &APIError{StatusCode: 401, Message: "nope"}), true},
		{"500 plain", &APIError{StatusCode: 500, Message: "internal error"}, false},
		{"403 with api key message", &APIError{StatusCode: 403, Message: "Invalid API Key"}, true},
		{"authentication message", errors.New("Authentication failed for request"), true},
		{"unauthorized message", errors.New("401 Unauthorized"), true},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	if got := (&APIError{StatusCode: 500}).Error(); got != "request failed (status 500)" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&APIError{Message: "boom"}).Error(); got != "boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"", ProviderOpenAI, false},
		{ProviderOpenAI, ProviderOpenAI, false},
		{ProviderOllama, ProviderOllama, false},
		{ProviderAnthropic, ProviderAnthropic, false},
		{"bard", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c, err := New(Config{Provider: tt.provider})
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownProvider) {
					t.Errorf("expected ErrUnknownProvider, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestRequiresKey(t *testing.T) {
	if RequiresKey(ProviderOllama) {
		t.Error("ollama should not require a key")
	}
	if !RequiresKey(ProviderOpenAI) || !RequiresKey(ProviderAnthropic) {
		t.Error("hosted providers should require a key")
	}
}

func TestOpenAI_Complete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4",
			"choices":[{"index":0,"message":{"role":"assistant","content":"X"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{Model: "gpt-4", BaseURL: srv.URL + "/"})

	reply, err := p.Complete(context.Background(), "sk-test", conversation, 0.7)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "X" {
		t.Errorf("reply = %q, want X", reply)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
	if gotBody["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotBody["temperature"])
	}

	_, err = p.Complete(context.Background(), "sk-wrong", conversation, 0.7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if !IsAuthError(err) {
		t.Error("401 should be classified as an auth error")
	}
}

func TestOpenAI_EmptyAndFailedResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantReply string
		wantAuth  bool
		wantErr   bool
	}{
		{
			name:      "empty content",
			status:    http.StatusOK,
			body:      `{"id":"1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`,
			wantReply: NoResponseText,
		},
		{
			name:      "no choices",
			status:    http.StatusOK,
			body:      `{"id":"1","object":"chat.completion","created":1,"model":"m","choices":[]}`,
			wantReply: NoResponseText,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"message":"The server had an error"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewOpenAI(Config{Model: "m", BaseURL: srv.URL + "/"})
			reply, err := p.Complete(context.Background(), "k", conversation, 0.7)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if IsAuthError(err) != tt.wantAuth {
					t.Errorf("IsAuthError = %v, want %v", IsAuthError(err), tt.wantAuth)
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("reply = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}

func TestOllama_Complete(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"llama3.2","message":{"role":"assistant","content":"X"},"done":true}`)
	}))
	defer srv.Close()

	p, err := NewOllama(Config{Model: "llama3.2", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	reply, err := p.Complete(context.Background(), "", conversation, 0.7)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "X" {
		t.Errorf("reply = %q, want X", reply)
	}
	if gotAuth != "" {
		t.Errorf("unexpected Authorization header %q without key", gotAuth)
	}
	if stream, ok := gotReq["stream"].(bool); !ok || stream {
		t.Errorf("stream = %v, want false", gotReq["stream"])
	}

	if _, err := p.Complete(context.Background(), "secret", conversation, 0.7); err != nil {
		t.Fatalf("Complete with key: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestOllama_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"unauthorized: invalid api key"}`)
	}))
	defer srv.Close()

	p, err := NewOllama(Config{Model: "llama3.2", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	_, err = p.Complete(context.Background(), "bad", conversation, 0.7)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	var gotKey string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		if gotKey != "sk-ant" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"X"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":3,"output_tokens":1}}`)
	}))
	defer srv.Close()

	p := NewAnthropic(Config{Model: "claude", BaseURL: srv.URL + "/"})

	messages := append([]Message{{Role: "system", Content: "Assignment: sort a list."}}, conversation...)
	reply, err := p.Complete(context.Background(), "sk-ant", messages, 0.7)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "X" {
		t.Errorf("reply = %q, want X", reply)
	}

	system, _ := gotReq["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("system blocks = %d, want 1", len(system))
	}
	text, _ := system[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, "Assignment: sort a list.") || !strings.Contains(text, "You are a tutor.") {
		t.Errorf("system text = %q, want both system messages joined", text)
	}
	if msgs, _ := gotReq["messages"].([]any); len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}

	_, err = p.Complete(context.Background(), "wrong", messages, 0.7)
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error) {
		return apiKey + ":" + messages[len(messages)-1].Content, nil
	})

	got, err := c.Complete(context.Background(), "k", conversation, 0)
	if err != nil || got != "k:hello" {
		t.Errorf("Complete() = %q, %v", got, err)
	}
}

func TestComplete_NoMessages(t *testing.T) {
	p := NewOpenAI(Config{Model: "m", BaseURL: "http://127.0.0.1:0/"})
	if _, err := p.Complete(context.Background(), "k", nil, 0.7); !errors.Is(err, ErrNoMessages) {
		t.Errorf("expected ErrNoMessages, got %v", err)
	}
}
