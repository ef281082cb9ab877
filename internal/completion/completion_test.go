package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticSource struct {
	text string
	err  error
}

func (s staticSource) Context(context.Context) (string, error) { return s.text, s.err }

func TestPromptBuild(t *testing.T) {
	p := &Prompt{UserPrompt: "Keep answers short.", Source: staticSource{text: "  main.go  "}}
	msgs := p.Build(context.Background(), "what does this file do")

	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != DefaultSystemPrompt {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Content != "Keep answers short." {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Content != "Screen context:\nmain.go" {
		t.Errorf("msgs[2] = %+v", msgs[2])
	}
	if msgs[3].Role != RoleUser || msgs[3].Content != "what does this file do" {
		t.Errorf("msgs[3] = %+v", msgs[3])
	}
}

func TestPromptHistory(t *testing.T) {
	p := &Prompt{System: "sys"}
	p.Build(context.Background(), "first")
	p.Reply("first", "answer")
	msgs := p.Build(context.Background(), "second")

	var roles []Role
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	want := []Role{RoleSystem, RoleUser, RoleAssistant, RoleUser}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}

	p.Reset()
	if got := p.Build(context.Background(), "third"); len(got) != 2 {
		t.Errorf("after Reset got %d messages, want 2", len(got))
	}
}

func TestPromptFailedTurnIsNotRemembered(t *testing.T) {
	p := &Prompt{System: "sys"}
	p.Build(context.Background(), "lost")
	p.Reply("lost", "")
	msgs := p.Build(context.Background(), "again")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(msgs), msgs)
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "again" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestPromptContextSourceError(t *testing.T) {
	p := &Prompt{Source: staticSource{err: errors.New("no screen")}}
	if msgs := p.Build(context.Background(), "hi"); len(msgs) != 2 {
		t.Errorf("got %d messages, want 2", len(msgs))
	}
}

func TestClientStream(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL + "/v1/", Model: "gpt-4o-mini", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	body, err := c.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hello"}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)

	if !strings.Contains(string(data), `"content":"Hi"`) {
		t.Errorf("body = %q", data)
	}
	if !got.Stream || got.Model != "gpt-4o-mini" || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestClientStreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Stream(context.Background(), nil)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("Stream error = %v, want ErrStatus", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q does not mention the status", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Model: "m"}); err == nil {
		t.Error("missing endpoint accepted")
	}
	if _, err := NewClient(Config{Endpoint: "http://localhost"}); err == nil {
		t.Error("missing model accepted")
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	c, err := NewClient(Config{Endpoint: "http://localhost", Model: "m"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.cfg.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want sk-env", c.cfg.APIKey)
	}
}
