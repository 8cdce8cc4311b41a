package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewOpenAIProvider(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func collect(t *testing.T, ch <-chan StreamResponse) []StreamResponse {
	t.Helper()
	var out []StreamResponse
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestStreamChat_CumulativeSnapshots(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunk("This "))
		fmt.Fprint(w, chunk(""))
		fmt.Fprint(w, chunk("theorem"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	events := collect(t, ch)
	if len(events) != 3 {
		t.Fatalf("events = %+v, want 3", events)
	}
	if events[0].Text != "This " || events[1].Text != "This theorem" {
		t.Errorf("snapshots = %q, %q", events[0].Text, events[1].Text)
	}
	if !events[2].Done || events[2].Text != "This theorem" {
		t.Errorf("terminal = %+v", events[2])
	}
}

func TestStreamChat_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	ch, err := p.StreamChat(context.Background(), nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	events := collect(t, ch)
	if len(events) != 1 || events[0].Error == nil {
		t.Fatalf("events = %+v, want one error", events)
	}
}

func TestStreamChat_Cancel(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunk("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := p.StreamChat(ctx, nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	first := <-ch
	if first.Text != "partial" {
		t.Fatalf("first = %+v", first)
	}
	cancel()

	events := collect(t, ch)
	if len(events) != 1 || !events[0].Cancelled {
		t.Fatalf("events = %+v, want one cancelled", events)
	}
}

func TestNewOpenAIProvider_MissingKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}
