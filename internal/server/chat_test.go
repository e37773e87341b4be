package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/w-h-a/gateway/upstream"
)

func TestChatRejectsInvalidMessages(t *testing.T) {
	testCases := []struct {
		name    string
		message string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t  "},
		{"too long", strings.Repeat("a", 10001)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			called := false

			up := &mockUpstream{
				chatFn: func(ctx context.Context, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
					called = true
					return &upstream.ChatResponse{Message: "hi"}, nil
				},
			}

			s := newTestServer(up, &mockStore{})

			rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": testCase.message}, bearer(t))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("code=%d, want 400", rr.Code)
			}

			if called {
				t.Error("upstream was contacted for an invalid message")
			}
		})
	}
}

func TestChatAcceptsMaxLengthMessage(t *testing.T) {
	up := &mockUpstream{
		chatFn: func(ctx context.Context, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
			return &upstream.ChatResponse{Message: "ok", Model: "llama3"}, nil
		},
	}

	s := newTestServer(up, &mockStore{})

	rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": strings.Repeat("a", 10000)}, bearer(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestChatRespondsWithCompletion(t *testing.T) {
	var got upstream.ChatRequest

	up := &mockUpstream{
		chatFn: func(ctx context.Context, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
			got = req
			return &upstream.ChatResponse{
				Message:   "hello there",
				Model:     "llama3",
				Timestamp: "2026-01-01T00:00:00Z",
			}, nil
		},
	}

	s := newTestServer(up, &mockStore{})

	rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": "hi", "temperature": 0.2}, bearer(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d: %s", rr.Code, rr.Body.String())
	}

	if got.Message != "hi" {
		t.Errorf("upstream message=%q", got.Message)
	}
	if got.Temperature != 0.2 {
		t.Errorf("upstream temperature=%v", got.Temperature)
	}

	body := decodeBody(t, rr)
	if body["message"] != "hello there" {
		t.Errorf("message=%v", body["message"])
	}
	if body["model"] != "llama3" {
		t.Errorf("model=%v", body["model"])
	}
	if _, ok := body["processing_time_ms"]; !ok {
		t.Error("missing processing_time_ms")
	}
}

func TestChatMapsUpstreamErrors(t *testing.T) {
	testCases := []struct {
		kind upstream.Kind
		want int
	}{
		{upstream.BadRequest, http.StatusBadRequest},
		{upstream.NotFound, http.StatusNotFound},
		{upstream.ServerError, http.StatusBadGateway},
		{upstream.Unavailable, http.StatusServiceUnavailable},
		{upstream.Connection, http.StatusServiceUnavailable},
		{upstream.Unknown, http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		up := &mockUpstream{
			chatFn: func(ctx context.Context, req upstream.ChatRequest) (*upstream.ChatResponse, error) {
				return nil, &upstream.Error{Kind: testCase.kind, Message: "nope"}
			},
		}

		s := newTestServer(up, &mockStore{})

		rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": "hi"}, bearer(t))
		if rr.Code != testCase.want {
			t.Errorf("kind %v: code=%d, want %d", testCase.kind, rr.Code, testCase.want)
		}
	}
}

func TestChatStreamEventOrder(t *testing.T) {
	chunks := []upstream.StreamChunk{
		{Content: "Hel"},
		{Content: ""},
		{Content: "lo"},
		{Done: true},
	}

	stream := &mockStream{}
	stream.recvFn = func() (upstream.StreamChunk, error) {
		if len(chunks) == 0 {
			return upstream.StreamChunk{}, io.EOF
		}
		next := chunks[0]
		chunks = chunks[1:]
		return next, nil
	}

	up := &mockUpstream{
		chatStreamFn: func(ctx context.Context, req upstream.ChatRequest) (upstream.Stream, error) {
			return stream, nil
		},
	}

	s := newTestServer(up, &mockStore{})

	rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": "hi", "stream": true}, bearer(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d: %s", rr.Code, rr.Body.String())
	}

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type=%q", ct)
	}

	payloads := sseData(rr.Body.String())
	if len(payloads) != 5 {
		t.Fatalf("got %d events, want 5: %v", len(payloads), payloads)
	}

	var events []map[string]any
	for _, payload := range payloads[:4] {
		var event map[string]any
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("decode event %q failed: %v", payload, err)
		}
		events = append(events, event)
	}

	if events[0]["type"] != "connection" || events[0]["status"] != "connected" {
		t.Errorf("first event=%v", events[0])
	}
	if events[1]["type"] != "chunk" || events[1]["content"] != "Hel" {
		t.Errorf("second event=%v", events[1])
	}
	if events[2]["type"] != "chunk" || events[2]["content"] != "lo" {
		t.Errorf("third event=%v", events[2])
	}
	if events[3]["type"] != "completion" || events[3]["content"] != "Hello" {
		t.Errorf("fourth event=%v", events[3])
	}
	if events[3]["model"] != "llama3" {
		t.Errorf("completion model=%v", events[3]["model"])
	}

	if payloads[4] != "[DONE]" {
		t.Errorf("terminator=%q", payloads[4])
	}

	if !stream.closed {
		t.Error("stream was not closed")
	}
}

func TestChatStreamMidStreamError(t *testing.T) {
	first := true

	stream := &mockStream{}
	stream.recvFn = func() (upstream.StreamChunk, error) {
		if first {
			first = false
			return upstream.StreamChunk{Content: "Hel"}, nil
		}
		return upstream.StreamChunk{}, io.ErrUnexpectedEOF
	}

	up := &mockUpstream{
		chatStreamFn: func(ctx context.Context, req upstream.ChatRequest) (upstream.Stream, error) {
			return stream, nil
		},
	}

	s := newTestServer(up, &mockStore{})

	rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": "hi", "stream": true}, bearer(t))

	// headers were already committed when the stream broke
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d, want 200", rr.Code)
	}

	payloads := sseData(rr.Body.String())
	if len(payloads) == 0 {
		t.Fatal("no events written")
	}

	var last map[string]any
	if err := json.Unmarshal([]byte(payloads[len(payloads)-1]), &last); err != nil {
		t.Fatalf("decode last event failed: %v", err)
	}

	if last["type"] != "error" {
		t.Errorf("last event=%v, want error event", last)
	}

	if !stream.closed {
		t.Error("stream was not closed")
	}
}

func TestChatStreamFailureBeforeFirstByte(t *testing.T) {
	up := &mockUpstream{
		chatStreamFn: func(ctx context.Context, req upstream.ChatRequest) (upstream.Stream, error) {
			return nil, &upstream.Error{Kind: upstream.Unavailable, Message: "model server unavailable"}
		},
	}

	s := newTestServer(up, &mockStore{})

	rr := doJSON(t, s, http.MethodPost, "/chat", map[string]any{"message": "hi", "stream": true}, bearer(t))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d, want 503", rr.Code)
	}
}

func TestModels(t *testing.T) {
	up := &mockUpstream{
		modelsFn: func(ctx context.Context) ([]string, error) {
			return []string{"llama3", "all-MiniLM-L6-v2"}, nil
		},
	}

	s := newTestServer(up, &mockStore{})

	rr := doJSON(t, s, http.MethodGet, "/chat/models", nil, bearer(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	if body["current_model"] != "llama3" {
		t.Errorf("current_model=%v", body["current_model"])
	}

	models, ok := body["models"].([]any)
	if !ok || len(models) != 2 {
		t.Errorf("models=%v", body["models"])
	}
}
