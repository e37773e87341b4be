package localai

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/w-h-a/gateway/upstream"
)

type chatStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// Recv blocks until the server sends the next content fragment or the
// terminal marker. Empty deltas are skipped. A payload that fails to
// parse is logged and dropped; it never ends the stream.
func (s *chatStream) Recv() (upstream.StreamChunk, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return upstream.StreamChunk{Done: true}, nil
			}
			return upstream.StreamChunk{}, err
		}

		line = strings.TrimSpace(line)
		if len(line) == 0 || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return upstream.StreamChunk{Done: true}, nil
		}

		var event struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}

		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			slog.Warn("dropping malformed stream payload", "payload", payload)
			continue
		}

		if len(event.Choices) == 0 || len(event.Choices[0].Delta.Content) == 0 {
			continue
		}

		return upstream.StreamChunk{Content: event.Choices[0].Delta.Content}, nil
	}
}

func (s *chatStream) Close() error {
	return s.body.Close()
}
