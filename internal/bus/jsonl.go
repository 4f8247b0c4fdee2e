package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONLPublisher writes one JSON object per message to a stream.
type JSONLPublisher struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

type jsonlRecord struct {
	Topic      TopicKind       `json:"topic"`
	Key        string          `json:"key,omitempty"`
	ReceivedAt string          `json:"received_at"`
	Record     json.RawMessage `json:"record"`
}

// NewJSONLPublisher writes to w. w is not closed by Close.
func NewJSONLPublisher(w io.Writer) *JSONLPublisher {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLPublisher{enc: enc}
}

// OpenJSONLPublisher writes to stdout, stderr, or appends to the file at path.
func OpenJSONLPublisher(path string) (*JSONLPublisher, error) {
	switch path {
	case "stdout", "-":
		return NewJSONLPublisher(os.Stdout), nil
	case "stderr":
		return NewJSONLPublisher(os.Stderr), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open jsonl output %s: %w", path, err)
	}
	p := NewJSONLPublisher(f)
	p.closer = f
	return p, nil
}

func (p *JSONLPublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := jsonlRecord{
		Topic:      msg.Topic,
		Key:        msg.Key,
		ReceivedAt: msg.ReceivedAt.UTC().Format(time.RFC3339Nano),
		Record:     json.RawMessage(msg.Body),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write jsonl record: %w", err)
	}
	return nil
}

func (p *JSONLPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
