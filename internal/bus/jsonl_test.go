package bus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLPublisherWritesOneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer
	pub := NewJSONLPublisher(&buf)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	require.NoError(t, pub.Publish(context.Background(), Message{Topic: TopicHeartbeat, Body: []byte(`{"type":"heartbeat"}`), ReceivedAt: ts}))
	require.NoError(t, pub.Publish(context.Background(), Message{Topic: TopicTrafficReport, Key: "AB4549", Body: []byte(`{"type":"traffic_report"}`), ReceivedAt: ts}))

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "heartbeat", lines[0]["topic"])
	assert.NotContains(t, lines[0], "key")
	assert.Equal(t, "2024-05-01T12:00:00.0000005Z", lines[0]["received_at"])
	assert.Equal(t, map[string]any{"type": "heartbeat"}, lines[0]["record"])

	assert.Equal(t, "traffic_report", lines[1]["topic"])
	assert.Equal(t, "AB4549", lines[1]["key"])
}

func TestJSONLPublisherFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	pub, err := OpenJSONLPublisher(path)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), Message{Topic: TopicHeartbeat, Body: []byte(`{}`)}))
	require.NoError(t, pub.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
}

func TestJSONLPublisherCancelledContext(t *testing.T) {
	var buf bytes.Buffer
	pub := NewJSONLPublisher(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.Publish(ctx, Message{Topic: TopicHeartbeat, Body: []byte(`{}`)}), context.Canceled)
	assert.Zero(t, buf.Len())
}
