package observer

import (
	"context"
	"time"

	rediscommon "github.com/anb2473/Archeology-Sentry/sentry-common/redis"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/parser"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamEntry is the JSON document published for each observed event.
type StreamEntry struct {
	Kind      string   `json:"kind"`
	Text      string   `json:"text,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Line      string   `json:"line,omitempty"`
	Error     string   `json:"error,omitempty"`
	Source    string   `json:"source"`
	Timestamp int64    `json:"timestamp"`
}

const (
	EntryDeviceMessage = "device_message"
	EntryProtocolError = "protocol_error"
	EntryForwardFailed = "forward_failed"
)

// StreamObserver mirrors device messages and failures onto a Redis Stream so
// they survive the listener's terminal. Successful forwards are not published.
type StreamObserver struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	source  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewStreamObserver(client *redis.Client, stream string, maxLen int64, source string, logger *zap.Logger) *StreamObserver {
	return &StreamObserver{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		source:  source,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func (o *StreamObserver) DeviceMessage(ev parser.Event) {
	entry := StreamEntry{Kind: EntryDeviceMessage}
	switch e := ev.(type) {
	case parser.Info:
		entry.Text = e.Text
		entry.Line = parser.Format(e)
	case parser.DeviceError:
		entry.Text = e.Text
		entry.Error = e.Text
		entry.Line = parser.Format(e)
	}
	o.publish(entry)
}

func (o *StreamObserver) ProtocolError(line string, err error) {
	o.publish(StreamEntry{Kind: EntryProtocolError, Line: line, Error: err.Error()})
}

func (o *StreamObserver) Forwarded(parser.Event) {}

func (o *StreamObserver) ForwardFailed(ev parser.Event, err error) {
	entry := StreamEntry{Kind: EntryForwardFailed, Line: parser.Format(ev), Error: err.Error()}
	if v, ok := parser.Reading(ev); ok {
		entry.Value = &v
	}
	o.publish(entry)
}

func (o *StreamObserver) publish(entry StreamEntry) {
	entry.Source = o.source
	entry.Timestamp = time.Now().Unix()

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if _, err := rediscommon.PublishJSONToStream(ctx, o.client, o.stream, o.maxLen, entry); err != nil {
		o.logger.Warn("Failed to publish to Redis Streams",
			zap.String("stream", o.stream),
			zap.String("kind", entry.Kind),
			zap.Error(err),
		)
	}
}
