package nats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "analysis.completed"
	workerGroup    = "workers"
)

// AnalysisCompletedEvent is the message body published after an analysis is
// persisted.
type AnalysisCompletedEvent struct {
	AnalysisID  string    `json:"analysis_id"`
	PublishedAt time.Time `json:"published_at"`
}

const (
	clientName        = "crop-disease-analyzer"
	drainFlushTimeout = 5 * time.Second
	headerAnalysisID  = "Analysis-Id"
)

type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

// Options tunes the connection. Zero values pick the defaults below.
type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	FailFastOnConnect  bool
	HandlerTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func (o Options) natsOptions() []nats.Option {
	connectTimeout := cmp.Or(o.ConnectTimeout, 2*time.Second)
	reconnectWait := cmp.Or(o.ReconnectWait, 2*time.Second)
	maxReconnects := cmp.Or(max(o.MaxReconnects, 0), 60)

	return []nats.Option{
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(!o.FailFastOnConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info("nats_closed")
		}),
	}
}

// New connects to url. By default the client keeps retrying in the background
// when the server is not up yet, so startup order does not matter.
func New(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, options.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        cmp.Or(strings.TrimSpace(subject), DefaultSubject),
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishAnalysisCompleted announces a persisted analysis. The id is also
// carried in a header so consumers can route without decoding the body.
func (q *Queue) PublishAnalysisCompleted(ctx context.Context, analysisID string) error {
	payload, err := encodeEvent(AnalysisCompletedEvent{AnalysisID: analysisID, PublishedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: q.subject, Data: payload, Header: nats.Header{}}
	msg.Header.Set(headerAnalysisID, analysisID)

	err = q.executor.Execute(ctx, "nats_publish", func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	return resilience.AsTemporary("nats publish", err, classifyNATSError)
}

// SubscribeAnalysisCompleted blocks until ctx is done, feeding every event to
// handler. Workers share a queue group, so each event reaches one worker.
func (q *Queue) SubscribeAnalysisCompleted(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Error("event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, event.AnalysisID); err != nil {
			slog.Error("event_handler_failed", "analysis_id", event.AnalysisID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainFlushTimeout); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.handlerTimeout > 0 {
		return context.WithTimeout(ctx, q.handlerTimeout)
	}
	return context.WithCancel(ctx)
}

func encodeEvent(event AnalysisCompletedEvent) ([]byte, error) {
	if strings.TrimSpace(event.AnalysisID) == "" {
		return nil, fmt.Errorf("encode event: analysis id is empty")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

// decodeEvent also accepts a bare analysis id.
func decodeEvent(data []byte) (AnalysisCompletedEvent, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return AnalysisCompletedEvent{}, fmt.Errorf("decode event: empty message")
	}
	if !strings.HasPrefix(raw, "{") {
		return AnalysisCompletedEvent{AnalysisID: raw}, nil
	}
	var event AnalysisCompletedEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return AnalysisCompletedEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if strings.TrimSpace(event.AnalysisID) == "" {
		return AnalysisCompletedEvent{}, fmt.Errorf("decode event: analysis id is empty")
	}
	return event, nil
}
