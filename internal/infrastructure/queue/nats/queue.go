// Package nats carries pipeline run jobs between the API and the worker. A
// message is just the project id; the worker re-reads project state and
// decides which stages still need to run.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/infrastructure/resilience"
)

type Queue struct {
	conn    *nats.Conn
	subject string
	exec    *resilience.Executor
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("reportgen"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:    conn,
		subject: subject,
		exec:    resilience.NewExecutor(resilience.DefaultConfig(), classifyNATSError),
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// jobEnvelope is the wire form of a pipeline job. The publish timestamp
// feeds the consumer's queue lag metric.
type jobEnvelope struct {
	ProjectID   string    `json:"project_id"`
	PublishedAt time.Time `json:"published_at"`
}

func (q *Queue) PublishPipelineRun(ctx context.Context, projectID string) error {
	payload, err := json.Marshal(jobEnvelope{
		ProjectID:   projectID,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal pipeline job: %w", err)
	}
	err = q.exec.Do(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	})
	return wrapTemporary(err)
}

// decodeJob tolerates bare project-id payloads from older publishers; those
// jobs simply carry no publish timestamp.
func decodeJob(data []byte) ports.PipelineJob {
	var envelope jobEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.ProjectID != "" {
		return ports.PipelineJob{ProjectID: envelope.ProjectID, PublishedAt: envelope.PublishedAt}
	}
	return ports.PipelineJob{ProjectID: string(data)}
}

// SubscribePipelineRun consumes jobs in the "workers" queue group until ctx
// is cancelled, then drains the subscription. Handler failures are logged
// and dropped; the project's status field records what still needs running.
func (q *Queue) SubscribePipelineRun(ctx context.Context, handler func(context.Context, ports.PipelineJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		job := decodeJob(msg.Data)
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, job); err != nil {
			slog.Error("pipeline run failed", "project_id", job.ProjectID, "error", err)
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
