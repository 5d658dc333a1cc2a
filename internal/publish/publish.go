// Package publish sends stable gesture changes to NATS with OpenTelemetry
// trace context in the message headers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

// DefaultSubject is used when none is configured.
const DefaultSubject = "mudra.gestures"

const tracerName = "github.com/ayusman/mudra/internal/publish"

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publisher publishes gesture results on one subject.
type Publisher struct {
	nc      *nats.Conn
	owned   bool
	subject string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New publishes on an existing connection, which the caller keeps owning.
func New(nc *nats.Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{
		nc:      nc,
		subject: subject,
		logger:  logging.OrDefault(logger),
		tracer:  otel.Tracer(tracerName),
	}
}

// Connect dials url and returns a publisher that owns the connection.
// The connection reconnects forever; outages are logged.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	logger = logging.OrDefault(logger)
	nc, err := nats.Connect(url,
		nats.Name("mudra"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	p := New(nc, subject, logger)
	p.owned = true
	logger.Info("publishing gestures to nats", "url", nc.ConnectedUrl(), "subject", p.subject)
	return p, nil
}

// Subject returns the subject results are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// Publish sends r as JSON. The trace context of ctx travels in the headers.
func (p *Publisher) Publish(ctx context.Context, r gesture.Result) error {
	ctx, span := p.tracer.Start(ctx, "gesture.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", p.subject),
			attribute.String("gesture.label", r.Label),
		))
	defer span.End()

	data, err := json.Marshal(r)
	if err != nil {
		span.RecordError(err)
		return err
	}
	msg := &nats.Msg{Subject: p.subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := p.nc.PublishMsg(msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Handler adapts the publisher to a result callback. Failures are logged.
func (p *Publisher) Handler() func(gesture.Result) {
	return func(r gesture.Result) {
		if err := p.Publish(context.Background(), r); err != nil {
			p.logger.Warn("failed to publish gesture", "label", r.Label, "error", err)
		}
	}
}

// Close flushes pending messages and closes an owned connection.
func (p *Publisher) Close() error {
	if !p.owned {
		return p.nc.Flush()
	}
	return p.nc.Drain()
}

// Subscribe delivers results published on subject to handler, with the
// publisher's trace context. Malformed messages are dropped.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, gesture.Result)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var r gesture.Result
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, r)
	})
}
