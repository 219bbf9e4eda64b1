// Package notify publishes finished run summaries to NATS.
package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/pipeline"
)

// Publisher is the part of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier sends run summaries to one subject.
type Notifier struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

// New wraps an existing publisher.
func New(pub Publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject}
}

// Connect dials the configured NATS server. It returns nil, nil when
// notifications are not configured.
func Connect(cfg config.NotifyConfig) (*Notifier, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("nightlybuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).Build()
	}
	slog.Info("NATS notifications enabled", "url", cfg.NATSURL, "subject", cfg.Subject)
	return &Notifier{pub: conn, subject: cfg.Subject, conn: conn}, nil
}

// Subject returns the subject summaries are published to.
func (n *Notifier) Subject() string { return n.subject }

// Notify publishes s as JSON.
func (n *Notifier) Notify(s *pipeline.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNotify, "failed to marshal run summary").Build()
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNotify, "failed to publish run summary").
			WithContext("subject", n.subject).Build()
	}
	slog.Debug("Published run summary", logfields.RunID(s.RunID), slog.String("subject", n.subject))
	return nil
}

// Attach publishes every completed run on bus. Publish failures are logged;
// a notification problem never fails a run.
func (n *Notifier) Attach(bus *pipeline.Bus) {
	bus.OnCompleted(func(s *pipeline.Summary) error {
		if err := n.Notify(s); err != nil {
			slog.Warn("Run notification failed", logfields.RunID(s.RunID), logfields.Error(err))
		}
		return nil
	})
}

// Close flushes and closes the connection opened by Connect.
func (n *Notifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	if err := n.conn.Flush(); err != nil {
		slog.Warn("Failed to flush NATS connection", logfields.Error(err))
	}
	n.conn.Close()
}
