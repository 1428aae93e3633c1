// Package notify announces newly discovered target devices.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/micro-ha/ble-scanner/internal/model"
)

const DefaultSubject = "ble.devices.target"

// Notifier is told once per newly discovered target device.
type Notifier interface {
	DeviceFound(ctx context.Context, d model.LiveDevice) error
}

// Event is the payload published for a found target.
type Event struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	MACAddress string    `json:"macAddress"`
	Name       string    `json:"name"`
	DeviceType string    `json:"deviceType"`
	RSSI       int       `json:"rssi"`
	SeenAt     time.Time `json:"seenAt"`
}

func newEvent(d model.LiveDevice) Event {
	return Event{
		Type:       "target_found",
		ID:         d.ID,
		MACAddress: d.MACAddress,
		Name:       d.Name,
		DeviceType: d.DeviceType,
		RSSI:       d.RSSI,
		SeenAt:     d.FirstSeenThisSession,
	}
}

// LogNotifier writes found targets to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) DeviceFound(_ context.Context, d model.LiveDevice) error {
	n.logger.Info("target device found", "mac", d.MACAddress, "name", d.Name, "rssi", d.RSSI)
	return nil
}

// Publisher is the subset of *nats.Conn used for notifications.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes found targets as JSON on a subject.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject}
}

func (n *NATSNotifier) DeviceFound(ctx context.Context, d model.LiveDevice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(newEvent(d))
	if err != nil {
		return fmt.Errorf("encode target event: %w", err)
	}
	if err := n.pub.Publish(n.subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

// Connect dials NATS with reconnect logging.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("ble-scanner"),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn("nats error", "err", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Multi fans out to several notifiers and reports the first failure.
type Multi []Notifier

func (m Multi) DeviceFound(ctx context.Context, d model.LiveDevice) error {
	var first error
	for _, n := range m {
		if err := n.DeviceFound(ctx, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
