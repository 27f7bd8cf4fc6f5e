package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// publisher is the part of *nats.Conn the provider uses.
type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes alerts as JSON to <subject>.<device>.<iface>.
type NATS struct {
	conn    publisher
	subject string
}

// DialNATS connects to url and returns a provider publishing under subject.
// The connection keeps reconnecting in the background, so a broker that is
// down at startup does not stop the collector.
func DialNATS(url, subject string, timeout time.Duration, log zerolog.Logger) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("nocwatch"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return newNATS(nc, subject), nil
}

func newNATS(conn publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATS{conn: conn, subject: strings.TrimSuffix(subject, ".")}
}

func (n *NATS) Name() string { return ProviderNATS }

type natsAlert struct {
	ID      string `json:"id,omitempty"`
	Time    int64  `json:"time"`
	Device  string `json:"device"`
	Iface   string `json:"iface"`
	From    string `json:"from,omitempty"`
	State   string `json:"state"`
	Details string `json:"details"`
}

// Subject returns the subject an alert for device/iface is published on.
func (n *NATS) Subject(device, iface string) string {
	return n.subject + "." + subjectToken(device) + "." + subjectToken(iface)
}

func (n *NATS) Send(ctx context.Context, a Alert) error {
	data, err := json.Marshal(natsAlert{
		ID:      a.ID,
		Time:    a.Time.Unix(),
		Device:  a.Device,
		Iface:   a.Iface,
		From:    a.From,
		State:   string(a.State),
		Details: a.Details,
	})
	if err != nil {
		return &DeliveryError{Provider: n.Name(), Err: err}
	}
	if err := n.conn.Publish(n.Subject(a.Device, a.Iface), data); err != nil {
		return &DeliveryError{Provider: n.Name(), Err: err}
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return &DeliveryError{Provider: n.Name(), Err: err}
	}
	return nil
}

func (n *NATS) Close() {
	n.conn.Close()
}

// subjectToken makes s safe to use as one subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
