// Package notify delivers interface state transition alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonhe/nocwatch/internal/engine"
)

// Provider names accepted in configuration.
const (
	ProviderConsole   = "console"
	ProviderWebhook   = "webhook"
	ProviderSlack     = "slack"
	ProviderDiscord   = "discord"
	ProviderOpsgenie  = "opsgenie"
	ProviderPagerDuty = "pagerduty"
	ProviderNATS      = "nats"

	DefaultTimeout     = 7 * time.Second
	DefaultNATSSubject = "nocwatch.alerts"
)

// Providers lists every supported provider name.
var Providers = []string{
	ProviderConsole, ProviderWebhook, ProviderSlack, ProviderDiscord,
	ProviderOpsgenie, ProviderPagerDuty, ProviderNATS,
}

var (
	ErrUnknownProvider    = errors.New("unknown alert provider")
	ErrMissingCredentials = errors.New("alert provider credentials not configured")
)

// Config selects and configures the alert provider.
type Config struct {
	Provider            string        `toml:"provider"`
	Webhook             string        `toml:"webhook"`
	OpsgenieKey         string        `toml:"opsgenie_key"`
	OpsgenieURL         string        `toml:"opsgenie_url"`
	PagerDutyRoutingKey string        `toml:"pagerduty_routing_key"`
	PagerDutyURL        string        `toml:"pagerduty_url"`
	NATSURL             string        `toml:"nats_url"`
	NATSSubject         string        `toml:"nats_subject"`
	TimeoutStr          string        `toml:"timeout"`
	Timeout             time.Duration `toml:"-"`
}

// Alert is the provider-neutral form of a transition.
type Alert struct {
	ID      string
	Time    time.Time
	Device  string
	Iface   string
	From    string
	State   engine.State
	Details string
}

// Headline renders the one-line alert text used by chat providers.
func (a Alert) Headline() string {
	return fmt.Sprintf("[%s/%s] %s - %s", a.Device, a.Iface, a.State, a.Details)
}

func alertFor(t engine.Transition, now time.Time) Alert {
	a := Alert{
		ID:      t.ID,
		Time:    now,
		Device:  t.Device,
		Iface:   t.Iface,
		State:   t.To,
		Details: t.Diagnostics.String(),
	}
	if t.From != nil {
		a.From = string(*t.From)
	}
	return a
}

// Provider delivers one alert.
type Provider interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Dispatcher fans a transition out to the console log and the configured
// provider. It implements engine.Notifier and never fails the caller.
type Dispatcher struct {
	provider Provider
	console  *Console
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
	closers  []func()
}

// New builds the dispatcher for cfg.
func New(cfg Config, log zerolog.Logger) (*Dispatcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	d := &Dispatcher{
		console: NewConsole(log),
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}

	httpClient := newHTTPClient(timeout)
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch name {
	case "", ProviderConsole:
	case ProviderWebhook:
		d.provider = NewWebhook(cfg.Webhook, httpClient)
	case ProviderSlack:
		d.provider = NewSlack(cfg.Webhook, httpClient)
	case ProviderDiscord:
		d.provider = NewDiscord(cfg.Webhook, httpClient)
	case ProviderOpsgenie:
		d.provider = NewOpsgenie(cfg.OpsgenieKey, cfg.OpsgenieURL, httpClient)
	case ProviderPagerDuty:
		d.provider = NewPagerDuty(cfg.PagerDutyRoutingKey, cfg.PagerDutyURL, httpClient)
	case ProviderNATS:
		n, err := DialNATS(cfg.NATSURL, cfg.NATSSubject, timeout, log)
		if err != nil {
			return nil, err
		}
		d.provider = n
		d.closers = append(d.closers, n.Close)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	provider := ProviderConsole
	if d.provider != nil {
		provider = d.provider.Name()
	}
	log.Info().Str("provider", provider).Dur("timeout", timeout).Msg("Alerting configured")

	return d, nil
}

// NewDispatcher wraps an existing provider. A nil provider logs to the
// console only.
func NewDispatcher(p Provider, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{provider: p, console: NewConsole(log), timeout: timeout, now: time.Now, log: log}
}

// Notify logs the transition and hands it to the provider, bounded by the
// dispatcher timeout. Delivery failures are logged and dropped.
func (d *Dispatcher) Notify(ctx context.Context, t engine.Transition) {
	a := alertFor(t, d.now())

	_ = d.console.Send(ctx, a)
	if d.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log := d.log.With().
		Str("provider", d.provider.Name()).
		Str("device", a.Device).
		Str("iface", a.Iface).
		Logger()

	err := d.provider.Send(ctx, a)

	var delivery *DeliveryError
	switch {
	case err == nil:
		log.Debug().Msg("Alert delivered")
	case errors.As(err, &delivery):
		log.Error().Int("status", delivery.Status).Str("resp", delivery.Body).Err(delivery.Err).Msg("Alert delivery failed")
	default:
		log.Error().Err(err).Msg("Alert delivery failed")
	}
}

// Close releases provider connections.
func (d *Dispatcher) Close() {
	for _, c := range d.closers {
		c()
	}
}
