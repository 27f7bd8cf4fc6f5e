package notify

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tonhe/nocwatch/internal/engine"
)

const (
	defaultOpsgenieURL  = "https://api.opsgenie.com/v2/alerts"
	defaultPagerDutyURL = "https://events.pagerduty.com/v2/enqueue"
	opsgeniePriority    = "P3"
	pagerDutyUpSeverity = "info"
	pagerDutySeverity   = "critical"
)

// Console writes alerts to the log: info for UP and DEGRADED, warn
// otherwise.
type Console struct {
	log zerolog.Logger
}

func NewConsole(log zerolog.Logger) *Console {
	return &Console{log: log.With().Str("component", "alert").Logger()}
}

func (c *Console) Name() string { return ProviderConsole }

func (c *Console) Send(_ context.Context, a Alert) error {
	ev := c.log.Warn()
	if a.State == engine.StateUp || a.State == engine.StateDegraded {
		ev = c.log.Info()
	}
	ev.Str("device", a.Device).
		Str("iface", a.Iface).
		Str("state", string(a.State)).
		Str("from", a.From).
		Str("details", a.Details).
		Msgf("[ALERT] %s/%s -> %s", a.Device, a.Iface, a.State)
	return nil
}

// Webhook posts a generic JSON document to a URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Name() string { return ProviderWebhook }

type webhookPayload struct {
	Time    int64  `json:"time"`
	ID      string `json:"id,omitempty"`
	Device  string `json:"device"`
	Iface   string `json:"iface"`
	From    string `json:"from,omitempty"`
	State   string `json:"state"`
	Details string `json:"details"`
}

func (w *Webhook) Send(ctx context.Context, a Alert) error {
	if w.url == "" {
		return &DeliveryError{Provider: w.Name(), Err: ErrMissingCredentials}
	}
	return postJSON(ctx, w.client, w.Name(), w.url, nil, webhookPayload{
		Time:    a.Time.Unix(),
		ID:      a.ID,
		Device:  a.Device,
		Iface:   a.Iface,
		From:    a.From,
		State:   string(a.State),
		Details: a.Details,
	})
}

// Slack posts to an incoming-webhook URL.
type Slack struct {
	url    string
	client *http.Client
}

func NewSlack(url string, client *http.Client) *Slack {
	return &Slack{url: url, client: client}
}

func (s *Slack) Name() string { return ProviderSlack }

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s.url == "" {
		return &DeliveryError{Provider: s.Name(), Err: ErrMissingCredentials}
	}
	return postJSON(ctx, s.client, s.Name(), s.url, nil, map[string]string{"text": a.Headline()})
}

// Discord posts to a channel webhook URL.
type Discord struct {
	url    string
	client *http.Client
}

func NewDiscord(url string, client *http.Client) *Discord {
	return &Discord{url: url, client: client}
}

func (d *Discord) Name() string { return ProviderDiscord }

func (d *Discord) Send(ctx context.Context, a Alert) error {
	if d.url == "" {
		return &DeliveryError{Provider: d.Name(), Err: ErrMissingCredentials}
	}
	return postJSON(ctx, d.client, d.Name(), d.url, nil, map[string]string{"content": a.Headline()})
}

// Opsgenie creates alerts through the Opsgenie Alert API.
type Opsgenie struct {
	key    string
	url    string
	client *http.Client
}

// NewOpsgenie creates an Opsgenie provider. An empty url selects the public
// API endpoint.
func NewOpsgenie(key, url string, client *http.Client) *Opsgenie {
	if url == "" {
		url = defaultOpsgenieURL
	}
	return &Opsgenie{key: key, url: url, client: client}
}

func (o *Opsgenie) Name() string { return ProviderOpsgenie }

type opsgeniePayload struct {
	Message     string            `json:"message"`
	Alias       string            `json:"alias,omitempty"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Details     map[string]string `json:"details,omitempty"`
}

func (o *Opsgenie) Send(ctx context.Context, a Alert) error {
	if o.key == "" {
		return &DeliveryError{Provider: o.Name(), Err: ErrMissingCredentials}
	}
	return postJSON(ctx, o.client, o.Name(), o.url,
		map[string]string{"Authorization": "GenieKey " + o.key},
		opsgeniePayload{
			Message:     a.Headline(),
			Alias:       a.Device + "/" + a.Iface,
			Description: a.Details,
			Priority:    opsgeniePriority,
			Details: map[string]string{
				"device": a.Device,
				"iface":  a.Iface,
				"state":  string(a.State),
			},
		})
}

// PagerDuty sends trigger events to the Events API v2.
type PagerDuty struct {
	routingKey string
	url        string
	client     *http.Client
}

// NewPagerDuty creates a PagerDuty provider. An empty url selects the public
// Events API endpoint.
func NewPagerDuty(routingKey, url string, client *http.Client) *PagerDuty {
	if url == "" {
		url = defaultPagerDutyURL
	}
	return &PagerDuty{routingKey: routingKey, url: url, client: client}
}

func (p *PagerDuty) Name() string { return ProviderPagerDuty }

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary       string            `json:"summary"`
	Severity      string            `json:"severity"`
	Source        string            `json:"source"`
	Component     string            `json:"component"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

func (p *PagerDuty) Send(ctx context.Context, a Alert) error {
	if p.routingKey == "" {
		return &DeliveryError{Provider: p.Name(), Err: ErrMissingCredentials}
	}
	severity := pagerDutySeverity
	if a.State == engine.StateUp {
		severity = pagerDutyUpSeverity
	}
	return postJSON(ctx, p.client, p.Name(), p.url, nil, pagerDutyEvent{
		RoutingKey:  p.routingKey,
		EventAction: "trigger",
		DedupKey:    a.Device + "/" + a.Iface,
		Payload: pagerDutyPayload{
			Summary:   "[" + a.Device + "/" + a.Iface + "] " + string(a.State),
			Severity:  severity,
			Source:    a.Device,
			Component: a.Iface,
			CustomDetails: map[string]string{
				"details": a.Details,
				"from":    a.From,
			},
		},
	})
}
