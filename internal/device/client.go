package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/vault"
)

const (
	defaultConnectTries = 3
	defaultConnectWait  = 500 * time.Millisecond
)

var (
	ErrNoCredential = errors.New("device has neither an identity nor a community")
	ErrNoVault      = errors.New("device references an identity but no vault is open")
)

// session is the subset of a gosnmp client the poller uses.
type session interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error
	Close() error
}

type dialFunc func(ctx context.Context, dev engine.Device, cred vault.Credential, timeout time.Duration) (session, error)

type snmpSession struct {
	*gosnmp.GoSNMP
}

// BulkWalk falls back to GETNEXT walking for v1 agents.
func (s snmpSession) BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error {
	if s.Version == gosnmp.Version1 {
		return s.GoSNMP.Walk(rootOid, walkFn)
	}
	return s.GoSNMP.BulkWalk(rootOid, walkFn)
}

func (s snmpSession) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

func dialSNMP(ctx context.Context, dev engine.Device, cred vault.Credential, timeout time.Duration) (session, error) {
	client, err := NewSNMP(dev.Host, dev.Port, cred, timeout)
	if err != nil {
		return nil, err
	}
	client.Context = ctx
	return snmpSession{client}, nil
}

// Client polls devices over SNMP. It implements engine.DeviceClient.
type Client struct {
	creds        vault.Provider
	timeout      time.Duration
	connectTries uint
	connectWait  time.Duration
	dial         dialFunc
	now          func() time.Time
	log          zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets the per-request SNMP timeout used when a device does not
// set its own.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithConnectRetry sets how many times establishing a session is attempted
// and the pause between attempts.
func WithConnectRetry(tries uint, wait time.Duration) Option {
	return func(c *Client) {
		c.connectTries = tries
		c.connectWait = wait
	}
}

// New creates a Client. creds may be nil when every device carries an inline
// community.
func New(creds vault.Provider, opts ...Option) *Client {
	c := &Client{
		creds:        creds,
		timeout:      defaultTimeout,
		connectTries: defaultConnectTries,
		connectWait:  defaultConnectWait,
		dial:         dialSNMP,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) credential(dev engine.Device) (vault.Credential, error) {
	if dev.Identity != "" {
		if c.creds == nil {
			return vault.Credential{}, ErrNoVault
		}
		cred, err := c.creds.Get(dev.Identity)
		if err != nil {
			return vault.Credential{}, fmt.Errorf("resolve identity for %s: %w", dev.Name, err)
		}
		return *cred, nil
	}
	if dev.Community != "" {
		return vault.Community(dev.Community), nil
	}
	return vault.Credential{}, ErrNoCredential
}

func (c *Client) requestTimeout(dev engine.Device) time.Duration {
	if dev.Timeout > 0 {
		return dev.Timeout
	}
	return c.timeout
}

// connect opens a session and proves the agent answers by reading
// sysDescr. Only this step is retried.
func (c *Client) connect(ctx context.Context, dev engine.Device) (session, string, error) {
	cred, err := c.credential(dev)
	if err != nil {
		return nil, "", err
	}

	type result struct {
		sess  session
		descr string
	}

	attempt := 0
	operation := func() (result, error) {
		attempt++
		sess, err := c.dial(ctx, dev, cred, c.requestTimeout(dev))
		if err != nil {
			return result{}, backoff.Permanent(err)
		}
		if err := sess.Connect(); err != nil {
			c.log.Debug().Err(err).Str("device", dev.Name).Int("attempt", attempt).Msg("SNMP connect failed")
			return result{}, err
		}
		pkt, err := sess.Get([]string{OIDsysDescr})
		if err != nil {
			_ = sess.Close()
			c.log.Debug().Err(err).Str("device", dev.Name).Int("attempt", attempt).Msg("SNMP probe failed")
			return result{}, err
		}
		descr := ""
		if pkt != nil && len(pkt.Variables) > 0 {
			descr = pduString(pkt.Variables[0])
		}
		return result{sess: sess, descr: descr}, nil
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.connectWait)),
		backoff.WithMaxTries(c.connectTries))
	if err != nil {
		return nil, "", &engine.ConnectionError{Device: dev.Name, Err: err}
	}
	return res.sess, res.descr, nil
}

// Probe connects to a device and returns its sysDescr.
func (c *Client) Probe(ctx context.Context, dev engine.Device) (string, error) {
	sess, descr, err := c.connect(ctx, dev)
	if err != nil {
		return "", err
	}
	_ = sess.Close()
	return descr, nil
}

// Poll reads the interface table of dev and returns one snapshot per
// interface, keyed by interface name. Ignored interfaces are left out.
func (c *Client) Poll(ctx context.Context, dev engine.Device) (map[string]engine.Snapshot, error) {
	sess, _, err := c.connect(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	rows, err := c.readTable(ctx, sess, dev)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", dev.Name, err)
	}

	ts := c.now().Unix()
	out := make(map[string]engine.Snapshot, len(rows))
	for _, r := range rows {
		if r.name == "" || dev.Ignores(r.name) {
			continue
		}
		if _, dup := out[r.name]; dup {
			c.log.Warn().Str("device", dev.Name).Str("iface", r.name).Int("ifindex", r.index).Msg("Duplicate interface name, keeping the lowest ifIndex")
			continue
		}
		out[r.name] = r.snapshot(ts)
	}
	return out, nil
}

// Interface describes one interface found by Discover.
type Interface struct {
	Index       int
	Name        string
	Description string
	Alias       string
	SpeedMbps   uint64
	AdminUp     bool
	OperUp      bool
	Ignored     bool
}

// Status renders the operational state the way discovery output shows it.
func (i Interface) Status() string {
	switch {
	case !i.AdminUp:
		return "disabled"
	case i.OperUp:
		return "up"
	default:
		return "down"
	}
}

// Discover lists every interface of dev, sorted by ifIndex.
func (c *Client) Discover(ctx context.Context, dev engine.Device) ([]Interface, error) {
	sess, _, err := c.connect(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	rows, err := c.readTable(ctx, sess, dev)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", dev.Name, err)
	}

	aliases, err := walkColumn(ctx, sess, OIDifAlias)
	if err != nil {
		c.log.Debug().Err(err).Str("device", dev.Name).Msg("ifAlias unavailable")
	}

	out := make([]Interface, 0, len(rows))
	for _, r := range rows {
		out = append(out, Interface{
			Index:       r.index,
			Name:        r.name,
			Description: r.descr,
			Alias:       pduString(aliases[r.index]),
			SpeedMbps:   r.speedMbps,
			AdminUp:     !r.disabled,
			OperUp:      r.carrier,
			Ignored:     dev.Ignores(r.name),
		})
	}
	return out, nil
}

type row struct {
	index     int
	name      string
	descr     string
	disabled  bool
	carrier   bool
	rxBytes   uint64
	txBytes   uint64
	rxErrors  uint64
	txErrors  uint64
	rxDrops   uint64
	txDrops   uint64
	linkDowns uint64
	speedMbps uint64
}

func (r row) snapshot(ts int64) engine.Snapshot {
	return engine.Snapshot{
		Timestamp:     ts,
		Name:          r.name,
		AdminDisabled: r.disabled,
		CarrierUp:     r.carrier,
		RxBytes:       r.rxBytes,
		TxBytes:       r.txBytes,
		RxErrors:      r.rxErrors,
		TxErrors:      r.txErrors,
		RxDrops:       r.rxDrops,
		TxDrops:       r.txDrops,
		LinkDowns:     r.linkDowns,
		BytesWrap:     engine.Wrap64,
		ErrorsWrap:    engine.Wrap32,
		Speed:         engine.LinkSpeed{Value: int(r.speedMbps)},
	}
}

type column struct {
	oid      string
	required bool
	apply    func(r *row, pdu gosnmp.SnmpPDU)
}

var columns = []column{
	{oid: OIDifDescr, required: true, apply: func(r *row, p gosnmp.SnmpPDU) { r.descr = pduString(p) }},
	{oid: OIDifAdminStatus, required: true, apply: func(r *row, p gosnmp.SnmpPDU) { r.disabled = pduUint(p) == adminDisabled }},
	{oid: OIDifOperStatus, required: true, apply: func(r *row, p gosnmp.SnmpPDU) { r.carrier = pduUint(p) == operUp }},
	{oid: OIDifName, apply: func(r *row, p gosnmp.SnmpPDU) { r.name = pduString(p) }},
	{oid: OIDifHCInOctets, apply: func(r *row, p gosnmp.SnmpPDU) { r.rxBytes = pduUint(p) }},
	{oid: OIDifHCOutOctets, apply: func(r *row, p gosnmp.SnmpPDU) { r.txBytes = pduUint(p) }},
	{oid: OIDifInErrors, apply: func(r *row, p gosnmp.SnmpPDU) { r.rxErrors = pduUint(p) }},
	{oid: OIDifOutErrors, apply: func(r *row, p gosnmp.SnmpPDU) { r.txErrors = pduUint(p) }},
	{oid: OIDifInDiscards, apply: func(r *row, p gosnmp.SnmpPDU) { r.rxDrops = pduUint(p) }},
	{oid: OIDifOutDiscards, apply: func(r *row, p gosnmp.SnmpPDU) { r.txDrops = pduUint(p) }},
	{oid: OIDifHighSpeed, apply: func(r *row, p gosnmp.SnmpPDU) { r.speedMbps = pduUint(p) }},
	{oid: OIDmtxrLinkDowns, apply: func(r *row, p gosnmp.SnmpPDU) { r.linkDowns = pduUint(p) }},
}

// readTable walks every interface column. Rows are created by the ifDescr
// walk; optional columns that fail or are missing leave zero values.
func (c *Client) readTable(ctx context.Context, sess session, dev engine.Device) ([]row, error) {
	rows := make(map[int]*row)

	for _, col := range columns {
		values, err := walkColumn(ctx, sess, col.oid)
		if err != nil {
			if col.required {
				return nil, fmt.Errorf("walk %s: %w", col.oid, err)
			}
			c.log.Debug().Err(err).Str("device", dev.Name).Str("oid", col.oid).Msg("Optional column unavailable, zero-filling")
			continue
		}
		for idx, pdu := range values {
			r, ok := rows[idx]
			if !ok {
				if col.oid != OIDifDescr {
					continue
				}
				r = &row{index: idx}
				rows[idx] = r
			}
			col.apply(r, pdu)
		}
	}

	out := make([]row, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.name) == "" {
			r.name = r.descr
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out, nil
}

// walkColumn walks a table column and returns its values keyed by the last
// OID component.
func walkColumn(ctx context.Context, sess session, oid string) (map[int]gosnmp.SnmpPDU, error) {
	values := make(map[int]gosnmp.SnmpPDU)
	err := sess.BulkWalk(oid, func(pdu gosnmp.SnmpPDU) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := strings.LastIndexByte(pdu.Name, '.')
		idx, err := strconv.Atoi(pdu.Name[i+1:])
		if err != nil {
			return nil
		}
		values[idx] = pdu
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// pduUint converts a numeric PDU to uint64; anything else reads as 0.
func pduUint(pdu gosnmp.SnmpPDU) uint64 {
	switch pdu.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Counter64, gosnmp.TimeTicks, gosnmp.Uinteger32:
	default:
		return 0
	}
	n := gosnmp.ToBigInt(pdu.Value)
	if n.Sign() < 0 || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}
