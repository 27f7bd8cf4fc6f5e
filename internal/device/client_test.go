package device

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/vault"
)

type fakeSession struct {
	mu          sync.Mutex
	connectErrs []error
	getErr      error
	columns     map[string]map[int]gosnmp.SnmpPDU
	walkErrs    map[string]error
	connects    int
	closed      bool
}

func (f *fakeSession) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSession) Get([]string) (*gosnmp.SnmpPacket, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &gosnmp.SnmpPacket{Variables: []gosnmp.SnmpPDU{
		{Name: "." + OIDsysDescr, Type: gosnmp.OctetString, Value: []byte("RouterOS CCR2004")},
	}}, nil
}

func (f *fakeSession) BulkWalk(oid string, fn gosnmp.WalkFunc) error {
	if err := f.walkErrs[oid]; err != nil {
		return err
	}
	col := f.columns[oid]
	idxs := make([]int, 0, len(col))
	for idx := range col {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	for _, idx := range idxs {
		pdu := col[idx]
		pdu.Name = "." + oid + "." + strconv.Itoa(idx)
		if err := fn(pdu); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func str(s string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte(s)}
}

func integer(n int) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: n}
}

func counter32(n uint) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Type: gosnmp.Counter32, Value: n}
}

func counter64(n uint64) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: n}
}

func gauge(n uint) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: n}
}

func routerTable() map[string]map[int]gosnmp.SnmpPDU {
	return map[string]map[int]gosnmp.SnmpPDU{
		OIDifDescr:       {1: str("ether1"), 2: str("sfp-sfpplus1"), 3: str("bridge"), 4: str("mgmt")},
		OIDifName:        {1: str("ether1"), 2: str("sfp1"), 4: str("mgmt")},
		OIDifAdminStatus: {1: integer(1), 2: integer(2), 3: integer(1), 4: integer(1)},
		OIDifOperStatus:  {1: integer(1), 2: integer(2), 3: integer(1), 4: integer(2)},
		OIDifHCInOctets:  {1: counter64(1 << 40), 2: counter64(10)},
		OIDifHCOutOctets: {1: counter64(2000)},
		OIDifInErrors:    {1: counter32(7)},
		OIDifOutErrors:   {1: counter32(3)},
		OIDifInDiscards:  {1: counter32(11)},
		OIDifOutDiscards: {1: counter32(13)},
		OIDifHighSpeed:   {1: gauge(1000), 2: gauge(10000)},
		OIDmtxrLinkDowns: {1: counter32(4)},
		OIDifAlias:       {1: str("uplink to core")},
	}
}

func newTestClient(sess *fakeSession, creds vault.Provider) (*Client, *[]vault.Credential) {
	var dialed []vault.Credential
	c := New(creds, WithConnectRetry(3, time.Millisecond))
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	c.dial = func(_ context.Context, _ engine.Device, cred vault.Credential, _ time.Duration) (session, error) {
		dialed = append(dialed, cred)
		return sess, nil
	}
	return c, &dialed
}

func TestPollBuildsSnapshots(t *testing.T) {
	sess := &fakeSession{columns: routerTable()}
	c, _ := newTestClient(sess, nil)

	snaps, err := c.Poll(context.Background(), engine.Device{Name: "r1", Community: "public", IgnoredInterfaces: []string{"mgmt"}})
	require.NoError(t, err)
	assert.True(t, sess.closed)

	require.Len(t, snaps, 3)
	assert.NotContains(t, snaps, "mgmt")

	ether1 := snaps["ether1"]
	assert.Equal(t, engine.Snapshot{
		Timestamp:  1_700_000_000,
		Name:       "ether1",
		CarrierUp:  true,
		RxBytes:    1 << 40,
		TxBytes:    2000,
		RxErrors:   7,
		TxErrors:   3,
		RxDrops:    11,
		TxDrops:    13,
		LinkDowns:  4,
		BytesWrap:  engine.Wrap64,
		ErrorsWrap: engine.Wrap32,
		Speed:      engine.LinkSpeed{Value: 1000},
	}, ether1)

	sfp := snaps["sfp1"]
	assert.True(t, sfp.AdminDisabled)
	assert.False(t, sfp.CarrierUp)
	assert.Equal(t, 10000, sfp.Speed.Mbps())

	// ifName missing, falls back to ifDescr; absent counters are zero.
	bridge, ok := snaps["bridge"]
	require.True(t, ok)
	assert.Zero(t, bridge.RxBytes)
	assert.Zero(t, bridge.Speed.Mbps())
}

func TestPollZeroFillsOptionalColumns(t *testing.T) {
	sess := &fakeSession{
		columns:  routerTable(),
		walkErrs: map[string]error{OIDmtxrLinkDowns: errors.New("no such object"), OIDifHCInOctets: errors.New("timeout")},
	}
	c, _ := newTestClient(sess, nil)

	snaps, err := c.Poll(context.Background(), engine.Device{Name: "r1", Community: "public"})
	require.NoError(t, err)
	assert.Zero(t, snaps["ether1"].LinkDowns)
	assert.Zero(t, snaps["ether1"].RxBytes)
	assert.Equal(t, uint64(2000), snaps["ether1"].TxBytes)
}

func TestPollRequiredColumnFails(t *testing.T) {
	sess := &fakeSession{
		columns:  routerTable(),
		walkErrs: map[string]error{OIDifOperStatus: errors.New("request timeout")},
	}
	c, _ := newTestClient(sess, nil)

	_, err := c.Poll(context.Background(), engine.Device{Name: "r1", Community: "public"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), OIDifOperStatus)
	assert.True(t, sess.closed)
}

func TestPollRetriesConnect(t *testing.T) {
	sess := &fakeSession{
		columns:     routerTable(),
		connectErrs: []error{errors.New("refused"), errors.New("refused")},
	}
	c, _ := newTestClient(sess, nil)

	_, err := c.Poll(context.Background(), engine.Device{Name: "r1", Community: "public"})
	require.NoError(t, err)
	assert.Equal(t, 3, sess.connects)
}

func TestPollConnectionErrorAfterRetries(t *testing.T) {
	sess := &fakeSession{getErr: errors.New("request timeout")}
	c, _ := newTestClient(sess, nil)

	_, err := c.Poll(context.Background(), engine.Device{Name: "r1", Community: "public"})

	var connErr *engine.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "r1", connErr.Device)
	assert.Equal(t, 3, sess.connects)
}

type fakeVault map[string]vault.Credential

func (f fakeVault) List() ([]vault.Summary, error) { return nil, nil }
func (f fakeVault) Get(name string) (*vault.Credential, error) {
	c, ok := f[name]
	if !ok {
		return nil, vault.ErrNotFound
	}
	return &c, nil
}
func (f fakeVault) Add(vault.Credential) error            { return nil }
func (f fakeVault) Update(string, vault.Credential) error { return nil }
func (f fakeVault) Remove(string) error                   { return nil }

func TestCredentialResolution(t *testing.T) {
	ctx := context.Background()
	v3 := vault.Credential{Name: "noc", Version: "3", Username: "noc", AuthProto: "SHA", AuthPass: "x"}

	c, dialed := newTestClient(&fakeSession{columns: routerTable()}, fakeVault{"noc": v3})
	_, err := c.Poll(ctx, engine.Device{Name: "r1", Identity: "noc"})
	require.NoError(t, err)
	require.Len(t, *dialed, 1)
	assert.Equal(t, v3, (*dialed)[0])

	_, err = c.Poll(ctx, engine.Device{Name: "r1", Identity: "missing"})
	assert.ErrorIs(t, err, vault.ErrNotFound)

	_, err = c.Poll(ctx, engine.Device{Name: "r1"})
	assert.ErrorIs(t, err, ErrNoCredential)

	noVault, _ := newTestClient(&fakeSession{}, nil)
	_, err = noVault.Poll(ctx, engine.Device{Name: "r1", Identity: "noc"})
	assert.ErrorIs(t, err, ErrNoVault)
}

func TestDiscover(t *testing.T) {
	c, _ := newTestClient(&fakeSession{columns: routerTable()}, nil)

	ifaces, err := c.Discover(context.Background(), engine.Device{Name: "r1", Community: "public", IgnoredInterfaces: []string{"mgmt"}})
	require.NoError(t, err)
	require.Len(t, ifaces, 4)

	assert.Equal(t, 1, ifaces[0].Index)
	assert.Equal(t, "uplink to core", ifaces[0].Alias)
	assert.Equal(t, "up", ifaces[0].Status())
	assert.Equal(t, "disabled", ifaces[1].Status())
	assert.Equal(t, "sfp-sfpplus1", ifaces[1].Description)
	assert.True(t, ifaces[3].Ignored)
	assert.Equal(t, "down", ifaces[3].Status())
}

func TestProbe(t *testing.T) {
	sess := &fakeSession{}
	c, _ := newTestClient(sess, nil)

	descr, err := c.Probe(context.Background(), engine.Device{Name: "r1", Community: "public"})
	require.NoError(t, err)
	assert.Equal(t, "RouterOS CCR2004", descr)
	assert.True(t, sess.closed)
}

func TestPduUint(t *testing.T) {
	assert.Equal(t, uint64(5), pduUint(integer(5)))
	assert.Equal(t, uint64(0), pduUint(integer(-1)))
	assert.Equal(t, uint64(1<<63), pduUint(counter64(1<<63)))
	assert.Equal(t, uint64(0), pduUint(str("12")))
	assert.Equal(t, uint64(0), pduUint(gosnmp.SnmpPDU{Type: gosnmp.NoSuchInstance}))
}

func TestNewSNMP(t *testing.T) {
	client, err := NewSNMP("10.0.0.1", 0, vault.Community("public"), 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(161), client.Port)
	assert.Equal(t, gosnmp.Version2c, client.Version)
	assert.Equal(t, defaultTimeout, client.Timeout)

	client, err = NewSNMP("10.0.0.1", 1161, vault.Credential{
		Name: "v3", Version: "3", Username: "noc",
		AuthProto: "SHA256", AuthPass: "a", PrivProto: "AES256", PrivPass: "p",
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, gosnmp.AuthPriv, client.MsgFlags)
	params, ok := client.SecurityParameters.(*gosnmp.UsmSecurityParameters)
	require.True(t, ok)
	assert.Equal(t, gosnmp.SHA256, params.AuthenticationProtocol)
	assert.Equal(t, gosnmp.AES256, params.PrivacyProtocol)

	_, err = NewSNMP("10.0.0.1", 0, vault.Credential{Version: "4"}, 0)
	assert.Error(t, err)
}
