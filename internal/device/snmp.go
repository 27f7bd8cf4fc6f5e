// Package device polls network devices over SNMP.
package device

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/tonhe/nocwatch/internal/vault"
)

// IF-MIB and vendor columns read for every interface.
const (
	OIDifDescr       = "1.3.6.1.2.1.2.2.1.2"
	OIDifAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	OIDifOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	OIDifInDiscards  = "1.3.6.1.2.1.2.2.1.13"
	OIDifInErrors    = "1.3.6.1.2.1.2.2.1.14"
	OIDifOutDiscards = "1.3.6.1.2.1.2.2.1.19"
	OIDifOutErrors   = "1.3.6.1.2.1.2.2.1.20"
	OIDifName        = "1.3.6.1.2.1.31.1.1.1.1"
	OIDifHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	OIDifHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
	OIDifHighSpeed   = "1.3.6.1.2.1.31.1.1.1.15"
	OIDifAlias       = "1.3.6.1.2.1.31.1.1.1.18"
	OIDsysDescr      = "1.3.6.1.2.1.1.1.0"

	// MikroTik per-interface link-down counter (mtxrInterfaceStatsLinkDowns).
	OIDmtxrLinkDowns = "1.3.6.1.4.1.14988.1.1.14.1.1.90"
)

const (
	defaultPort    = 161
	adminDisabled  = 2
	operUp         = 1
	snmpRetries    = 1
	defaultTimeout = 5 * time.Second
)

// NewSNMP creates a gosnmp client for host configured from a credential.
func NewSNMP(host string, port int, cred vault.Credential, timeout time.Duration) (*gosnmp.GoSNMP, error) {
	if port == 0 {
		port = defaultPort
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &gosnmp.GoSNMP{
		Target:         host,
		Port:           uint16(port),
		Timeout:        timeout,
		Retries:        snmpRetries,
		MaxRepetitions: 50,
	}

	switch cred.Version {
	case "1":
		client.Version = gosnmp.Version1
		client.Community = cred.Community
	case "2c", "":
		client.Version = gosnmp.Version2c
		client.Community = cred.Community
	case "3":
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = msgFlags(cred)
		client.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   authProto(cred.AuthProto),
			AuthenticationPassphrase: cred.AuthPass,
			PrivacyProtocol:          privProto(cred.PrivProto),
			PrivacyPassphrase:        cred.PrivPass,
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version: %s", cred.Version)
	}
	return client, nil
}

func msgFlags(c vault.Credential) gosnmp.SnmpV3MsgFlags {
	if c.PrivProto != "" && c.PrivPass != "" {
		return gosnmp.AuthPriv
	}
	if c.AuthProto != "" && c.AuthPass != "" {
		return gosnmp.AuthNoPriv
	}
	return gosnmp.NoAuthNoPriv
}

func authProto(proto string) gosnmp.SnmpV3AuthProtocol {
	switch proto {
	case "MD5":
		return gosnmp.MD5
	case "SHA":
		return gosnmp.SHA
	case "SHA256":
		return gosnmp.SHA256
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func privProto(proto string) gosnmp.SnmpV3PrivProtocol {
	switch proto {
	case "DES":
		return gosnmp.DES
	case "AES", "AES128":
		return gosnmp.AES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}
