// Package vault keeps SNMP credentials in an encrypted file.
package vault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("credential not found")
	ErrDuplicate = errors.New("credential already exists")
	ErrDecrypt   = errors.New("failed to decrypt vault (wrong master password?)")
	ErrInvalid   = errors.New("invalid credential")
)

// Credential is a named SNMP credential profile that devices reference.
type Credential struct {
	Name      string `json:"name"`
	Version   string `json:"version"`    // "1", "2c", "3"
	Community string `json:"community"`  // v1/v2c
	Username  string `json:"username"`   // v3
	AuthProto string `json:"auth_proto"` // "MD5", "SHA", "SHA256", "SHA512"
	AuthPass  string `json:"auth_pass"`
	PrivProto string `json:"priv_proto"` // "DES", "AES128", "AES192", "AES256"
	PrivPass  string `json:"priv_pass"`
}

// Community returns a v2c credential for an inline community string.
func Community(community string) Credential {
	return Credential{Name: "inline", Version: "2c", Community: community}
}

// Validate checks that the fields required by the SNMP version are present.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch c.Version {
	case "1", "2c":
		if c.Community == "" {
			return fmt.Errorf("%w: %s: community is required for v%s", ErrInvalid, c.Name, c.Version)
		}
	case "3":
		if c.Username == "" {
			return fmt.Errorf("%w: %s: username is required for v3", ErrInvalid, c.Name)
		}
		if c.PrivProto != "" && c.AuthProto == "" {
			return fmt.Errorf("%w: %s: privacy requires authentication", ErrInvalid, c.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unsupported SNMP version %q", ErrInvalid, c.Name, c.Version)
	}
	return nil
}

// Summary is a credential with its secrets removed.
type Summary struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Username  string `json:"username,omitempty"`
	AuthProto string `json:"auth_proto,omitempty"`
	PrivProto string `json:"priv_proto,omitempty"`
}

func (c Credential) Summarize() Summary {
	return Summary{
		Name:      c.Name,
		Version:   c.Version,
		Username:  c.Username,
		AuthProto: c.AuthProto,
		PrivProto: c.PrivProto,
	}
}

// Provider looks up and manages credentials.
type Provider interface {
	List() ([]Summary, error)
	Get(name string) (*Credential, error)
	Add(c Credential) error
	Update(name string, c Credential) error
	Remove(name string) error
}
