package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/tonhe/nocwatch/internal/config"
	"github.com/tonhe/nocwatch/internal/device"
	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/vault"
)

func identityCmd(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: nocwatch identity <list|add|remove|test>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		identityList()
	case "add":
		identityAdd()
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: nocwatch identity remove NAME")
			os.Exit(1)
		}
		identityRemove(args[1])
	case "test":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: nocwatch identity test NAME HOST")
			os.Exit(1)
		}
		identityTest(args[1], args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown identity command: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: nocwatch identity <list|add|remove|test>")
		os.Exit(1)
	}
}

// openStore opens the credential vault for the CLI, exiting on failure.
func openStore(cfg *config.Config) *vault.FileStore {
	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config directories: %v\n", err)
		os.Exit(1)
	}
	path, err := config.VaultPathFor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	store, err := openVault(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vault: %v\n", err)
		os.Exit(1)
	}
	return store
}

// openVault opens the vault at path. The master password comes from the
// environment; otherwise the empty password is tried before prompting.
func openVault(path string) (*vault.FileStore, error) {
	if key := os.Getenv(vault.MasterKeyEnv); key != "" {
		return vault.Open(path, []byte(key))
	}

	store, err := vault.Open(path, []byte(""))
	if err == nil || !errors.Is(err, vault.ErrDecrypt) {
		return store, err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("%w: set %s", err, vault.MasterKeyEnv)
	}
	password, err := promptSecret("Master password: ")
	if err != nil {
		return nil, err
	}
	return vault.Open(path, password)
}

// promptSecret reads a line from the terminal without echo.
func promptSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return secret, nil
}

func identityList() {
	store := openStore(loadOrDefaultConfig())
	summaries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing identities: %v\n", err)
		os.Exit(1)
	}

	if len(summaries) == 0 {
		fmt.Println("No identities configured.")
		return
	}

	for _, s := range summaries {
		line := fmt.Sprintf("%-20s  version=%s", s.Name, s.Version)
		if s.Username != "" {
			line += fmt.Sprintf("  user=%s", s.Username)
		}
		if s.AuthProto != "" {
			line += fmt.Sprintf("  auth=%s", s.AuthProto)
		}
		if s.PrivProto != "" {
			line += fmt.Sprintf("  priv=%s", s.PrivProto)
		}
		fmt.Println(line)
	}
}

func identityAdd() {
	cred, err := promptCredential(bufio.NewReader(os.Stdin), os.Stdout, promptSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openStore(loadOrDefaultConfig())
	if err := store.Add(cred); err != nil {
		fmt.Fprintf(os.Stderr, "Error adding identity: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Identity %q added.\n", cred.Name)
}

// promptCredential asks for a credential field by field. Secrets are read
// through secret so they are not echoed.
func promptCredential(in *bufio.Reader, out io.Writer, secret func(prompt string) ([]byte, error)) (vault.Credential, error) {
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		line, _ := in.ReadString('\n')
		return strings.TrimSpace(line)
	}
	optional := func(prompt string) string {
		v := ask(prompt)
		if strings.EqualFold(v, "none") {
			return ""
		}
		return strings.ToUpper(v)
	}

	cred := vault.Credential{
		Name:    ask("Identity name: "),
		Version: ask("SNMP version (1, 2c, 3): "),
	}

	switch cred.Version {
	case "1", "2c":
		cred.Community = ask("Community string: ")
	case "3":
		cred.Username = ask("Username: ")
		cred.AuthProto = optional("Auth protocol (none, MD5, SHA, SHA256, SHA512): ")
		if cred.AuthProto == "" {
			break
		}
		pass, err := secret("Auth password: ")
		if err != nil {
			return vault.Credential{}, err
		}
		cred.AuthPass = string(pass)

		cred.PrivProto = optional("Privacy protocol (none, DES, AES128, AES192, AES256): ")
		if cred.PrivProto == "" {
			break
		}
		pass, err = secret("Privacy password: ")
		if err != nil {
			return vault.Credential{}, err
		}
		cred.PrivPass = string(pass)
	}

	return cred, cred.Validate()
}

func identityRemove(name string) {
	store := openStore(loadOrDefaultConfig())
	if err := store.Remove(name); err != nil {
		fmt.Fprintf(os.Stderr, "Error removing identity: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Identity %q removed.\n", name)
}

func identityTest(name, host string) {
	store := openStore(loadOrDefaultConfig())
	if _, err := store.Get(name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Testing SNMP connectivity to %s using identity %q...\n", host, name)

	client := device.New(store, device.WithTimeout(10*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	descr, err := client.Probe(ctx, engine.Device{Name: host, Host: host, Port: config.DefaultSNMPPort, Identity: name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", host, err)
		os.Exit(1)
	}

	fmt.Printf("sysDescr: %s\n", descr)
	fmt.Println("Connection test successful.")
}
