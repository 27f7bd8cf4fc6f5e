package cmd

import (
	"fmt"
	"os"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// knownSubcommands is the set of CLI subcommands.
var knownSubcommands = map[string]bool{
	"run":      true,
	"watch":    true,
	"identity": true,
	"discover": true,
	"config":   true,
	"themes":   true,
	"version":  true,
	"help":     true,
}

// IsSubcommand returns true if the argument is a known CLI subcommand.
func IsSubcommand(arg string) bool {
	return knownSubcommands[arg]
}

// Execute dispatches to the appropriate CLI subcommand handler. With no
// subcommand the collector is run.
func Execute(args []string) {
	if len(args) == 0 || !IsSubcommand(args[0]) {
		if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			printUsage()
			os.Exit(1)
		}
		runCmd(args)
		return
	}

	switch args[0] {
	case "run":
		runCmd(args[1:])
	case "watch":
		watchCmd(args[1:])
	case "identity":
		identityCmd(args[1:])
	case "discover":
		discoverCmd(args[1:])
	case "config":
		configCmd(args[1:])
	case "themes":
		themesCmd()
	case "version":
		fmt.Printf("nocwatch %s\n", Version)
	case "help":
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`nocwatch - interface health collector

Usage:
  nocwatch [run] [-config PATH] [-once]   Run the collector, metrics endpoint and API
  nocwatch watch [-api URL] [-key KEY]    Live status board for a running collector
  nocwatch discover [flags] HOST          Discover device interfaces
  nocwatch identity <cmd>                 Manage SNMP identities
  nocwatch config <cmd>                   Manage configuration
  nocwatch themes                         List available themes
  nocwatch version                        Show version
  nocwatch help                           Show this help

Identity Commands:
  nocwatch identity list                List all identities
  nocwatch identity add                 Add a new identity (interactive)
  nocwatch identity remove NAME         Remove an identity
  nocwatch identity test NAME HOST      Test SNMP connectivity

Discovery:
  nocwatch discover -identity NAME HOST
  nocwatch discover -community STRING HOST

Config Commands:
  nocwatch config path                  Show config file path
  nocwatch config init                  Write a starter config file
  nocwatch config theme NAME            Set the watch theme
  nocwatch config identity NAME         Set the default identity

Environment:
  NOCWATCH_MASTER_KEY   vault master password
  NOCWATCH_API_KEY      API key (overrides [api] api_key)
  NOCWATCH_PG_DSN       PostgreSQL DSN (overrides [storage] dsn)`)
}
