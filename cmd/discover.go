package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tonhe/nocwatch/internal/config"
	"github.com/tonhe/nocwatch/internal/device"
	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/logger"
	"github.com/tonhe/nocwatch/internal/vault"
)

func discoverCmd(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	identityName := fs.String("identity", "", "Identity name to use for SNMP authentication")
	community := fs.String("community", "", "SNMP v2c community (instead of an identity)")
	port := fs.Int("port", config.DefaultSNMPPort, "SNMP port")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-request timeout")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: nocwatch discover [-identity NAME | -community STRING] [-port PORT] HOST")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: HOST argument is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadOrDefaultConfig()
	if *identityName == "" && *community == "" {
		*identityName = cfg.DefaultIdentity
	}
	if *identityName == "" && *community == "" {
		fmt.Fprintln(os.Stderr, "Error: -identity or -community is required (or set a default identity)")
		fs.Usage()
		os.Exit(1)
	}

	host := fs.Arg(0)
	dev := engine.Device{Name: host, Host: host, Port: *port, Identity: *identityName, Community: *community}

	var creds vault.Provider
	if dev.Identity != "" {
		creds = openStore(cfg)
	}
	client := device.New(creds, device.WithTimeout(*timeout), device.WithLogger(logger.WithComponent("discover")))

	fmt.Fprintf(os.Stderr, "Discovering interfaces on %s...\n", host)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	interfaces, err := client.Discover(ctx, dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering interfaces: %v\n", err)
		os.Exit(1)
	}

	if len(interfaces) == 0 {
		fmt.Println("No interfaces found.")
		return
	}

	fmt.Printf("Found %d interfaces on %s:\n\n", len(interfaces), host)
	fmt.Printf("%-6s  %-8s  %-24s  %-36s  %10s  %s\n", "Index", "Status", "Name", "Description", "Speed", "Alias")
	fmt.Printf("%-6s  %-8s  %-24s  %-36s  %10s  %s\n", "-----", "------", "----", "-----------", "-----", "-----")

	for _, iface := range interfaces {
		speedStr := ""
		if iface.SpeedMbps > 0 {
			speedStr = formatSpeed(iface.SpeedMbps)
		}
		fmt.Printf("%-6d  %-8s  %-24s  %-36s  %10s  %s\n",
			iface.Index,
			iface.Status(),
			truncate(iface.Name, 24),
			truncate(iface.Description, 36),
			speedStr,
			iface.Alias,
		)
	}
}

// formatSpeed formats a speed in Mbps to a human-readable string.
func formatSpeed(mbps uint64) string {
	switch {
	case mbps >= 1000000 && mbps%1000000 == 0:
		return fmt.Sprintf("%d Tbps", mbps/1000000)
	case mbps >= 1000 && mbps%1000 == 0:
		return fmt.Sprintf("%d Gbps", mbps/1000)
	case mbps >= 1000:
		return fmt.Sprintf("%.1f Gbps", float64(mbps)/1000)
	default:
		return fmt.Sprintf("%d Mbps", mbps)
	}
}

// truncate shortens a string to the given max length, adding "..." if needed.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
