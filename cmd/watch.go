package cmd

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tonhe/nocwatch/internal/api"
	"github.com/tonhe/nocwatch/internal/config"
	"github.com/tonhe/nocwatch/tui"
)

func watchCmd(args []string) {
	cfg := loadOrDefaultConfig()

	endpoint := cfg.API.Listen
	if endpoint == "" {
		endpoint = api.DefaultListen
	}

	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", endpoint, "Collector API address")
	apiKey := fs.String("key", cfg.API.APIKey, "API key (default from config or "+config.EnvAPIKey+")")
	theme := fs.String("theme", cfg.Theme, "Colour theme (see 'nocwatch themes')")
	refresh := fs.Duration("refresh", tui.DefaultRefresh, "Board refresh interval")
	noStream := fs.Bool("no-stream", false, "Poll events instead of streaming them")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	client, err := api.NewClient(*apiURL, *apiKey, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	model := tui.NewAppModel(client, tui.Options{
		Endpoint:     *apiURL,
		Refresh:      *refresh,
		Theme:        *theme,
		ErrThreshold: cfg.Thresholds.ErrPerSec,
		Version:      Version,
		NoStream:     *noStream,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
