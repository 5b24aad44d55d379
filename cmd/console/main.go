package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"codeberg.org/motorline/relay/internal/config"
	"codeberg.org/motorline/relay/internal/connection"
	"codeberg.org/motorline/relay/internal/identity"
	"codeberg.org/motorline/relay/internal/operator"
	"codeberg.org/motorline/relay/internal/tui"
)

func main() {
	cfg, err := config.LoadConsoleEnvironment()
	if err != nil {
		fmt.Printf("error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.Credential == "" {
		fmt.Println("RELAY_OPERATOR_TOKEN is required")
		os.Exit(1)
	}

	handle := os.Getenv("RELAY_OPERATOR_HANDLE")
	if handle == "" {
		handle = "Support"
	}

	conn := connection.NewManager(connection.Config{
		ServerAddress: cfg.ServerAddress,
		Credential:    cfg.Credential,
		Reconnection: connection.ReconnectionConfig{
			Enabled:        true,
			MaxAttempts:    5,
			Delay:          2 * time.Second,
			ConnectTimeout: cfg.ConnectTimeout,
		},
	})
	defer conn.Close()

	// visitor identities come from the customer API when configured;
	// without it every visitor shows up with a placeholder name
	var resolver identity.Resolver
	if apiURL := os.Getenv("CUSTOMER_API_URL"); apiURL != "" {
		resolver = identity.NewClient(apiURL, os.Getenv("CUSTOMER_API_TOKEN"))
	}

	registry := operator.NewRegistry(conn, resolver, handle)

	app := tui.NewApp(conn, registry)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("error running console: %v\n", err)
		os.Exit(1)
	}
}
