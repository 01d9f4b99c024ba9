// ABOUTME: Terminal client for the campus assistant: chat, account, history, dashboard and settings
// ABOUTME: Loads .env and config, restores the saved session, then runs the command loop

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/config"
	"github.com/uvci/campus-assistant/internal/logging"
	"github.com/uvci/campus-assistant/internal/render"
	"github.com/uvci/campus-assistant/internal/tokenstore"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or TOML)")
	apiURL := flag.String("api", "", "API base URL (overrides config)")
	flag.Parse()

	// A missing .env is normal
	_ = godotenv.Load()

	cfg, source, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.Server.BaseURL = *apiURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	logger := logging.Setup(cfg.Logging, os.Stderr)
	if source != "" {
		logger.Debug("loaded config", "path", source)
	}

	tokenPath := cfg.Auth.TokenPath
	if tokenPath == "" {
		if tokenPath, err = tokenstore.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	tokens := tokenstore.NewFileStore(tokenPath)

	client := api.NewClient(cfg.Server.BaseURL, tokens,
		api.WithLogger(logger),
		api.WithTimeouts(cfg.Server.RequestTimeout, cfg.Chat.StreamTimeout),
	)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	styled := term.IsTerminal(int(os.Stdout.Fd())) && !color.NoColor

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(appConfig{
		Client:   client,
		Tokens:   tokens,
		In:       os.Stdin,
		Out:      os.Stdout,
		Renderer: render.New(styled),
		Logger:   logger,
	})
	if interactive {
		a.readSecret = a.terminalSecret(int(os.Stdin.Fd()))
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nAu revoir !")
}

// terminalSecret reads a password from the terminal without echo. Lines
// already typed ahead sit in the input buffer, so those are read from there.
func (a *app) terminalSecret(fd int) func(ctx context.Context, label string) (string, error) {
	return func(ctx context.Context, label string) (string, error) {
		if !a.input.idle() {
			return a.prompt(ctx, label)
		}

		fmt.Fprint(a.out, label)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(data), nil
	}
}
