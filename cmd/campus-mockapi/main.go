// ABOUTME: Entry point for the development API server used by the campus clients
// ABOUTME: Serves auth, chat streaming, dashboard and admin endpoints backed by SQLite

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/config"
	"github.com/uvci/campus-assistant/internal/logging"
	"github.com/uvci/campus-assistant/internal/mockapi"
	"github.com/uvci/campus-assistant/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
  ___ __ _ _ __ ___  _ __  _   _ ___        __ _ _ __ (_)
 / __/ _' | '_ ' _ \| '_ \| | | / __|_____ / _' | '_ \| |
| (_| (_| | | | | | | |_) | |_| \__ \_____| (_| | |_) | |
 \___\__,_|_| |_| |_| .__/ \__,_|___/      \__,_| .__/|_|
                    |_|                         |_|
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: campus-mockapi <command> [flags]")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                          Start the API server")
		fmt.Println("  bootstrap --email E --password P [--name N]")
		fmt.Println("                                 Create an admin account")
		fmt.Println("  health                         Check server health")
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "bootstrap":
		err = runBootstrap(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, string, error) {
	configPath := fs.String("config", "", "Path to config file (YAML or TOML)")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	cfg, path, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "Listen address (overrides mockapi.addr)")
	cfg, configPath, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.MockAPI.Addr = *addr
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := logging.Setup(cfg.Logging, os.Stderr)

	secret := cfg.MockAPI.JWTSecret
	generated := secret == ""
	if generated {
		if secret, err = randomSecret(); err != nil {
			return err
		}
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	if configPath == "" {
		configPath = "(defaults)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.MockAPI.DatabasePath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.MockAPI.Addr)
	if generated {
		yellow.Print("    ! ")
		fmt.Println("No jwt_secret configured, sessions end when the server stops")
	}
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.MockAPI.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	srv, err := mockapi.New(mockapi.Options{
		Store:    st,
		Tokens:   auth.NewJWTVerifier([]byte(secret)),
		TokenTTL: cfg.MockAPI.TokenTTL,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("starting campus-mockapi",
		"addr", cfg.MockAPI.Addr,
		"database", cfg.MockAPI.DatabasePath,
	)
	return srv.Run(ctx, cfg.MockAPI.Addr)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// runBootstrap creates an admin account directly in the database, since the
// API only lets existing admins see the console.
func runBootstrap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	email := fs.String("email", "", "Admin email")
	password := fs.String("password", "", "Admin password")
	name := fs.String("name", "", "Display name")
	cfg, _, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" {
		return errors.New("--email is required")
	}
	if len(*password) < auth.MinPasswordLength {
		return fmt.Errorf("--password must be at least %d characters", auth.MinPasswordLength)
	}
	if len(*name) > 120 {
		return errors.New("display name exceeds maximum length of 120 characters")
	}

	st, err := store.NewSQLiteStore(cfg.MockAPI.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	user := &store.User{
		Email:        *email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(*name),
		Role:         store.RoleAdmin,
		IsActive:     true,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return fmt.Errorf("an account already exists for %s", *email)
		}
		return fmt.Errorf("creating admin: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	green.Printf("✓ Created admin account #%d\n", user.ID)
	fmt.Print("  Sign in with: ")
	cyan.Printf("campus-admin login %s\n", user.Email)
	return nil
}

func runHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	cfg, _, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.MockAPI.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
