// ABOUTME: Admin CLI for the campus assistant knowledge base
// ABOUTME: Signs in with an admin account and lists, uploads or deletes indexed PDF documents

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/config"
	"github.com/uvci/campus-assistant/internal/guard"
	"github.com/uvci/campus-assistant/internal/logging"
	"github.com/uvci/campus-assistant/internal/session"
	"github.com/uvci/campus-assistant/internal/tokenstore"
)

const banner = `
  ___ __ _ _ __ ___  _ __  _   _ ___        __ _  __| |_ __ ___ (_)_ __
 / __/ _' | '_ ' _ \| '_ \| | | / __|_____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| (_| | | | | | | |_) | |_| \__ \_____| (_| | (_| | | | | | | | | | |
 \___\__,_|_| |_| |_| .__/ \__,_|___/      \__,_|\__,_|_| |_| |_|_|_| |_|
                    |_|
`

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or TOML)")
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logging, os.Stderr)

	tokenPath := cfg.Auth.TokenPath
	if tokenPath == "" {
		if tokenPath, err = tokenstore.DefaultPath(); err != nil {
			color.Red("Error: %v\n", err)
			os.Exit(1)
		}
	}
	tokens := tokenstore.NewFileStore(tokenPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := &adminCLI{
		client: api.NewClient(cfg.Server.BaseURL, tokens,
			api.WithLogger(logger),
			api.WithTimeouts(cfg.Server.RequestTimeout, cfg.Chat.StreamTimeout),
		),
		tokens: tokens,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		logger: logger,
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		cli.readSecret = func(label string) (string, error) {
			fmt.Print(label)
			data, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			return string(data), err
		}
	}

	if err := cli.run(ctx, args); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		color.Red("Error: %v\n", api.Detail(err))
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func printUsage(w io.Writer) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: campus-admin [-config file] <command> [args]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  login [email]             Sign in with an admin account")
	fmt.Fprintln(w, "  logout                    Forget the saved session")
	fmt.Fprintln(w, "  me                        Show the signed-in account")
	fmt.Fprintln(w, "  docs                      List indexed documents")
	fmt.Fprintln(w, "  docs list                 List indexed documents")
	fmt.Fprintln(w, "  docs upload <file.pdf>... Upload and index PDF files")
	fmt.Fprintln(w, "  docs delete <id>...       Delete documents by ID")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  CAMPUS_API_URL            API base URL (default: http://localhost:8000)")
	fmt.Fprintln(w, "  CAMPUS_CONFIG             Config file path")
	fmt.Fprintln(w)
}

// adminCLI runs one admin command
type adminCLI struct {
	client     *api.Client
	tokens     tokenstore.Store
	in         *bufio.Reader
	out        io.Writer
	logger     *slog.Logger
	readSecret func(label string) (string, error)
}

func (c *adminCLI) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.cmdLogin(ctx, rest)
	case "logout":
		return c.cmdLogout()
	case "me":
		return c.cmdMe(ctx)
	case "docs":
		return c.cmdDocs(ctx, rest)
	case "help", "-h", "--help":
		printUsage(c.out)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// newSession builds a session manager whose navigation is not used by the CLI
func (c *adminCLI) newSession() *session.Manager {
	nav := session.NavigatorFunc(func(route string) {
		c.logger.Debug("navigate", "route", route)
	})
	return session.NewManager(c.client, c.tokens, nav, c.logger)
}

func (c *adminCLI) readLine(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (c *adminCLI) cmdLogin(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = c.readLine("Email: "); err != nil {
			return err
		}
	}

	readSecret := c.readSecret
	if readSecret == nil {
		readSecret = c.readLine
	}
	password, err := readSecret("Password: ")
	if err != nil {
		return err
	}

	mgr := c.newSession()
	if err := mgr.Login(ctx, api.Credentials{Email: email, Password: password}, session.RouteAdmin); err != nil {
		return err
	}
	if !mgr.IsAdmin() {
		mgr.Logout()
		return errors.New("this account is not an administrator")
	}

	color.New(color.FgGreen).Fprintf(c.out, "✓ Signed in as %s\n", mgr.User().DisplayName())
	return nil
}

func (c *adminCLI) cmdLogout() error {
	c.newSession().Logout()
	color.New(color.FgGreen).Fprintln(c.out, "✓ Signed out")
	return nil
}

// requireAdmin restores the saved session and applies the admin guard
func (c *adminCLI) requireAdmin(ctx context.Context) error {
	st := c.newSession().Resolve(ctx)

	gate := guard.New(session.NavigatorFunc(func(string) {}), true, c.logger)
	switch gate.Evaluate(st) {
	case guard.ShowContent:
		return nil
	default:
		if st.IsAuthenticated() {
			return errors.New("this account is not an administrator")
		}
		return errors.New("not signed in, run: campus-admin login")
	}
}

func (c *adminCLI) cmdMe(ctx context.Context) error {
	mgr := c.newSession()
	st := mgr.Resolve(ctx)
	if !st.IsAuthenticated() {
		return errors.New("not signed in, run: campus-admin login")
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(c.out)
	cyan.Fprintln(c.out, "  Account")
	cyan.Fprintln(c.out, "  -------")
	fmt.Fprintf(c.out, "  ID:          %d\n", st.User.ID)
	fmt.Fprintf(c.out, "  Email:       %s\n", st.User.Email)
	fmt.Fprintf(c.out, "  Name:        %s\n", st.User.DisplayName())
	if st.IsAdmin() {
		color.New(color.FgGreen).Fprintf(c.out, "  Role:        %s\n", st.User.Role)
	} else {
		fmt.Fprintf(c.out, "  Role:        %s\n", st.User.Role)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *adminCLI) cmdDocs(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	var run func(context.Context, []string) error
	switch sub {
	case "list":
		run = func(ctx context.Context, _ []string) error { return c.cmdDocsList(ctx) }
	case "upload":
		if len(args) == 0 {
			return fmt.Errorf("%w: docs upload <file.pdf>...", errUsage)
		}
		run = c.cmdDocsUpload
	case "delete":
		if len(args) == 0 {
			return fmt.Errorf("%w: docs delete <id>...", errUsage)
		}
		run = c.cmdDocsDelete
	default:
		return fmt.Errorf("%w: unknown docs subcommand %q", errUsage, sub)
	}

	if err := c.requireAdmin(ctx); err != nil {
		return err
	}
	return run(ctx, args)
}

func (c *adminCLI) cmdDocsList(ctx context.Context) error {
	docs, err := c.client.Documents(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(c.out)
	cyan.Fprintln(c.out, "  Documents")
	cyan.Fprintln(c.out, "  ---------")

	if len(docs) == 0 {
		fmt.Fprintln(c.out, "  (no documents)")
		fmt.Fprintln(c.out)
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tFILENAME\tCHUNKS\tUPLOADED")
	fmt.Fprintln(w, "  --\t--------\t------\t--------")
	for _, d := range docs {
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", d.ID, truncate(d.Filename, 40), d.ChunkCount, d.UploadedAt.Local().Format("Jan 02 15:04"))
	}
	_ = w.Flush()
	fmt.Fprintln(c.out)
	return nil
}

func (c *adminCLI) cmdDocsUpload(ctx context.Context, paths []string) error {
	green := color.New(color.FgGreen)
	var failed int
	for _, path := range paths {
		res, err := c.client.UploadDocument(ctx, path)
		if err != nil {
			failed++
			color.New(color.FgRed).Fprintf(c.out, "✗ %s: %s\n", path, api.Detail(err))
			continue
		}
		green.Fprintf(c.out, "✓ %s: %s (%d chunks, id %s)\n", res.Filename, res.Message, res.ChunkCount, res.DocumentID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}

func (c *adminCLI) cmdDocsDelete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := c.client.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		color.New(color.FgGreen).Fprintf(c.out, "✓ Deleted document: %s\n", id)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
