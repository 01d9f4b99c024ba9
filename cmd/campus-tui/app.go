// ABOUTME: Command loop of the terminal client wiring session, guards and the chat controller
// ABOUTME: Navigation requests are queued and shown between commands so output never interleaves

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/chat"
	"github.com/uvci/campus-assistant/internal/dashboard"
	"github.com/uvci/campus-assistant/internal/guard"
	"github.com/uvci/campus-assistant/internal/render"
	"github.com/uvci/campus-assistant/internal/session"
	"github.com/uvci/campus-assistant/internal/tokenstore"
)

var (
	dim     = color.New(color.Faint).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
	errText = color.New(color.FgRed).SprintFunc()
	okText  = color.New(color.FgGreen).SprintFunc()
	accent  = color.New(color.FgCyan).SprintFunc()
)

type appConfig struct {
	Client   *api.Client
	Tokens   tokenstore.Store
	In       io.Reader
	Out      io.Writer
	Renderer *render.Renderer
	Logger   *slog.Logger
}

// app is one interactive session
type app struct {
	client   *api.Client
	out      io.Writer
	input    *lineReader
	renderer *render.Renderer
	logger   *slog.Logger

	session   *session.Manager
	chat      *chat.Controller
	userGuard *guard.Guard
	adminGate *guard.Guard
	dashboard *dashboard.Loader
	reply     *render.LineWriter

	// readSecret reads a password; the default echoes like any other line
	readSecret func(ctx context.Context, label string) (string, error)

	navMu   sync.Mutex
	pending []string
	view    string

	// watched is the last state the session watcher evaluated; watchCh is
	// closed and replaced each time it changes
	watchMu sync.Mutex
	watched session.State
	watchCh chan struct{}

	// conversations is the last list shown by /history
	conversations []api.Conversation
}

func newApp(cfg appConfig) *app {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &app{
		client:   cfg.Client,
		out:      cfg.Out,
		input:    newLineReader(cfg.In),
		renderer: cfg.Renderer,
		logger:   logger,
		view:     session.RouteHome,
		watchCh:  make(chan struct{}),
	}
	nav := session.NavigatorFunc(a.queueView)

	a.session = session.NewManager(cfg.Client, cfg.Tokens, nav, logger)
	a.userGuard = guard.New(nav, false, logger)
	a.adminGate = guard.New(nav, true, logger)
	a.dashboard = dashboard.NewLoader(cfg.Client, logger)
	a.reply = render.NewLineWriter(cfg.Renderer, cfg.Out)
	a.chat = chat.NewController(cfg.Client,
		chat.WithObserver(&replyPrinter{app: a}),
		chat.WithLogger(logger),
	)
	a.readSecret = func(ctx context.Context, label string) (string, error) {
		return a.prompt(ctx, label)
	}
	return a
}

// queueView records a navigation request. It may be called from any goroutine.
func (a *app) queueView(route string) {
	a.navMu.Lock()
	defer a.navMu.Unlock()
	a.pending = append(a.pending, route)
}

func (a *app) takePending() []string {
	a.navMu.Lock()
	defer a.navMu.Unlock()
	routes := a.pending
	a.pending = nil
	return routes
}

// showPendingViews renders the views navigated to during the last command.
// Navigating to the view already shown is a no-op.
func (a *app) showPendingViews(ctx context.Context) {
	a.settleSession(ctx)
	for _, route := range a.takePending() {
		if route == a.view {
			continue
		}
		a.view = route
		fmt.Fprintln(a.out, dim("→ "+route))
		switch route {
		case session.RouteDashboard:
			a.showDashboard(ctx)
		case session.RouteAdmin:
			a.showDocuments(ctx)
		case session.RouteLogin:
			fmt.Fprintln(a.out, "Connectez-vous avec /login ou créez un compte avec /register.")
		}
	}
}

// settleTimeout bounds how long the command loop waits for the session
// watcher before rendering
const settleTimeout = time.Second

// watchSession re-evaluates the signed-in guard on every session change
// until ctx ends. Redirects are queued like any other navigation.
func (a *app) watchSession(ctx context.Context) {
	a.userGuard.Watch(ctx, a.session, a.sessionChanged)
}

func (a *app) sessionChanged(d guard.Decision, s session.State) {
	if d == guard.ShowNothing {
		// The chat view is gone with the session; the next one starts fresh.
		a.chat.Reset()
	}

	a.watchMu.Lock()
	a.watched = s
	close(a.watchCh)
	a.watchCh = make(chan struct{})
	a.watchMu.Unlock()
}

// settleSession waits until the session watcher has evaluated the current
// state, so its redirects are queued before views are rendered.
func (a *app) settleSession(ctx context.Context) {
	timeout := time.NewTimer(settleTimeout)
	defer timeout.Stop()

	for {
		current := a.session.State()
		a.watchMu.Lock()
		caughtUp := a.watched == current
		changed := a.watchCh
		a.watchMu.Unlock()
		if caughtUp {
			return
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return
		case <-timeout.C:
			a.logger.Debug("session watcher lagging, rendering anyway", "phase", current.Phase)
			return
		}
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) printErr(err error) {
	fmt.Fprintln(a.out, errText("[erreur] "+api.Detail(err)))
}

// prompt prints label and reads one line. It returns io.EOF at end of input.
func (a *app) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(a.out, label)

	line, err := a.input.next(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) promptLabel() string {
	st := a.session.State()
	switch {
	case st.Phase == session.PhaseLoading:
		return "[…]> "
	case st.IsAuthenticated():
		return fmt.Sprintf("[%s]> ", accent(st.User.DisplayName()))
	default:
		return "[invité]> "
	}
}

// Run restores the session and processes commands until /quit, end of
// input or ctx cancellation.
func (a *app) Run(ctx context.Context) error {
	a.printf("%s %s\n", bold("Assistant UVCI"), dim(a.client.BaseURL()))

	st := a.session.Resolve(ctx)
	if st.IsAuthenticated() {
		a.printf("Session restaurée : %s\n", st.User.DisplayName())
	} else {
		a.printf("Aucune session active.\n")
	}
	a.printf("Tapez un message pour discuter avec l'assistant. /help pour les commandes.\n")

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go a.watchSession(watchCtx)

	a.showPendingViews(ctx)
	fmt.Fprintln(a.out)

	for {
		input, err := a.prompt(ctx, a.promptLabel())
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if input == "" {
			continue
		}

		quit, err := a.dispatch(ctx, input)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			a.printErr(err)
		}
		a.showPendingViews(ctx)
		if quit {
			return nil
		}
		fmt.Fprintln(a.out)
	}
}

// dispatch runs one line of input and reports whether the loop should end.
func (a *app) dispatch(ctx context.Context, input string) (bool, error) {
	if !strings.HasPrefix(input, "/") {
		return false, a.sendChat(ctx, input)
	}

	name, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		a.printHelp()
	case "/login":
		return false, a.login(ctx, args)
	case "/register":
		return false, a.register(ctx, args)
	case "/logout":
		a.session.Logout()
		a.printf("%s\n", okText("Déconnecté."))
	case "/me":
		a.showMe()
	case "/forgot":
		return false, a.forgotPassword(ctx, args)
	case "/reset":
		return false, a.resetPassword(ctx, args)
	case "/new":
		if a.chat.Reset() {
			a.printf("Nouvelle conversation.\n")
		}
	case "/history":
		if a.requireUser() {
			return false, a.showHistory(ctx)
		}
	case "/delete":
		if a.requireUser() {
			return false, a.deleteConversation(ctx, args)
		}
	case "/dashboard":
		if a.requireUser() {
			a.showDashboard(ctx)
		}
	case "/settings":
		if a.requireUser() {
			return false, a.settings(ctx, args)
		}
	case "/docs":
		if a.requireAdmin() {
			a.showDocuments(ctx)
		}
	default:
		a.printf("Commande inconnue %s. /help pour la liste.\n", name)
	}
	return false, nil
}

func (a *app) printHelp() {
	lines := [][2]string{
		{"<message>", "Envoyer un message à l'assistant"},
		{"/new", "Commencer une nouvelle conversation"},
		{"/history", "Lister vos conversations"},
		{"/delete <n>", "Supprimer la conversation n de la liste"},
		{"/dashboard", "Statistiques, annonces et calendrier"},
		{"/settings", "État du compte UVCI (connect <identifiant> | disconnect)"},
		{"/docs", "Documents indexés (administrateurs)"},
		{"/login [email]", "Se connecter"},
		{"/register [email]", "Créer un compte"},
		{"/forgot [email]", "Recevoir un lien de réinitialisation"},
		{"/reset [jeton]", "Choisir un nouveau mot de passe"},
		{"/me", "Afficher le compte connecté"},
		{"/logout", "Se déconnecter"},
		{"/quit", "Quitter"},
	}
	a.printf("Commandes :\n")
	for _, l := range lines {
		a.printf("  %-20s %s\n", l[0], l[1])
	}
}

// requireUser evaluates the signed-in guard and explains a refusal.
func (a *app) requireUser() bool {
	switch a.userGuard.Evaluate(a.session.State()) {
	case guard.ShowContent:
		return true
	case guard.ShowPlaceholder:
		a.printf("Chargement de la session…\n")
	default:
		a.printf("Vous devez être connecté.\n")
	}
	return false
}

func (a *app) requireAdmin() bool {
	switch a.adminGate.Evaluate(a.session.State()) {
	case guard.ShowContent:
		return true
	case guard.ShowPlaceholder:
		a.printf("Chargement de la session…\n")
	default:
		if a.session.IsAuthenticated() {
			a.printf("Accès réservé aux administrateurs.\n")
		} else {
			a.printf("Vous devez être connecté.\n")
		}
	}
	return false
}

func (a *app) sendChat(ctx context.Context, text string) error {
	if !a.requireUser() {
		return nil
	}
	if !a.chat.Send(ctx, text) {
		a.printf("Une réponse est déjà en cours.\n")
		return nil
	}
	return a.chat.Wait(ctx)
}

// replyPrinter streams the assistant reply to the terminal
type replyPrinter struct {
	app *app
}

func (p *replyPrinter) MessageAdded(msg chat.Message) {
	if msg.Role != chat.RoleAssistant {
		return
	}
	a := p.app
	if msg.IsError() {
		_ = a.reply.Flush()
		fmt.Fprintln(a.out, errText(a.renderer.Render(msg.Content)))
		return
	}
	if err := a.reply.Flush(); err != nil {
		a.logger.Warn("writing reply", "error", err)
	}
}

func (p *replyPrinter) Chunk(fragment string) {
	if _, err := p.app.reply.WriteString(fragment); err != nil {
		p.app.logger.Warn("writing reply", "error", err)
	}
}

func (p *replyPrinter) Idle() {}
