// ABOUTME: Local development implementation of the campus assistant HTTP API
// ABOUTME: Wires the chi router, auth middleware and handlers, and runs with graceful shutdown

package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/conversation"
	"github.com/uvci/campus-assistant/internal/cooldown"
	"github.com/uvci/campus-assistant/internal/store"
)

// Defaults applied by New
const (
	DefaultTokenTTL       = 24 * time.Hour
	DefaultResetTokenTTL  = 30 * time.Minute
	DefaultResetCooldown  = time.Minute
	DefaultUVCICooldown   = 30 * time.Second
	DefaultMaxUploadBytes = 20 << 20
)

// TokenIssuer signs and verifies access tokens
type TokenIssuer interface {
	auth.TokenVerifier
	Generate(subject, role string, expiresIn time.Duration) (string, error)
}

// ResetNotifier delivers a password reset token to its owner. The mock has
// no mail transport; the default notifier logs the token.
type ResetNotifier interface {
	SendReset(ctx context.Context, email, token string) error
}

// Options configures a Server
type Options struct {
	Store         store.Store
	Tokens        TokenIssuer
	Responder     conversation.Responder // nil uses a CannedResponder
	Moodle        Moodle                 // nil uses SimulatedMoodle
	Notifier      ResetNotifier          // nil logs reset tokens
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	ResetCooldown time.Duration
	UVCICooldown  time.Duration
	MaxUpload     int64
	Logger        *slog.Logger
}

// Server is the mock API
type Server struct {
	store         store.Store
	tokens        TokenIssuer
	conversations *conversation.Service
	moodle        Moodle
	notifier      ResetNotifier
	tokenTTL      time.Duration
	resetTTL      time.Duration
	maxUpload     int64
	resetLimiter  *cooldown.Window
	uvciLimiter   *cooldown.Window
	logger        *slog.Logger
	now           func() time.Time
	router        chi.Router
	httpServer    *http.Server
}

// New builds a Server from opts. Store and Tokens are required.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mockapi")

	responder := opts.Responder
	if responder == nil {
		responder = &conversation.CannedResponder{Delay: 40 * time.Millisecond}
	}
	moodle := opts.Moodle
	if moodle == nil {
		moodle = &SimulatedMoodle{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = &logNotifier{logger: logger}
	}

	s := &Server{
		store:         opts.Store,
		tokens:        opts.Tokens,
		conversations: conversation.New(opts.Store, responder, logger),
		moodle:        moodle,
		notifier:      notifier,
		tokenTTL:      orDefault(opts.TokenTTL, DefaultTokenTTL),
		resetTTL:      orDefault(opts.ResetTokenTTL, DefaultResetTokenTTL),
		maxUpload:     opts.MaxUpload,
		resetLimiter:  cooldown.New(orDefault(opts.ResetCooldown, DefaultResetCooldown), 0),
		uvciLimiter:   cooldown.New(orDefault(opts.UVCICooldown, DefaultUVCICooldown), 0),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	s.router = s.routes()
	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	requireUser := auth.Middleware(s.store, s.tokens)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
			r.With(requireUser).Get("/me", s.handleMe)
		})

		r.Get("/dashboard/announcements", s.handleAnnouncements)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/chat", func(r chi.Router) {
				r.Post("/stream", s.handleChatStream)
				r.Get("/conversations", s.handleListConversations)
				r.Delete("/conversations/{id}", s.handleDeleteConversation)
			})

			r.Route("/settings/uvci", func(r chi.Router) {
				r.Get("/", s.handleUVCIStatus)
				r.Post("/", s.handleConnectUVCI)
				r.Delete("/", s.handleDisconnectUVCI)
			})

			r.Get("/dashboard/stats", s.handleStats)
			r.Get("/dashboard/calendar", s.handleCalendar)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin())
				r.Post("/upload", s.handleUpload)
				r.Get("/documents", s.handleListDocuments)
				r.Delete("/documents/{id}", s.handleDeleteDocument)
			})
		})
	})

	return r
}

// requestLogger logs one line per request through slog
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

// Run listens on addr and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// No write timeout: chat replies are streamed
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the caller's is already done.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down mock API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// logNotifier writes reset tokens to the log so a developer can use them
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) SendReset(_ context.Context, email, token string) error {
	n.logger.Info("password reset requested", "email", email, "token", token)
	return nil
}
