// ABOUTME: Scripted sessions of the terminal client against the mock API
// ABOUTME: Feeds commands on stdin and checks the transcript

package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/conversation"
	"github.com/uvci/campus-assistant/internal/mockapi"
	"github.com/uvci/campus-assistant/internal/render"
	"github.com/uvci/campus-assistant/internal/store"
	"github.com/uvci/campus-assistant/internal/tokenstore"
)

func newBackend(t *testing.T) string {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := mockapi.New(mockapi.Options{
		Store:     st,
		Tokens:    auth.NewJWTVerifier([]byte("tui-secret")),
		Responder: &conversation.CannedResponder{},
	})
	require.NoError(t, err)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)
	return httpSrv.URL
}

func registerAccount(t *testing.T, baseURL, email string, role api.Role) {
	t.Helper()
	c := api.NewClient(baseURL, nil)
	require.NoError(t, c.Register(context.Background(), api.RegisterRequest{
		Email: email, Password: "password123", FullName: "Awa Koné", Role: role,
	}))
}

// runScript runs the client over the given input lines and returns the transcript
func runScript(t *testing.T, baseURL string, tokens tokenstore.Store, lines ...string) string {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	a := newApp(appConfig{
		Client:   api.NewClient(baseURL, tokens),
		Tokens:   tokens,
		In:       strings.NewReader(strings.Join(lines, "\n") + "\n"),
		Out:      &out,
		Renderer: render.New(false),
	})
	require.NoError(t, a.Run(context.Background()))
	return out.String()
}

func TestApp_StudentSession(t *testing.T) {
	baseURL := newBackend(t)
	registerAccount(t, baseURL, "awa@uvci.edu.ci", api.RoleStudent)
	tokens := tokenstore.NewMemoryStore()

	out := runScript(t, baseURL, tokens,
		"/login awa@uvci.edu.ci",
		"password123",
		"Bonjour",
		"/history",
		"/delete 1",
		"/history",
		"/settings",
		"/logout",
		"/history",
		"/quit",
	)

	assert.Contains(t, out, "Aucune session active")
	assert.Contains(t, out, "Bienvenue Awa Koné !")
	assert.Contains(t, out, "→ /dashboard")
	assert.Contains(t, out, "Tableau de bord")
	assert.Contains(t, out, "Paiement des frais de scolarité 2025")
	assert.Contains(t, out, "Je suis l'assistant de l'UVCI.", "markdown is rendered")
	assert.NotContains(t, out, "**UVCI**")
	assert.Contains(t, out, "1 conversation(s)")
	assert.Contains(t, out, "Conversation « Bonjour » supprimée.")
	assert.Contains(t, out, "Vous n'avez pas encore de conversations enregistrées.")
	assert.Contains(t, out, "Compte UVCI : Non connecté")
	assert.Contains(t, out, "Déconnecté.")
	assert.Contains(t, out, "→ /login")
	assert.Contains(t, out, "Vous devez être connecté.")

	_, ok := tokens.Get()
	assert.False(t, ok, "logout clears the stored token")
}

// lockedBuffer collects log output written from several goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestApp_LogoutShowsLoginOnce(t *testing.T) {
	baseURL := newBackend(t)
	registerAccount(t, baseURL, "awa@uvci.edu.ci", api.RoleStudent)
	color.NoColor = true

	tokens := tokenstore.NewMemoryStore()
	logs := &lockedBuffer{}
	var out bytes.Buffer
	a := newApp(appConfig{
		Client:   api.NewClient(baseURL, tokens),
		Tokens:   tokens,
		In:       strings.NewReader("/login awa@uvci.edu.ci\npassword123\nBonjour\n/logout\n/quit\n"),
		Out:      &out,
		Renderer: render.New(false),
		Logger:   slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, a.Run(context.Background()))

	transcript := out.String()
	_, afterLogout, found := strings.Cut(transcript, "Déconnecté.")
	require.True(t, found)
	assert.Equal(t, 1, strings.Count(afterLogout, "→ /login"), "logout and the session watcher both ask for /login")

	// The watcher redirected twice: the guest at startup and after logout.
	var watcherRedirects int
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "msg=redirecting") && strings.Contains(line, "require_admin=false") && strings.Contains(line, "to=/login") {
			watcherRedirects++
		}
	}
	assert.Equal(t, 2, watcherRedirects)

	assert.Empty(t, a.chat.ConversationID(), "the chat is reset once the session ends")
	assert.Empty(t, a.chat.Messages())
}

func TestApp_GuestIsRefused(t *testing.T) {
	baseURL := newBackend(t)

	out := runScript(t, baseURL, tokenstore.NewMemoryStore(),
		"Bonjour",
		"/dashboard",
		"/frobnicate",
	)

	assert.Contains(t, out, "Vous devez être connecté.")
	assert.Contains(t, out, "Commande inconnue /frobnicate")
	assert.NotContains(t, out, "Tableau de bord")
}

func TestApp_BadPasswordShowsServerDetail(t *testing.T) {
	baseURL := newBackend(t)
	registerAccount(t, baseURL, "awa@uvci.edu.ci", api.RoleStudent)

	out := runScript(t, baseURL, tokenstore.NewMemoryStore(),
		"/login awa@uvci.edu.ci",
		"wrong-password",
	)
	assert.Contains(t, out, "[erreur] Incorrect email or password")
}

func TestApp_RestoresSessionAndAdminLanding(t *testing.T) {
	baseURL := newBackend(t)
	registerAccount(t, baseURL, "admin@uvci.edu.ci", api.RoleAdmin)
	registerAccount(t, baseURL, "awa@uvci.edu.ci", api.RoleStudent)
	tokens := tokenstore.NewMemoryStore()

	out := runScript(t, baseURL, tokens, "/login admin@uvci.edu.ci", "password123")
	assert.Contains(t, out, "→ /admin")
	assert.Contains(t, out, "Aucun document indexé")

	out = runScript(t, baseURL, tokens, "/me", "/docs")
	assert.Contains(t, out, "Session restaurée : Awa Koné")
	assert.Contains(t, out, "Rôle : admin")
	assert.Contains(t, out, "Aucun document indexé")

	student := tokenstore.NewMemoryStore()
	out = runScript(t, baseURL, student, "/login awa@uvci.edu.ci", "password123", "/docs")
	assert.Contains(t, out, "Accès réservé aux administrateurs.")
}

func TestApp_RegisterLogsIn(t *testing.T) {
	baseURL := newBackend(t)

	out := runScript(t, baseURL, tokenstore.NewMemoryStore(),
		"/register kofi@uvci.edu.ci",
		"Kofi Yao",
		"password123",
		"/me",
	)
	assert.Contains(t, out, "Compte créé. Bienvenue Kofi Yao !")
	assert.Contains(t, out, "Kofi Yao <kofi@uvci.edu.ci>")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[##########..........]", progressBar(50, 20))
	assert.Equal(t, "[....]", progressBar(-5, 4))
	assert.Equal(t, "[####]", progressBar(250, 4))
}

func TestFormatStart(t *testing.T) {
	assert.Equal(t, "15/01/2025 08:30", formatStart("2025-01-15T08:30:00"))
	assert.Equal(t, "bientôt", formatStart("bientôt"))
}
