// ABOUTME: Tests for the admin CLI commands against the mock API
// ABOUTME: Covers login gating, document listing, upload and deletion

package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
	"github.com/uvci/campus-assistant/internal/conversation"
	"github.com/uvci/campus-assistant/internal/mockapi"
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
		Tokens:    auth.NewJWTVerifier([]byte("admin-cli-secret")),
		Responder: &conversation.CannedResponder{},
	})
	require.NoError(t, err)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	c := api.NewClient(httpSrv.URL, nil)
	require.NoError(t, c.Register(context.Background(), api.RegisterRequest{
		Email: "admin@uvci.edu.ci", Password: "password123", FullName: "Service Scolarité", Role: api.RoleAdmin,
	}))
	require.NoError(t, c.Register(context.Background(), api.RegisterRequest{
		Email: "awa@uvci.edu.ci", Password: "password123", Role: api.RoleStudent,
	}))
	return httpSrv.URL
}

func newTestCLI(baseURL string, tokens tokenstore.Store, input string) (*adminCLI, *bytes.Buffer) {
	color.NoColor = true
	var out bytes.Buffer
	return &adminCLI{
		client: api.NewClient(baseURL, tokens),
		tokens: tokens,
		in:     bufio.NewReader(strings.NewReader(input)),
		out:    &out,
		logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}, &out
}

func writePDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	content := "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAdminCLI_DocsLifecycle(t *testing.T) {
	baseURL := newBackend(t)
	tokens := tokenstore.NewMemoryStore()
	ctx := context.Background()

	cli, out := newTestCLI(baseURL, tokens, "password123\n")
	require.NoError(t, cli.run(ctx, []string{"login", "admin@uvci.edu.ci"}))
	assert.Contains(t, out.String(), "✓ Signed in as Service Scolarité")

	cli, out = newTestCLI(baseURL, tokens, "")
	require.NoError(t, cli.run(ctx, []string{"docs"}))
	assert.Contains(t, out.String(), "(no documents)")

	cli, out = newTestCLI(baseURL, tokens, "")
	require.NoError(t, cli.run(ctx, []string{"docs", "upload", writePDF(t, "reglement.pdf")}))
	assert.Contains(t, out.String(), "✓ reglement.pdf")

	client := api.NewClient(baseURL, tokens)
	docs, err := client.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	cli, out = newTestCLI(baseURL, tokens, "")
	require.NoError(t, cli.run(ctx, []string{"docs", "list"}))
	assert.Contains(t, out.String(), docs[0].ID)
	assert.Contains(t, out.String(), "reglement.pdf")

	cli, out = newTestCLI(baseURL, tokens, "")
	require.NoError(t, cli.run(ctx, []string{"docs", "delete", docs[0].ID}))
	assert.Contains(t, out.String(), "✓ Deleted document: "+docs[0].ID)

	cli, _ = newTestCLI(baseURL, tokens, "")
	err = cli.run(ctx, []string{"docs", "delete", docs[0].ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestAdminCLI_UploadReportsRejectedFiles(t *testing.T) {
	baseURL := newBackend(t)
	tokens := tokenstore.NewMemoryStore()
	ctx := context.Background()

	cli, _ := newTestCLI(baseURL, tokens, "password123\n")
	require.NoError(t, cli.run(ctx, []string{"login", "admin@uvci.edu.ci"}))

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("plain text"), 0o600))

	cli, out := newTestCLI(baseURL, tokens, "")
	err := cli.run(ctx, []string{"docs", "upload", writePDF(t, "guide.pdf"), notes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 uploads failed")
	assert.Contains(t, out.String(), "✓ guide.pdf")
	assert.Contains(t, out.String(), "✗ "+notes)
}

func TestAdminCLI_StudentIsRefused(t *testing.T) {
	baseURL := newBackend(t)
	tokens := tokenstore.NewMemoryStore()

	cli, _ := newTestCLI(baseURL, tokens, "awa@uvci.edu.ci\npassword123\n")
	err := cli.run(context.Background(), []string{"login"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an administrator")

	_, ok := tokens.Get()
	assert.False(t, ok, "a refused login must not leave a token behind")
}

func TestAdminCLI_RequiresLogin(t *testing.T) {
	baseURL := newBackend(t)
	tokens := tokenstore.NewMemoryStore()

	cli, _ := newTestCLI(baseURL, tokens, "")
	err := cli.run(context.Background(), []string{"docs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")

	cli, _ = newTestCLI(baseURL, tokens, "")
	err = cli.run(context.Background(), []string{"me"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestAdminCLI_MeAndLogout(t *testing.T) {
	baseURL := newBackend(t)
	tokens := tokenstore.NewMemoryStore()
	ctx := context.Background()

	cli, _ := newTestCLI(baseURL, tokens, "password123\n")
	require.NoError(t, cli.run(ctx, []string{"login", "admin@uvci.edu.ci"}))

	cli, out := newTestCLI(baseURL, tokens, "")
	require.NoError(t, cli.run(ctx, []string{"me"}))
	assert.Contains(t, out.String(), "admin@uvci.edu.ci")
	assert.Contains(t, out.String(), "Role:        admin")

	cli, out = newTestCLI(baseURL, tokens, "")
	require.NoError(t, cli.run(ctx, []string{"logout"}))
	assert.Contains(t, out.String(), "✓ Signed out")
	_, ok := tokens.Get()
	assert.False(t, ok)
}

func TestAdminCLI_UnknownCommand(t *testing.T) {
	cli, _ := newTestCLI("http://127.0.0.1:1", tokenstore.NewMemoryStore(), "")
	err := cli.run(context.Background(), []string{"frobnicate"})
	assert.ErrorIs(t, err, errUsage)

	err = cli.run(context.Background(), []string{"docs", "upload"})
	assert.ErrorIs(t, err, errUsage)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.pdf", truncate("short.pdf", 40))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "éèàçù...", truncate("éèàçùéèàçùéèàçù", 8))
}
