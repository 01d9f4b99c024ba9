// ABOUTME: Admin document console and account settings endpoints
// ABOUTME: Uploads are sniffed with mimetype so only PDFs leave the machine

package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const pdfMIME = "application/pdf"

// Documents lists the indexed knowledge-base documents. Admin only.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, opDocuments, http.MethodGet, "/api/admin/documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocument removes a document from the index. Admin only.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	path := "/api/admin/documents/" + url.PathEscape(id)
	return c.do(ctx, opDocuments, http.MethodDelete, path, nil, nil)
}

// UploadDocument sends a PDF file to be indexed. Admin only.
func (c *Client) UploadDocument(ctx context.Context, path string) (*UploadResult, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !mt.Is(pdfMIME) {
		return nil, &Error{Kind: ErrValidation, Detail: fmt.Sprintf("only PDF files are accepted (got %s)", mt.String())}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	// Stream the multipart body instead of buffering the whole file
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	var result UploadResult
	if err := c.send(req, opUpload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UVCIStatus reports whether a Moodle account is linked.
func (c *Client) UVCIStatus(ctx context.Context) (*UVCIStatus, error) {
	var st UVCIStatus
	if err := c.do(ctx, opSettings, http.MethodGet, "/api/settings/uvci", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ConnectUVCI links a Moodle account after the server has verified it.
func (c *Client) ConnectUVCI(ctx context.Context, creds UVCICredentials) (*UVCIStatus, error) {
	if err := validateForm(creds); err != nil {
		return nil, err
	}
	var st UVCIStatus
	if err := c.do(ctx, opSettings, http.MethodPost, "/api/settings/uvci", creds, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// DisconnectUVCI unlinks the Moodle account.
func (c *Client) DisconnectUVCI(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, opSettings, http.MethodDelete, "/api/settings/uvci", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Stats returns the dashboard progress figures.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := c.do(ctx, opDashboard, http.MethodGet, "/api/dashboard/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Announcements returns the latest university announcements.
func (c *Client) Announcements(ctx context.Context) ([]Announcement, error) {
	var items []Announcement
	if err := c.do(ctx, opDashboard, http.MethodGet, "/api/dashboard/announcements", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Calendar returns upcoming deadlines and events.
func (c *Client) Calendar(ctx context.Context) ([]CalendarEvent, error) {
	var items []CalendarEvent
	if err := c.do(ctx, opDashboard, http.MethodGet, "/api/dashboard/calendar", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
