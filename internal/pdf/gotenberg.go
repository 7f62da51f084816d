// Package pdf renders proposals and monthly reports to PDF through Gotenberg.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const convertHTMLPath = "/forms/chromium/convert/html"

// maxPDFBytes bounds what is read back from Gotenberg.
const maxPDFBytes = 32 << 20

// HTMLConverter turns an HTML page into a PDF.
type HTMLConverter interface {
	ConvertHTML(ctx context.Context, page Page) ([]byte, error)
}

// Page is one HTML document plus its print settings.
type Page struct {
	IndexHTML  []byte
	FooterHTML []byte
	// Margins in inches.
	MarginTop, MarginBottom, MarginSide string
}

// NewPage returns an A4 page with the default document margins.
func NewPage(index, footer []byte) Page {
	return Page{IndexHTML: index, FooterHTML: footer, MarginTop: "0.6", MarginBottom: "0.8", MarginSide: "0.6"}
}

// GotenbergClient converts HTML to PDF via a Gotenberg instance.
type GotenbergClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewGotenbergClient creates a client pointing at the given Gotenberg URL.
// Basic auth is sent when both username and password are set.
func NewGotenbergClient(baseURL, username, password string) *GotenbergClient {
	return &GotenbergClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GotenbergClient) ConvertHTML(ctx context.Context, page Page) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{
		{"paperWidth", "8.27"},
		{"paperHeight", "11.7"},
		{"marginTop", page.MarginTop},
		{"marginBottom", page.MarginBottom},
		{"marginLeft", page.MarginSide},
		{"marginRight", page.MarginSide},
		{"printBackground", "true"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := addHTMLPart(writer, "index.html", page.IndexHTML); err != nil {
		return nil, err
	}
	if len(page.FooterHTML) > 0 {
		if err := addHTMLPart(writer, "footer.html", page.FooterHTML); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+convertHTMLPath, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if g.username != "" && g.password != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg convert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gotenberg convert returned %d: %s", resp.StatusCode, string(errBody))
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, fmt.Errorf("read gotenberg response: %w", err)
	}
	return out, nil
}

func addHTMLPart(w *multipart.Writer, filename string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	h.Set("Content-Type", "text/html")

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", filename, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write part %s: %w", filename, err)
	}
	return nil
}

var _ HTMLConverter = (*GotenbergClient)(nil)
