package pdf

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"

	"github.com/skip2/go-qrcode"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ErrDisabled is returned when no PDF service is configured.
var ErrDisabled = errors.New("pdf rendering is disabled")

type Section struct {
	Title string
	Body  string
}

// ProposalDoc is everything printed on a proposal.
type ProposalDoc struct {
	AgencyName    string
	Number        string
	Date          string
	RecipientName string
	Company       string
	PackageName   string
	Timeline      string
	Price         string
	Deposit       string
	Urgent        bool
	Sections      []Section
	KeyFeatures   []string
	Deliverables  []string
	// PortalURL is encoded as a QR code when set.
	PortalURL string
}

type Metric struct {
	Label string
	Value string
}

type ProjectLine struct {
	Package  string
	Stage    string
	Progress int
}

// ReportDoc is everything printed on a monthly client report.
type ReportDoc struct {
	AgencyName      string
	ClientName      string
	Period          string
	Summary         string
	Metrics         []Metric
	Projects        []ProjectLine
	Highlights      []string
	Recommendations []string
}

// Renderer fills the HTML templates and converts them.
type Renderer struct {
	conv HTMLConverter
}

// NewRenderer returns a renderer; a nil converter makes every call return
// ErrDisabled.
func NewRenderer(conv HTMLConverter) *Renderer {
	return &Renderer{conv: conv}
}

func (r *Renderer) RenderProposal(ctx context.Context, doc ProposalDoc) ([]byte, error) {
	var qr template.URL
	if doc.PortalURL != "" {
		png, err := qrcode.Encode(doc.PortalURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode portal qr: %w", err)
		}
		qr = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}

	data := struct {
		ProposalDoc
		QRCode template.URL
	}{doc, qr}
	return r.render(ctx, "proposal.html", data, doc.AgencyName+" "+doc.Number)
}

func (r *Renderer) RenderReport(ctx context.Context, doc ReportDoc) ([]byte, error) {
	return r.render(ctx, "report.html", doc, doc.ClientName+" "+doc.Period)
}

func (r *Renderer) render(ctx context.Context, name string, data any, footer string) ([]byte, error) {
	if r == nil || r.conv == nil {
		return nil, ErrDisabled
	}

	var index, foot bytes.Buffer
	if err := templates.ExecuteTemplate(&index, name, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	if err := templates.ExecuteTemplate(&foot, "footer.html", footer); err != nil {
		return nil, fmt.Errorf("execute footer: %w", err)
	}
	return r.conv.ConvertHTML(ctx, NewPage(index.Bytes(), foot.Bytes()))
}
