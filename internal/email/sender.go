// Package email renders and delivers the agency's transactional mail.
package email

import "context"

// Attachment is a file sent along with a mail.
type Attachment struct {
	Content  []byte
	FileName string
	MIMEType string
}

// LeadAlert describes a high-value lead for the team notification.
type LeadAlert struct {
	LeadID  string
	Name    string
	Company string
	Email   string
	Score   int
	Budget  string
	Source  string
	LeadURL string
}

// ProposalMail is the proposal delivered to a prospect.
type ProposalMail struct {
	RecipientName  string
	AgencyName     string
	ProposalNumber string
	Price          string
	Deposit        string
	CheckoutURL    string
}

// ReportMail announces a monthly client report.
type ReportMail struct {
	Company    string
	AgencyName string
	Period     string
	Summary    string
	ReportURL  string
}

type Sender interface {
	SendLeadFollowUp(ctx context.Context, toEmail, name, bookingURL string) error
	SendHighValueLeadAlert(ctx context.Context, toEmail string, alert LeadAlert) error
	SendProposal(ctx context.Context, toEmail string, mail ProposalMail) error
	SendMonthlyReport(ctx context.Context, toEmail string, mail ReportMail, attachments ...Attachment) error
}

// NoopSender drops every mail. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendLeadFollowUp(context.Context, string, string, string) error  { return nil }
func (NoopSender) SendHighValueLeadAlert(context.Context, string, LeadAlert) error { return nil }
func (NoopSender) SendProposal(context.Context, string, ProposalMail) error        { return nil }
func (NoopSender) SendMonthlyReport(context.Context, string, ReportMail, ...Attachment) error {
	return nil
}

var (
	_ Sender = NoopSender{}
	_ Sender = (*SMTPSender)(nil)
)
