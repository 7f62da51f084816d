package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"agency_portal_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers the rendered templates over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// NewSender returns an SMTP sender when a host is configured and a
// NoopSender otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}

func (s *SMTPSender) message(toEmail, subject, htmlContent string, attachments ...Attachment) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		if err := msg.AttachReader(att.FileName, bytes.NewReader(att.Content)); err != nil {
			return nil, fmt.Errorf("smtp attach %s: %w", att.FileName, err)
		}
	}
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg, err := s.message(toEmail, subject, htmlContent, attachments...)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendLeadFollowUp(ctx context.Context, toEmail, name, bookingURL string) error {
	content, err := renderEmailTemplate("follow_up.html", followUpEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectLeadFollowUp,
			Heading:  "Thanks for reaching out",
			CTALabel: "Book a discovery call",
			CTAURL:   bookingURL,
		},
		Name: name,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLeadFollowUp, content)
}

func (s *SMTPSender) SendHighValueLeadAlert(ctx context.Context, toEmail string, alert LeadAlert) error {
	subject := fmt.Sprintf(subjectHighValueLeadFmt, alert.Company, alert.Score)
	content, err := renderEmailTemplate("lead_alert.html", leadAlertEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  "New high-value lead",
			CTALabel: "Open lead",
			CTAURL:   alert.LeadURL,
		},
		LeadAlert: alert,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendProposal(ctx context.Context, toEmail string, mail ProposalMail) error {
	subject := fmt.Sprintf(subjectProposalFmt, mail.ProposalNumber, mail.AgencyName)
	content, err := renderEmailTemplate("proposal.html", proposalEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  "Your proposal is ready",
			CTALabel: "Review and pay deposit",
			CTAURL:   mail.CheckoutURL,
		},
		ProposalMail: mail,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendMonthlyReport(ctx context.Context, toEmail string, mail ReportMail, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectMonthlyReportFmt, mail.Period, mail.AgencyName)
	content, err := renderEmailTemplate("monthly_report.html", reportEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  "Monthly report",
			CTALabel: "Download report",
			CTAURL:   mail.ReportURL,
		},
		ReportMail:    mail,
		HasAttachment: len(attachments) > 0,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content, attachments...)
}
