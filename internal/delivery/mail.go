package delivery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/jo-hoe/gomashup/internal/common"
	"github.com/jo-hoe/gomashup/internal/config"
)

// Message is a single plain-text mail with one file attached.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentPath string
	AttachmentName string
}

// Sender transmits a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail over SMTP with mandatory STARTTLS and PLAIN auth.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.AttachmentPath != "" {
		m.AttachFile(msg.AttachmentPath,
			mail.WithFileName(msg.AttachmentName),
			mail.WithFileContentType(mail.ContentType(common.ContentTypeZip)),
		)
	}

	c, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(s.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// MailDeliverer zips the artifact and mails it to the job's address.
type MailDeliverer struct {
	Sender     Sender
	Subject    *template.Template
	Body       *template.Template
	ArchiveExt string
}

// NewMailDeliverer parses the subject and body templates from cfg.
func NewMailDeliverer(sender Sender, cfg config.MailConfig, archiveExt string) (*MailDeliverer, error) {
	subject, err := template.New("subject").Parse(cfg.SubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	body, err := template.New("body").Parse(cfg.BodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	if archiveExt == "" {
		archiveExt = common.ArchiveExtension
	}
	return &MailDeliverer{Sender: sender, Subject: subject, Body: body, ArchiveExt: archiveExt}, nil
}

type mailData struct {
	JobID          string
	Query          string
	Sources        int
	SegmentSeconds int
	Duration       time.Duration
}

func (d *MailDeliverer) Deliver(ctx context.Context, a Artifact) (Receipt, error) {
	if strings.TrimSpace(a.Email) == "" {
		return Receipt{}, fmt.Errorf("no recipient for job %s", a.JobID)
	}
	name := strings.TrimSuffix(a.Name, filepath.Ext(a.Name)) + d.ArchiveExt
	zipPath := filepath.Join(filepath.Dir(a.Path), name)
	if err := ArchiveAs(a.Path, a.Name, zipPath); err != nil {
		return Receipt{}, err
	}
	fi, err := os.Stat(zipPath)
	if err != nil {
		return Receipt{}, fmt.Errorf("stat archive: %w", err)
	}

	data := mailData{
		JobID:          a.JobID,
		Query:          a.Query,
		Sources:        a.Sources,
		SegmentSeconds: a.SegmentSeconds,
		Duration:       a.Duration,
	}
	subject, err := render(d.Subject, data)
	if err != nil {
		return Receipt{}, err
	}
	body, err := render(d.Body, data)
	if err != nil {
		return Receipt{}, err
	}

	msg := Message{
		To:             a.Email,
		Subject:        strings.TrimSpace(subject),
		Body:           body,
		AttachmentPath: zipPath,
		AttachmentName: name,
	}
	if err := d.Sender.Send(ctx, msg); err != nil {
		return Receipt{}, err
	}
	return Receipt{Location: "mailto:" + a.Email, Size: uint64(fi.Size())}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
