package email

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

type Attachment struct {
	Name string
	Data []byte
}

type Service interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendCustom(ctx context.Context, to, subject, content string, attachments ...Attachment) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	cfg    Config
	dialer sender
}

func NewSMTPService(cfg Config) *SMTPService {
	return &SMTPService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPService) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(
		"Bonjour %s,\n\nVotre compte FamaLink est créé. Connectez-vous sur %s pour gérer vos patients et vos rendez-vous.\n\nL'équipe FamaLink",
		name, s.cfg.AppURL)
	return s.SendCustom(ctx, to, "Bienvenue sur FamaLink", body)
}

func (s *SMTPService) SendCustom(ctx context.Context, to, subject, content string, attachments ...Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	for _, a := range attachments {
		data := a.Data
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// LogService only logs outgoing mail; used when SMTP is disabled.
type LogService struct{}

func (LogService) SendWelcome(_ context.Context, to, name string) error {
	log.Info().Str("to", to).Str("name", name).Msg("Email disabled, welcome mail not sent")
	return nil
}

func (LogService) SendCustom(_ context.Context, to, subject, _ string, _ ...Attachment) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("Email disabled, mail not sent")
	return nil
}
