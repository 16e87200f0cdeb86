package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return c.err
}

func TestSMTPService_SendWelcome(t *testing.T) {
	capture := &captureSender{}
	svc := NewSMTPService(Config{From: "no-reply@famalink.ci", AppURL: "https://app.famalink.ci"})
	svc.dialer = capture

	require.NoError(t, svc.SendWelcome(context.Background(), "dr@example.ci", "Dr. Fatou Diallo"))
	require.Len(t, capture.sent, 1)
	m := capture.sent[0]
	assert.Equal(t, []string{"dr@example.ci"}, m.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@famalink.ci"}, m.GetHeader("From"))
	assert.Equal(t, []string{"Bienvenue sur FamaLink"}, m.GetHeader("Subject"))
}

func TestSMTPService_PropagatesDialError(t *testing.T) {
	svc := NewSMTPService(Config{From: "no-reply@famalink.ci"})
	svc.dialer = &captureSender{err: errors.New("connection refused")}

	err := svc.SendCustom(context.Background(), "dr@example.ci", "s", "b", Attachment{Name: "a.pdf", Data: []byte("%PDF-")})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMTPService_CancelledContext(t *testing.T) {
	capture := &captureSender{}
	svc := NewSMTPService(Config{})
	svc.dialer = capture

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.SendCustom(ctx, "x@example.ci", "s", "b"), context.Canceled)
	assert.Empty(t, capture.sent)
}
