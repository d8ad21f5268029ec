package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
)

// Sender delivers transactional mail. The magic-link service depends on this
// surface so tests can capture outgoing messages.
type Sender interface {
	SendSignInLink(to, link string) error
}

// SMTPSender delivers mail over plain SMTP via gomail.
type SMTPSender struct {
	cfg    config.MailConfig
	dialer *gomail.Dialer
}

// NewSMTPSender builds a sender from the mail configuration.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
	}, nil
}

// SendSignInLink mails the passwordless sign-in link.
func (s *SMTPSender) SendSignInLink(to, link string) error {
	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<h2>Sign in to Velvetfeed</h2>
			<p>Click the link below to open your feed:</p>
			<p><a href="%s">Sign in</a></p>
			<p>Or copy and paste this URL into your browser:</p>
			<p>%s</p>
			<p>The link expires shortly and can be used once.</p>
			<p>If you didn't request this, you can ignore this email.</p>
		</body>
		</html>
	`, link, link)

	plainBody := fmt.Sprintf(`Sign in to Velvetfeed

Open your feed by visiting:
%s

The link expires shortly and can be used once.

If you didn't request this, you can ignore this email.
`, link)

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your Velvetfeed sign-in link")
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending sign-in link: %w", err)
	}
	return nil
}
