package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"tickethub/internal/config"
	"tickethub/internal/logger"
	"tickethub/internal/models"
)

// Sender delivers purchase confirmations over SMTP. Disabled senders are
// valid and simply drop mail.
type Sender struct {
	Config config.EmailConfig
	Logger *logger.Logger
}

func NewSender(cfg config.EmailConfig, log *logger.Logger) *Sender {
	return &Sender{Config: cfg, Logger: log}
}

func (s *Sender) SendPurchaseConfirmation(to string, tickets []models.Ticket) error {
	if !s.Config.Enabled {
		return nil
	}
	if len(tickets) == 0 {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Thank you for your purchase!\r\n\r\n")
	fmt.Fprintf(&body, "You bought %d ticket(s):\r\n", len(tickets))
	for _, t := range tickets {
		fmt.Fprintf(&body, "  - Ticket %s\r\n", t.ID)
	}
	fmt.Fprintf(&body, "\r\nYour tickets and QR codes are available in your account.\r\n")

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your tickets\r\n\r\n%s",
		s.Config.FromAddress, to, body.String())

	addr := s.Config.SMTPHost + ":" + s.Config.SMTPPort
	auth := smtp.PlainAuth("", s.Config.SMTPUsername, s.Config.SMTPPassword, s.Config.SMTPHost)
	if err := smtp.SendMail(addr, auth, s.Config.FromAddress, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}

	s.Logger.Info("EMAIL", fmt.Sprintf("Sent purchase confirmation to %s", to))
	return nil
}
