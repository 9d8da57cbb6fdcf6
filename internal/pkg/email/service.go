// internal/pkg/email/service.go
package email

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
)

// Service delivers transactional email over SMTP. When email is disabled the
// service logs the message instead, so callers behave the same in every
// environment.
type Service struct {
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new email service
func NewService(cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		config: cfg,
		logger: log,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderNumber string, total int64) error {
	subject := fmt.Sprintf("Order %s confirmed", orderNumber)
	body := fmt.Sprintf(
		"Thank you for your order!\r\n\r\nOrder number: %s\r\nTotal: ₹%.2f\r\n\r\nWe will let you know when it ships.\r\n",
		orderNumber, float64(total)/100)
	return s.send(to, subject, body)
}

// SendRestockAlert tells a subscriber a product is back in stock
func (s *Service) SendRestockAlert(to, productName string) error {
	subject := fmt.Sprintf("%s is back in stock", productName)
	body := fmt.Sprintf(
		"Good news!\r\n\r\n%s is available again. Stock is limited, so order soon.\r\n",
		productName)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	if !s.config.Email.Enabled {
		s.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("email disabled, skipping delivery")
		return nil
	}
	if s.config.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP configuration incomplete: missing host")
	}

	from := s.config.Email.FromEmail
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.Email.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	var auth smtp.Auth
	if s.config.Email.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.config.Email.SMTPUser, s.config.Email.SMTPPass, s.config.Email.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
