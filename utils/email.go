package utils

import (
	"fmt"
	"html"

	"aeroclub-shop/models"

	"github.com/keighl/postmark"
	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers a single HTML email
type Mailer interface {
	SendEmail(toEmail, subject, htmlContent string) error
}

// PostmarkMailer sends through Postmark
type PostmarkMailer struct {
	client *postmark.Client
	sender string
}

func NewPostmarkMailer(apiToken, sender string) *PostmarkMailer {
	return &PostmarkMailer{client: postmark.NewClient(apiToken, ""), sender: sender}
}

func (m *PostmarkMailer) SendEmail(toEmail, subject, htmlContent string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.sender,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendGridMailer sends through SendGrid's v3 API
type SendGridMailer struct {
	client *sendgrid.Client
	sender string
}

func NewSendGridMailer(apiKey, sender string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), sender: sender}
}

func (m *SendGridMailer) SendEmail(toEmail, subject, htmlContent string) error {
	msg := mail.NewSingleEmail(mail.NewEmail("", m.sender), subject, mail.NewEmail("", toEmail), htmlContent, htmlContent)
	resp, err := m.client.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer only logs outgoing mail. Used when no provider is configured.
type LogMailer struct{}

func (LogMailer) SendEmail(toEmail, subject, _ string) error {
	log.Info().Str("to", toEmail).Str("subject", subject).Msg("email delivery disabled, message dropped")
	return nil
}

// EmailService renders order notifications and hands them to a Mailer
type EmailService struct {
	mailer Mailer
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(mailer Mailer) *EmailService {
	return &EmailService{mailer: mailer}
}

// SendPaymentReceipt tells the owner their payment was captured
func (es *EmailService) SendPaymentReceipt(user models.User, receipt models.Receipt) error {
	subject := "Payment Received"
	content := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>We received your payment for order %s.<br><br>Total Amount: <strong>%.2f</strong><br>Payment Method: <strong>%s</strong><br>Date: %s",
		html.EscapeString(user.Name),
		receipt.OrderID.Hex(),
		receipt.TotalAmount,
		html.EscapeString(receipt.PaymentMethod),
		receipt.PaymentDate.Format("2006-01-02 15:04"),
	)
	return es.mailer.SendEmail(user.Email, subject, content)
}

// SendStatusUpdate tells the owner their order's status changed
func (es *EmailService) SendStatusUpdate(user models.User, order models.Order) error {
	subject := "Order Status Updated"
	content := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Your order %s is now <strong>%s</strong> (payment: %s).",
		html.EscapeString(user.Name),
		order.ID.Hex(),
		order.OrderStatus,
		order.PaymentStatus,
	)
	if order.TrackingNumber != "" {
		content += fmt.Sprintf("<br>Tracking number: <strong>%s</strong>", html.EscapeString(order.TrackingNumber))
	}
	return es.mailer.SendEmail(user.Email, subject, content)
}
