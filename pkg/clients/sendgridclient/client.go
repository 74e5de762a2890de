package sendgridclient

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailSender is the part of the SendGrid client the email client uses
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Client sends plain-text email through SendGrid
type Client struct {
	sender mailSender
	from   *mail.Email
}

// NewClient creates a SendGrid client sending from fromName <fromAddress>
func NewClient(apiKey, fromAddress, fromName string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key not configured")
	}

	return &Client{
		sender: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}, nil
}

// SendEmail sends a plain-text email
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(c.from, subject, mail.NewEmail("", to), body, "")

	response, err := c.sender.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
