package smtpclient

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Client sends plain-text email through an SMTP relay
type Client struct {
	dialer *gomail.Dialer
	from   string
}

// NewClient creates an SMTP client; from is rendered as "fromName <fromAddress>" when a name is given
func NewClient(host string, port int, username, password, fromAddress, fromName string) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}

	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}

	return &Client{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}, nil
}

// SendEmail sends a plain-text email
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.dialer.DialAndSend(c.newMessage(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (c *Client) newMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}
