package twilioclient

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST API the client uses
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client sends SMS through the Twilio REST API
type Client struct {
	api        messageCreator
	fromNumber string
}

// NewClient creates a Twilio client for the given account
func NewClient(accountSID, authToken, fromNumber string) (*Client, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, fmt.Errorf("twilio credentials not fully configured")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})

	return &Client{
		api:        rest.Api,
		fromNumber: fromNumber,
	}, nil
}

// SendSMS sends body to the E.164 number to
func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp != nil && resp.ErrorCode != nil {
		return fmt.Errorf("twilio rejected message with error code %d", *resp.ErrorCode)
	}
	return nil
}
