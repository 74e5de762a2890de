package gmailclient

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client wraps the Gmail API client
type Client struct {
	service      *gmail.Service
	from         string
	lastSendTime time.Time
	sendMutex    sync.Mutex
	interval     time.Duration
	send         func(ctx context.Context, msg *gmail.Message) error
}

// NewClient creates a Gmail client that sends as user via a service account with
// domain-wide delegation, so the scheduler can send without an interactive login
func NewClient(ctx context.Context, serviceAccountFile, user, fromAddress, fromName string) (*Client, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account file: %w", err)
	}
	jwtCfg.Subject = user

	service, err := gmail.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	c := &Client{
		service:  service,
		from:     formatFrom(fromAddress, fromName, user),
		interval: EMAIL_INTERVAL,
	}
	c.send = func(ctx context.Context, msg *gmail.Message) error {
		_, err := c.service.Users.Messages.Send("me", msg).Context(ctx).Do()
		return err
	}
	return c, nil
}

func formatFrom(address, name, fallback string) string {
	if address == "" {
		address = fallback
	}
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
