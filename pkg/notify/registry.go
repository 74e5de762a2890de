package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/unter/internal/config"
	"github.com/jakechorley/unter/pkg/clients/gmailclient"
	"github.com/jakechorley/unter/pkg/clients/sendgridclient"
	"github.com/jakechorley/unter/pkg/clients/smtpclient"
	"github.com/jakechorley/unter/pkg/clients/twilioclient"
)

type smsFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (SMSSender, error)

type emailFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (EmailSender, error)

var smsProviders = map[string]smsFactory{
	"twilio": func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (SMSSender, error) {
		t := cfg.SMS.Twilio
		return twilioclient.NewClient(t.AccountSID, t.AuthToken, t.FromNumber)
	},
	"log": func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (SMSSender, error) {
		return NewLogSender(logger), nil
	},
}

var emailProviders = map[string]emailFactory{
	"sendgrid": func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (EmailSender, error) {
		return sendgridclient.NewClient(cfg.Email.SendGrid.APIKey, cfg.Email.FromAddress, cfg.Email.FromName)
	},
	"smtp": func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (EmailSender, error) {
		s := cfg.Email.SMTP
		return smtpclient.NewClient(s.Host, s.Port, s.Username, s.Password, cfg.Email.FromAddress, cfg.Email.FromName)
	},
	"gmail": func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (EmailSender, error) {
		g := cfg.Email.Gmail
		return gmailclient.NewClient(ctx, g.ServiceAccountFile, g.User, cfg.Email.FromAddress, cfg.Email.FromName)
	},
	"log": func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (EmailSender, error) {
		return NewLogSender(logger), nil
	},
}

// NewSenders builds the configured SMS and email senders.
// A provider of "none" yields a nil sender, which disables the channel.
func NewSenders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (SMSSender, EmailSender, error) {
	var sms SMSSender
	if cfg.SMS.Provider != "none" {
		factory, ok := smsProviders[cfg.SMS.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
		}
		s, err := factory(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s sms sender: %w", cfg.SMS.Provider, err)
		}
		sms = s
	}

	var email EmailSender
	if cfg.Email.Provider != "none" {
		factory, ok := emailProviders[cfg.Email.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
		}
		e, err := factory(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s email sender: %w", cfg.Email.Provider, err)
		}
		email = e
	}

	return sms, email, nil
}

// NewDispatcherFromConfig wires a Dispatcher with the configured senders
func NewDispatcherFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dispatcher, error) {
	sms, email, err := NewSenders(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Notification channels configured",
		zap.String("sms", cfg.SMS.Provider),
		zap.String("email", cfg.Email.Provider))

	return NewDispatcher(sms, email, Options{
		SiteURL:         cfg.SiteURL,
		OrgName:         cfg.OrgName,
		DefaultAreaCode: cfg.DefaultAreaCode,
	}, logger), nil
}

// LogSender writes messages to the log instead of delivering them
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("SMS (log only)", zap.String("to", to), zap.String("body", body))
	return nil
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.Info("Email (log only)", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}
