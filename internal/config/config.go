package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/unter/pkg/core/model"
)

// Defaults applied when the config file leaves a value unset
const (
	DefaultAlertCooldown        = 4 * time.Hour
	DefaultReminderLead         = time.Hour
	DefaultRecurringHorizonDays = 14
	DefaultServerAddr           = ":8080"
	DefaultCheckAllSpec         = "*/15 * * * *"
	DefaultRemindersSpec        = "*/5 * * * *"
	DefaultRecurringSpec        = "0 3 * * *"
)

// DatabaseConfig selects the store backend
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=postgres memory"`
	URL    string `yaml:"url,omitempty" validate:"required_if=Driver postgres"`
}

// AlertsConfig controls alert pacing
type AlertsConfig struct {
	Cooldown     time.Duration `yaml:"cooldown"`
	ReminderLead time.Duration `yaml:"reminderLead"`
}

// TwilioConfig holds the Twilio SMS credentials
type TwilioConfig struct {
	AccountSID string `yaml:"accountSID"`
	AuthToken  string `yaml:"authToken"`
	FromNumber string `yaml:"fromNumber"`
}

// SMSConfig selects and configures the SMS channel
type SMSConfig struct {
	Provider string       `yaml:"provider" validate:"required,oneof=twilio log none"`
	Twilio   TwilioConfig `yaml:"twilio"`
}

// SendGridConfig holds the SendGrid API key
type SendGridConfig struct {
	APIKey string `yaml:"apiKey"`
}

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GmailConfig holds the service account used to send through the Gmail API
type GmailConfig struct {
	ServiceAccountFile string `yaml:"serviceAccountFile"`
	User               string `yaml:"user" validate:"omitempty,email"`
}

// EmailConfig selects and configures the email channel
type EmailConfig struct {
	Provider    string         `yaml:"provider" validate:"required,oneof=sendgrid smtp gmail log none"`
	FromAddress string         `yaml:"fromAddress" validate:"omitempty,email"`
	FromName    string         `yaml:"fromName,omitempty"`
	SendGrid    SendGridConfig `yaml:"sendgrid"`
	SMTP        SMTPConfig     `yaml:"smtp"`
	Gmail       GmailConfig    `yaml:"gmail"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ScheduleOff disables a scheduled job
const ScheduleOff = "off"

// ScheduleConfig holds the cron specs for periodic jobs; ScheduleOff disables a job
type ScheduleConfig struct {
	CheckAll       string `yaml:"checkAll"`
	Reminders      string `yaml:"reminders"`
	RecurringNeeds string `yaml:"recurringNeeds"`
}

// RecurringNeed describes a need event that repeats on an RRULE
type RecurringNeed struct {
	ID              string `yaml:"id" validate:"required"`
	RRule           string `yaml:"rrule" validate:"required"`
	EventType       string `yaml:"eventType" validate:"required"`
	TimeOfNeed      string `yaml:"timeOfNeed" validate:"required"`
	Duration        int    `yaml:"duration" validate:"min=1"`
	VolunteerCount  int    `yaml:"volunteerCount" validate:"min=1"`
	AffectedPersons int    `yaml:"affectedPersons,omitempty" validate:"omitempty,min=1"`
	Location        string `yaml:"location" validate:"required"`
	Notes           string `yaml:"notes,omitempty"`
}

// Config represents the application configuration
type Config struct {
	OrgName              string          `yaml:"orgName" validate:"required"`
	SiteURL              string          `yaml:"siteURL" validate:"required,url"`
	TimeZone             string          `yaml:"timeZone" validate:"required"`
	DefaultAreaCode      string          `yaml:"defaultAreaCode,omitempty" validate:"omitempty,len=3,numeric"`
	Database             DatabaseConfig  `yaml:"database"`
	Alerts               AlertsConfig    `yaml:"alerts"`
	SMS                  SMSConfig       `yaml:"sms"`
	Email                EmailConfig     `yaml:"email"`
	Server               ServerConfig    `yaml:"server"`
	Schedule             ScheduleConfig  `yaml:"schedule"`
	RecurringNeeds       []RecurringNeed `yaml:"recurringNeeds,omitempty" validate:"dive"`
	RecurringHorizonDays int             `yaml:"recurringHorizonDays" validate:"min=0"`

	location *time.Location
}

// Location returns the time zone need event dates are expressed in
func (c *Config) Location() *time.Location {
	if c.location == nil {
		loc, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			return time.UTC
		}
		c.location = loc
	}
	return c.location
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from unter_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return load("unter_config.yaml")
}

// LoadWithEnv loads and validates the configuration for an environment from unter_config.<env>.yaml
func LoadWithEnv(env string) (*Config, error) {
	return load(fmt.Sprintf("unter_config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	configPath, err := findConfigFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// Secrets are then overlaid from the environment, after loading an optional .env file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overlays secrets that should not live in the config file
func applyEnv(cfg *Config) {
	overlay := map[string]*string{
		"DATABASE_URL":       &cfg.Database.URL,
		"TWILIO_ACCOUNT_SID": &cfg.SMS.Twilio.AccountSID,
		"TWILIO_AUTH_TOKEN":  &cfg.SMS.Twilio.AuthToken,
		"TWILIO_FROM_NUMBER": &cfg.SMS.Twilio.FromNumber,
		"SENDGRID_API_KEY":   &cfg.Email.SendGrid.APIKey,
		"SMTP_USERNAME":      &cfg.Email.SMTP.Username,
		"SMTP_PASSWORD":      &cfg.Email.SMTP.Password,
	}
	for key, field := range overlay {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Alerts.Cooldown == 0 {
		cfg.Alerts.Cooldown = DefaultAlertCooldown
	}
	if cfg.Alerts.ReminderLead == 0 {
		cfg.Alerts.ReminderLead = DefaultReminderLead
	}
	if cfg.RecurringHorizonDays == 0 {
		cfg.RecurringHorizonDays = DefaultRecurringHorizonDays
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = 587
	}
	if cfg.Schedule.CheckAll == "" {
		cfg.Schedule.CheckAll = DefaultCheckAllSpec
	}
	if cfg.Schedule.Reminders == "" {
		cfg.Schedule.Reminders = DefaultRemindersSpec
	}
	if cfg.Schedule.RecurringNeeds == "" {
		cfg.Schedule.RecurringNeeds = DefaultRecurringSpec
	}
}

// Validate validates the configuration struct and checks the time zone, cron specs,
// rrule syntax and the credentials the selected providers need
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid timeZone %q: %w", cfg.TimeZone, err)
	}
	cfg.location = loc

	if cfg.Alerts.Cooldown < 0 || cfg.Alerts.ReminderLead < 0 {
		return fmt.Errorf("config validation failed: alert durations must not be negative")
	}

	if err := validateProviders(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	specs := map[string]string{
		"schedule.checkAll":       cfg.Schedule.CheckAll,
		"schedule.reminders":      cfg.Schedule.Reminders,
		"schedule.recurringNeeds": cfg.Schedule.RecurringNeeds,
	}
	for name, spec := range specs {
		if spec == "" || spec == ScheduleOff {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron spec in %s: %w", name, err)
		}
	}

	// Validate rrule syntax and time of day for each recurring need
	seen := make(map[string]bool)
	for i, need := range cfg.RecurringNeeds {
		if _, err := rrule.StrToRRule(need.RRule); err != nil {
			return fmt.Errorf("invalid rrule in recurringNeeds[%d]: %w", i, err)
		}
		start, err := model.ParseMinutes(need.TimeOfNeed)
		if err != nil {
			return fmt.Errorf("invalid timeOfNeed in recurringNeeds[%d]: %w", i, err)
		}
		if start+need.Duration > model.MinutesPerDay {
			return fmt.Errorf("recurringNeeds[%d] may not span midnight", i)
		}
		if seen[need.ID] {
			return fmt.Errorf("duplicate recurringNeeds id %q", need.ID)
		}
		seen[need.ID] = true
	}

	return nil
}

func validateProviders(cfg *Config) error {
	if cfg.SMS.Provider == "twilio" {
		t := cfg.SMS.Twilio
		if t.AccountSID == "" || t.AuthToken == "" || t.FromNumber == "" {
			return fmt.Errorf("sms provider twilio requires accountSID, authToken and fromNumber")
		}
	}

	switch cfg.Email.Provider {
	case "sendgrid":
		if cfg.Email.SendGrid.APIKey == "" || cfg.Email.FromAddress == "" {
			return fmt.Errorf("email provider sendgrid requires apiKey and fromAddress")
		}
	case "smtp":
		if cfg.Email.SMTP.Host == "" || cfg.Email.FromAddress == "" {
			return fmt.Errorf("email provider smtp requires host and fromAddress")
		}
	case "gmail":
		if cfg.Email.Gmail.ServiceAccountFile == "" || cfg.Email.Gmail.User == "" {
			return fmt.Errorf("email provider gmail requires serviceAccountFile and user")
		}
	}
	return nil
}

// findConfigFile searches for the named config file in current directory and home directory
func findConfigFile(configFileName string) (string, error) {
	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", configFileName)
}
