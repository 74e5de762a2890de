package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/unter/internal/config"
	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Store    db.Store
	Notifier services.Notifier
	Clock    services.Clock
	Logger   *zap.Logger
	Ctx      context.Context
}

// AlertSettings returns the alert pacing from config
func (app *AppContext) AlertSettings() services.AlertSettings {
	return services.AlertSettings{
		Cooldown: app.Cfg.Alerts.Cooldown,
		Location: app.Cfg.Location(),
	}
}

// Postgres returns the Postgres store, or nil when another driver is configured
func (app *AppContext) Postgres() *postgres.DB {
	pg, _ := app.Store.(*postgres.DB)
	return pg
}
