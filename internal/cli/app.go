package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emiliopalmerini/promptreg/internal/adapters/otel"
	"github.com/emiliopalmerini/promptreg/internal/adapters/render"
	"github.com/emiliopalmerini/promptreg/internal/adapters/turso"
	"github.com/emiliopalmerini/promptreg/internal/database"
	"github.com/emiliopalmerini/promptreg/internal/infrastructure/config"
	"github.com/emiliopalmerini/promptreg/internal/ports"
	"github.com/emiliopalmerini/promptreg/internal/registry"
)

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	DB      *sql.DB
	Config  *config.Registry
	Metrics ports.MetricsExporter
	Service *registry.Service
}

// NewAppContext creates an AppContext with all dependencies initialized.
func NewAppContext(ctx context.Context) (*AppContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.NewTurso(cfg.Database.URL, cfg.Database.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var metrics ports.MetricsExporter
	if cfg.Telemetry.Enabled {
		exporter, err := otel.NewExporter(ctx, cfg.Telemetry)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		metrics = exporter
	} else {
		metrics = otel.NewNoOpExporter()
	}

	service := registry.New(
		turso.NewPromptRepository(db),
		turso.NewExperimentRepository(db),
		turso.NewOutcomeRepository(db),
		render.NewTemplateRenderer(),
		registry.WithMetricsExporter(metrics),
	)

	return &AppContext{
		DB:      db,
		Config:  cfg,
		Metrics: metrics,
		Service: service,
	}, nil
}

// Close releases all resources held by the AppContext.
func (a *AppContext) Close(ctx context.Context) error {
	if a.Metrics != nil {
		_ = a.Metrics.Close(ctx)
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
