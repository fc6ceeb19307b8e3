package main

import (
	"context"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/api"
	v1 "github.com/Vasteras-Stadsmission/matkassen-sub010/internal/api/v1"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/config"
	middleware "github.com/Vasteras-Stadsmission/matkassen-sub010/internal/error"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/service"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/httpclient"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/mysql"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			zap.NewProduction,
			NewConnectionDB,
			NewFiberApp,
			NewSMSProvider,
			NewDispatchConfig,
			NewAdminConfig,
			NewHealthReporter,

			repository.NewMessageRepository,
			repository.NewPickupRepository,
			repository.NewScheduleRepository,
			repository.NewTransactionManager,

			service.NewTemplateRenderer,
			service.NewMessageService,
			service.NewCancelService,
			service.NewPickupEventService,
			service.NewAdminService,
			service.NewDispatchService,

			v1.NewHandler,
		),
		fx.Invoke(startServer),
	).Run()
}

func startServer(app *fiber.App, handler *v1.Handler, cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) {
	api.SetupRoutes(app, handler)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Listen(cfg.API.Port); err != nil {
					logger.Error("server stopped", zap.Error(err))
				}
			}()
			logger.Info("api listening", zap.String("port", cfg.API.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

func NewFiberApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewSMSProvider(cfg *config.Config) smsprovider.Provider {
	client := httpclient.NewHTTPClient(cfg.Provider.Timeout)
	return smsprovider.NewSMSProvider(cfg.Provider, client)
}

func NewDispatchConfig(cfg *config.Config) service.DispatchConfig {
	return service.DispatchConfig{
		BatchSize:        cfg.Dispatcher.BatchSize,
		SendTimeout:      cfg.Dispatcher.SendTimeout,
		ClaimStaleAfter:  cfg.Dispatcher.ClaimStaleAfter,
		ConfirmAfter:     cfg.Dispatcher.ConfirmAfter,
		StaleUnconfirmed: cfg.Dispatcher.StaleUnconfirmed,
		ConfirmBatchSize: cfg.Dispatcher.ConfirmBatchSize,
	}
}

func NewAdminConfig(cfg *config.Config) service.AdminConfig {
	return service.AdminConfig{
		RetryCooldown: cfg.Admin.RetryCooldown,
		MinLeadTime:   cfg.Admin.MinLeadTime,
	}
}

// The API process only runs manual dispatch ticks; provider health alerting
// belongs to the dispatcher process.
func NewHealthReporter() service.HealthReporter {
	return nopHealth{}
}

type nopHealth struct{}

func (nopHealth) ReportFailure(ctx context.Context, service, detail string) {}
func (nopHealth) ReportRecovery(ctx context.Context, service string)       {}
