package main

import (
	"context"
	"net/http"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/alerts"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/config"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/repository"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/service"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/httpclient"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/mysql"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
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
			NewRedisClient,
			NewAlertNotifier,
			NewSMSProvider,
			NewDispatchConfig,

			repository.NewMessageRepository,
			repository.NewPickupRepository,
			repository.NewScheduleRepository,
			repository.NewTransactionManager,

			service.NewDispatchService,
		),
		fx.Invoke(runDispatcher),
		fx.Invoke(serveMetrics),
	).Run()
}

func runDispatcher(cfg *config.Config, dispatcher service.DispatchService, logger *zap.Logger, lc fx.Lifecycle) {
	appCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(cfg.Dispatcher.Interval)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						result, err := dispatcher.Tick(appCtx)
						if err != nil {
							logger.Error("dispatch tick failed", zap.Error(err))
							continue
						}
						if result.Selected > 0 {
							logger.Info("dispatch tick complete",
								zap.Int("selected", result.Selected),
								zap.Int("sent", result.Sent),
								zap.Int("retried", result.Retried),
								zap.Int("failed", result.Failed),
								zap.Int("skipped", result.Skipped))
						}
					case <-appCtx.Done():
						logger.Info("dispatcher context cancelled")
						return
					}
				}
			}()

			go func() {
				ticker := time.NewTicker(cfg.Dispatcher.ConfirmInterval)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						if err := dispatcher.ConfirmationPass(appCtx); err != nil {
							logger.Error("confirmation pass failed", zap.Error(err))
						}
					case <-appCtx.Done():
						return
					}
				}
			}()

			logger.Info("dispatcher started",
				zap.Duration("interval", cfg.Dispatcher.Interval),
				zap.Duration("confirmInterval", cfg.Dispatcher.ConfirmInterval))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping dispatcher")
			cancel()
			return nil
		},
	})
}

func serveMetrics(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) {
	server := &http.Server{Addr: cfg.Metrics.Port, Handler: promhttp.Handler()}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server stopped", zap.Error(err))
				}
			}()
			logger.Info("metrics listening", zap.String("port", cfg.Metrics.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

func NewConnectionDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()
	return mysql.NewConnection(ctx, cfg.Database, logger)
}

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Alerts.RedisAddr,
		Password: cfg.Alerts.RedisPassword,
	})
}

func NewAlertNotifier(cfg *config.Config, client *redis.Client, logger *zap.Logger) service.HealthReporter {
	return alerts.NewNotifier(alerts.NewRedisStore(client), cfg.Alerts.Cooldown, logger)
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
