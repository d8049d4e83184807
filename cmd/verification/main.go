package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"evcarbon-marketplace/pkg/config"
	"evcarbon-marketplace/pkg/db"
	"evcarbon-marketplace/pkg/httpapi"
	"evcarbon-marketplace/pkg/logger"
	"evcarbon-marketplace/pkg/redis"
	"evcarbon-marketplace/pkg/server"
	"evcarbon-marketplace/pkg/task"
	"evcarbon-marketplace/services/audit"
	"evcarbon-marketplace/services/issuance"
	"evcarbon-marketplace/services/verification"
	"evcarbon-marketplace/services/wallet"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		fx.Provide(
			provideTracerProvider,
			provideSnowflakeNode,
		),
		fx.Invoke(
			db.RegisterConnectionPool,
			db.Otel,
			migrate,
		),
		httpapi.Module,
		wallet.Module,
		audit.Module,
		issuance.Module,
		verification.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&verification.VerificationRequest{},
		&issuance.CreditIssuance{},
	)
}
