package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/application/stock"
	"github.com/erp/ledger/internal/infrastructure/audit"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/numbering"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// app holds the wired services of one CLI invocation
type app struct {
	db        *persistence.Database
	documents *posting.DocumentService
	posting   *posting.Service
	engine    *stock.Engine
	bus       *event.InMemoryEventBus
	numbers   numbering.Sequence
	tracer    *telemetry.TracerProvider
	meter     *telemetry.MeterProvider
	logs      *telemetry.LoggerProvider
	log       *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tp

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.meter = mp

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init log export: %w", err)
	}
	a.logs = lp
	log = lp.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	a.log = log

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.db = db
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	dbSystem := "postgresql"
	if db.Driver() == "sqlite" {
		dbSystem = "sqlite"
	}
	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := plugin.Register(db.DB); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	numbers, err := numbering.New(cfg.Posting, cfg.Redis, db.DB, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.numbers = numbers

	operations := persistence.NewGormOperationRepository(db.DB)
	documents := persistence.NewGormDocumentRepository(db.DB)
	companies := persistence.NewGormCompanyRepository(db.DB)
	firms := persistence.NewGormFirmRepository(db.DB)
	products := persistence.NewGormProductRepository(db.DB)
	prices := persistence.NewGormPriceRepository(db.DB)

	a.engine = stock.NewEngine(operations, stock.WithLogger(log))
	auditLog := audit.NewLogger(log)

	a.bus = event.NewInMemoryEventBus(log)
	a.bus.Subscribe(posting.NewDocumentEventHandler(log))

	metrics, err := telemetry.NewPostingMetrics(mp.Meter(telemetry.TracerName))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init posting metrics: %w", err)
	}

	a.posting = posting.NewService(
		persistence.NewGormTransactionScope(db.DB),
		documents,
		firms,
		products,
		persistence.NewProductUnitConverter(products),
		persistence.NewCompanyVATRateProvider(companies, cfg.Posting.DefaultVATRate),
		a.engine,
	)
	a.posting.SetAuditSink(auditLog)
	a.posting.SetEventPublisher(a.bus)
	a.posting.SetMetrics(metrics)
	a.posting.SetLogger(log)

	a.documents = posting.NewDocumentService(documents, products, numbers, persistence.NewPriceListLookup(prices))
	a.documents.SetAuditSink(auditLog)
	a.documents.SetLogger(log)

	return a, nil
}

// Close flushes telemetry and releases connections. Safe on a partially
// built app.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Stop(ctx))
	}
	if c, ok := a.numbers.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Shutdown(ctx))
	}
	if a.meter != nil {
		errs = append(errs, a.meter.Shutdown(ctx))
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Shutdown finished with errors", zap.Error(err))
	}
}
