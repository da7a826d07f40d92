package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gootel "go.opentelemetry.io/otel"

	"github.com/neomorfeo/controlplane/internal/adapter/fsm"
	"github.com/neomorfeo/controlplane/internal/adapter/kafka"
	"github.com/neomorfeo/controlplane/internal/adapter/otel"
	"github.com/neomorfeo/controlplane/internal/adapter/river"
	"github.com/neomorfeo/controlplane/internal/adapter/sqlite"
	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/config"
	"github.com/neomorfeo/controlplane/internal/domain"
	"github.com/neomorfeo/controlplane/internal/reaction"

	handler "github.com/neomorfeo/controlplane/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "controlplane: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	providers, err := otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	entities := otel.NewTracingEntityRepository(store.Entities())
	audit := app.NewAuditTrail(otel.NewTracingAuditStore(store.Audit()), logger)

	bus := app.NewBus(logger)
	publisher := otel.NewTracingPublisher(bus)

	relay, stopRelay, err := startRelay(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("event relay: %w", err)
	}

	// --- Application ---
	machine := app.NewStateMachine(entities, store, fsm.New(), audit, publisher,
		app.WithUngovernedKinds(cfg.AllowUngovernedKinds))

	policy, err := otel.NewMeteredPolicy(app.NewPolicyEnforcer(audit), gootel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("policy metrics: %w", err)
	}

	// Reactions run in registration order, the relay last so it sees every
	// event the reactions publish.
	reaction.NewCustomerLifecycle(store.Customers(), store, audit).Register(bus)
	reaction.NewDeliveryProvisioning(entities, store, audit, publisher).Register(bus)
	bus.SubscribeAll(relay)

	svc := handler.Services{
		Tenants:       app.NewTenantService(store.Tenants(), store.Access(), store, audit),
		Access:        app.NewAccessService(store.Access(), store, audit),
		Entities:      entities,
		Machine:       machine,
		Commerce:      app.NewCommerceService(entities, machine, publisher),
		Gate:          app.NewGate(policy, audit),
		Entitlements:  app.NewEntitlementResolver(store.Access(), logger),
		Audit:         audit,
		WebhookSecret: cfg.WebhookSecret,
	}

	// --- Adapters (in) ---
	router := handler.NewRouter(svc, handler.RouterConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     cfg.Telemetry.ServiceVersion,
		JWTSecret:   []byte(cfg.JWTSecret),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("controlplane listening", "addr", srv.Addr, "docs", "/docs", "relay", cfg.EventRelay)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := stopRelay(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("relay shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}

// startRelay builds the bus subscriber that forwards every event downstream
// and returns the function that drains it on shutdown.
func startRelay(ctx context.Context, cfg config.Config, db *sql.DB) (domain.Handler, func(context.Context) error, error) {
	var broker *kafka.Relay
	if len(cfg.KafkaBrokers) > 0 {
		broker = kafka.NewRelay(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	closeBroker := func() error {
		if broker == nil {
			return nil
		}
		return broker.Close()
	}

	switch cfg.EventRelay {
	case config.RelayKafka:
		return broker.Handle, func(context.Context) error { return closeBroker() }, nil

	case config.RelayLog:
		notifier := river.LogNotifier{}
		handle := func(ctx context.Context, ev domain.Event) error {
			return notifier.Notify(ctx, domain.Summarize(ev))
		}
		return handle, func(context.Context) error { return closeBroker() }, nil
	}

	var notifier river.Notifier = river.LogNotifier{}
	if broker != nil {
		notifier = broker
	}
	client, err := river.Setup(ctx, db, notifier)
	if err != nil {
		return nil, nil, err
	}
	// The client outlives the signal context; Stop drains it gracefully.
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, nil, fmt.Errorf("starting river: %w", err)
	}
	stopClient := func(ctx context.Context) error {
		return errors.Join(client.Stop(ctx), closeBroker())
	}
	return river.NewRelay(client).Handle, stopClient, nil
}
