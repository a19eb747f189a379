package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant_pos/internal/config"
	"restaurant_pos/internal/database"
	"restaurant_pos/internal/events"
	"restaurant_pos/internal/repositories"
	"restaurant_pos/internal/router"
	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	utils.InitLogger(cfg.LogLevel, cfg.GoEnv == "development")
	utils.SetJWTSecret(cfg.JWTSecret)

	if err := run(cfg); err != nil {
		utils.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	pricing, err := cfg.Rules.Pricing()
	if err != nil {
		return err
	}

	var db *sql.DB
	if cfg.Backend == "postgres" {
		db, err = database.InitDB(ctx, cfg.ConnString(), cfg.DBSchema)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	transport, err := newTransport(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer transport.Close()

	deps := services.WorkspaceDeps{
		Bus:              events.NewBus(transport),
		Clock:            clock,
		SettleDelay:      cfg.SettleDelay,
		ReservationGuard: cfg.Rules.ReservationGuard,
		Pricing:          pricing,
		Linker:           services.NewTemplatePaymentLinker(cfg.PaymentURLTemplate),
	}
	if db != nil {
		deps.DraftRepo = repositories.NewDraftItemRepository(db, transport, cfg.Rules.ReservationGuard)
		deps.TableRepo = repositories.NewTableRepository(db, transport)
		deps.ReservationRepo = repositories.NewReservationRepository(db, transport)
		deps.OrderRepo = repositories.NewOrderRepository(db, transport, cfg.Rules.ReservationGuard)
		deps.CouponRepo = repositories.NewCouponRepository(db)
		deps.VariantRepo = repositories.NewVariantRepository(db)
		deps.SettingRepo = repositories.NewSettingRepository(db)
	} else {
		store := repositories.NewMemoryStore(transport, cfg.Rules.ReservationGuard)
		seedDemoData(store, clock.Now().In(cfg.Location))
		deps.DraftRepo = store.DraftItems()
		deps.TableRepo = store.Tables()
		deps.ReservationRepo = store.Reservations()
		deps.OrderRepo = store.Orders()
		deps.CouponRepo = store.Coupons()
		deps.VariantRepo = store.Variants()
		deps.SettingRepo = store.Settings()
		utils.LogInfo("Using in-memory backend with demo data")
	}

	go func() {
		if err := deps.Bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			utils.LogError(err, "Event bus stopped")
		}
	}()

	manager := services.NewWorkspaceManager(ctx, deps)
	scheduler, err := services.StartResyncScheduler(manager, cfg.ResyncInterval, cfg.Location, clock)
	if err != nil {
		return err
	}

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), utils.GinLogger(), router.CORS(cfg.CORSAllowedOrigins))
	live := router.Setup(engine, router.Dependencies{
		Workspace:      deps,
		Manager:        manager,
		SlotRules:      cfg.Rules.Slots,
		Clock:          clock,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{
			"port":      cfg.Port,
			"backend":   cfg.Backend,
			"transport": cfg.EventTransport,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		utils.LogInfo("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	live.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "HTTP server shutdown failed")
	}
	if err := scheduler.Shutdown(); err != nil {
		utils.LogError(err, "Scheduler shutdown failed")
	}
	manager.Shutdown(shutdownCtx)
	utils.LogInfo("Server stopped")
	return nil
}

// newTransport connects the configured event transport.
func newTransport(ctx context.Context, cfg *config.Config, db *sql.DB) (events.Transport, error) {
	switch cfg.EventTransport {
	case "postgres":
		if db == nil {
			utils.LogWarn(nil, "Postgres event transport needs the postgres backend, using in-memory transport")
			return events.NewMemoryTransport(), nil
		}
		return events.NewPostgresTransport(db, cfg.ConnString()), nil
	case "redis":
		t := events.NewRedisTransport(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := t.Ping(pingCtx); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return t, nil
	case "amqp":
		return events.NewAMQPTransport(cfg.AMQPURL)
	default:
		return events.NewMemoryTransport(), nil
	}
}
