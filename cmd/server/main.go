package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/cache"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/router"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// stores groups the persistence the engine runs on.
type stores struct {
	seats        service.SeatStore
	reservations service.ReservationStore
	catalog      service.Catalog
	close        func()
}

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := config.NewLogger(cfg)

	st, err := openStores(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open stores")
	}
	defer st.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithTimeout(cfg.ReserveTimeout),
		service.WithCompensation(cfg.CompensationAttempts, cfg.CompensationBackoff),
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, service.WithReplayCache(cache.NewReplayCache(rdb, cfg.IdempotencyTTL)))
	} else {
		log.Warn("redis unavailable: rate limiting, response cache and replay cache disabled")
	}

	if cfg.EventsEnabled {
		opts = append(opts, service.WithEventPublisher(queue.NewPublisher(cfg.RabbitMQURL, log)))
		go func() {
			if err := queue.StartReservationConsumer(ctx, cfg.RabbitMQURL, cfg.BookingLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("reservation consumer stopped")
			}
		}()
	}

	coordinator := service.NewCoordinator(st.seats, log)
	inventory := service.NewInventory(st.seats, st.catalog, coordinator)
	ledger := service.NewLedger(st.reservations)
	svc := service.NewReservationService(inventory, ledger, st.catalog, opts...)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e)
	router.RegisterBooking(e, router.Booking{
		Handler:   handler.NewBookingHandler(svc, log),
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func openStores(cfg config.Config, log *logrus.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		seats := repository.NewMemorySeatStore()
		catalog := repository.NewMemoryCatalog()
		if cfg.SeedDemo {
			repository.SeedDemo(catalog, seats, time.Now().Add(48*time.Hour).Truncate(time.Hour))
			log.Info("seeded demo screening 1 with seats 1-50")
		}
		return stores{
			seats:        seats,
			reservations: repository.NewMemoryReservationStore(),
			catalog:      catalog,
			close:        func() {},
		}, nil
	}

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return stores{}, err
	}
	return stores{
		seats:        repository.NewSeatRepo(db),
		reservations: repository.NewReservationRepo(db),
		catalog:      repository.NewCatalogRepo(db),
		close:        func() { _ = db.Close() },
	}, nil
}
