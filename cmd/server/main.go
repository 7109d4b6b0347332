package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/campuspool/campuspool/internal/config"
	"github.com/campuspool/campuspool/internal/database"
	"github.com/campuspool/campuspool/internal/handler"
	appmw "github.com/campuspool/campuspool/internal/middleware"
	"github.com/campuspool/campuspool/internal/notify"
	"github.com/campuspool/campuspool/internal/queue"
	"github.com/campuspool/campuspool/internal/repository"
	"github.com/campuspool/campuspool/internal/router"
	"github.com/campuspool/campuspool/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(database.Config{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		PingTimeout:     cfg.DBPingTimeout,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and login codes disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	rides := repository.NewRideRepo(db)
	bookings := repository.NewBookingRepo(db)
	notifications := repository.NewNotificationRepo(db)
	loginOTP := repository.NewLoginOTPRepo(rdb)

	deliveryLog := os.Getenv("NOTIFY_DELIVERY_LOG")
	if deliveryLog == "" {
		deliveryLog = "logs/deliveries.log"
	}
	transport, err := notify.NewFileTransport(deliveryLog)
	if err != nil {
		log.Fatalf("open delivery log: %v", err)
	}

	nq := notify.NewQueue(notifications)
	dispatcher := notify.NewDispatcher(nq, transport, transport,
		cfg.DispatchInterval, cfg.DispatchBatch, cfg.ProcessingLease)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)
	go func() {
		if err := queue.StartEventConsumer(nq); err != nil {
			log.Printf("event consumer stopped: %v", err)
		}
	}()

	bookingSvc := service.NewBookingService(db, rides, bookings, users, cfg.TripOTPDigits)

	authH := handler.NewAuthHandler(cfg, users, tokens, loginOTP, nq)
	rideH := handler.NewRideHandler(rides, bookings, users)
	bookingH := handler.NewBookingHandler(bookingSvc, bookings)
	adminH := handler.NewAdminHandler(nq, dispatcher, users, cfg.DeadLetterMaxAge)

	e := echo.New()
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	codeLimiter := appmw.NewTokenBucket(config.LoadLoginCodeRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, codeLimiter)
	router.RegisterRides(e, rideH, cfg.JWTSecret)
	router.RegisterBookings(e, bookingH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
