package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	prod.Start(ctx)

	userRepo := &users.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	orderSvc := &orders.Service{
		Store:       &orders.Repo{DB: db},
		Publisher:   prod,
		Redis:       rdb,
		Releaser:    &orders.ReservationRepo{DB: db},
		ServiceName: cfg.ServiceName,
	}

	if cfg.AdminAPIKey == "" {
		log.Println("ADMIN_API_KEY not set, admin routes disabled")
	}

	router := httpx.NewRouter(cfg.CORSOrigins)
	api := &httpx.API{
		Catalog: &httpx.CatalogHandler{Catalog: catalogRepo, Redis: rdb},
		Auth:    &httpx.AuthHandler{Auth: &auth.Service{Users: userRepo, Tokens: tokens}, Users: userRepo},
		Cart:    &httpx.CartHandler{Cart: &cart.Service{Store: &cart.Repo{DB: db}}},
		Orders:  &httpx.OrdersHandler{Orders: orderSvc},
		Admin:   &httpx.AdminHandler{Orders: orderSvc, Catalog: catalogRepo, APIKey: cfg.AdminAPIKey},
		Tokens:  tokens,
	}
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events
	prod.WaitClosed()
}
