package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/auth"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/cache"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/client"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/consumer"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/httpapi"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/pricing"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/rpcserver"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	store := cache.NewRedisStore(redisClient, cfg.Redis.KeyPrefix, cfg.CartTTL())

	productClient := client.NewProductClient(cfg.Product)
	log.Printf("Product service client configured for %s", cfg.Product.BaseURL)

	inventoryClient := client.NewInventoryClient(cfg.Inventory)
	log.Printf("Inventory service client configured for %s", cfg.Inventory.BaseURL)

	calculator := pricing.NewCalculator(cfg.Pricing)
	cartService := service.NewCartService(store, productClient, inventoryClient, calculator, cfg.Cart)

	verifier := auth.NewVerifier(cfg.JWT)
	handler := httpapi.NewCartHandler(cartService)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: httpapi.NewRouter(handler, verifier, cfg),
	}
	rpcServer := &http.Server{
		Addr:    ":" + cfg.Server.RPCPort,
		Handler: rpcserver.NewServer(cartService).Router(),
	}

	go func() {
		log.Printf("Cart service HTTP API listening on port %s", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	go func() {
		log.Printf("Cart service RPC surface listening on port %s", cfg.Server.RPCPort)
		if err := rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("RPC server failed: %v", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	orderConsumer := consumer.NewConsumer(store, cfg.Kafka.Brokers, cfg.Kafka.OrderCompletedTopic, cfg.Kafka.GroupID)
	go func() {
		log.Printf("Order event consumer started (topic %s)", cfg.Kafka.OrderCompletedTopic)
		orderConsumer.Run(consumerCtx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down cart service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("RPC server shutdown: %v", err)
	}

	stopConsumer()
	orderConsumer.Close()

	log.Println("Cart service stopped")
}
