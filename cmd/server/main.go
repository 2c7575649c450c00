package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixel-relay/config"
	"pixel-relay/internal/api"
	"pixel-relay/internal/broker"
	"pixel-relay/internal/credentials"
	"pixel-relay/internal/destination"
	"pixel-relay/internal/pipeline"
	"pixel-relay/internal/redisclient"
	"pixel-relay/internal/store"
	"pixel-relay/internal/util"
	"pixel-relay/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pixel-relay")

	tp, err := util.InitTracer("pixel-relay", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		cfg.Pipeline.ConfigCacheTTL, cfg.Pipeline.DedupMarkerTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	decryptor, err := credentials.NewAESDecryptor(cfg.Crypto.CredentialKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential decryptor: %v", err)
	}

	auditProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAudit)
	defer auditProducer.Close()
	log.Println("Kafka producer initialized")

	auditPublisher := broker.NewAuditPublisher(auditProducer)

	resolver := credentials.NewResolver(db, redisClient, decryptor)
	registry := destination.NewRegistry(
		destination.NewGA4Adapter(),
		destination.NewMetaAdapter(),
		destination.NewTikTokAdapter(),
	)
	sender := destination.NewSender(cfg.Pipeline.SendTimeout)

	pipe := pipeline.New(db, db, resolver, registry, sender,
		redisClient, auditPublisher, cfg.Pipeline.BatchConcurrency)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	ingestConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicIngest, cfg.Kafka.ConsumerGroup)
	ingestWorker := worker.NewIngestWorker(ingestConsumer, pipe)
	go func() {
		if err := ingestWorker.Start(workerCtx); err != nil {
			log.Printf("Ingest worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(pipe)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	ingestWorker.Stop()

	log.Println("Server exited")
}
