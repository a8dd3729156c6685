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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lexrag-backend/auth"
	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/handlers"
	"github.com/lexrag-backend/metrics"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
	"github.com/lexrag-backend/services/impl"
	"github.com/lexrag-backend/services/verifier"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database connection
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schema
	if err := db.AutoMigrate(
		&models.Document{},
		&models.AuditRecord{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize KV store
	kv, err := impl.NewKVStore(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to KV store:", err)
	}

	// Initialize external clients
	embedder := impl.NewEmbeddingClient(&cfg.Embedding)
	vectorStore := impl.NewVectorStoreClient(&cfg.VectorStore)
	llm := impl.NewLLMClient(&cfg.LLM)
	ocr := impl.NewOCRClient(&cfg.OCR)

	// Ensure the vector collection exists
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := vectorStore.CreateCollection(initCtx, embedder.Dim(), false); err != nil {
		log.Printf("Warning: vector collection init failed, continuing: %v", err)
	}
	cancelInit()

	// Initialize core services
	parser := impl.NewParser()
	chunker := impl.NewChunker(&cfg.Chunking)
	retriever := impl.NewRetriever(embedder, vectorStore, kv, &cfg.Retrieval, &cfg.Cache)
	anonymizer := impl.NewAnonymizer(impl.NewPIIDetector(), kv, &cfg.PII)
	documentService := impl.NewDocumentService(db)

	vrf, err := verifier.New(embedder, &cfg.Verifier)
	if err != nil {
		log.Fatal("Failed to initialize verifier:", err)
	}

	analyzeService := impl.NewAnalyzeService(
		documentService, retriever, anonymizer, llm, vrf, &cfg.Embedding, &cfg.Retrieval)
	indexerService := impl.NewIndexerService(
		documentService, parser, chunker, embedder, vectorStore, retriever, ocr, &cfg.OCR)

	// Initialize handlers
	ragHandlers := handlers.NewRAGHandlers(
		analyzeService, indexerService, documentService, retriever, kv, &cfg.Server, &cfg.Cache)

	// Setup router
	router := setupRouter(ragHandlers, cfg)

	// Export KV pool gauges alongside request metrics
	go exportPoolStats(kv)

	// Start server
	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Legal RAG server starting on %s", cfg.GetServerAddress())
		log.Printf("Vector store: %s (collection %s)", cfg.VectorStore.BaseURL, cfg.VectorStore.Collection)
		log.Printf("Embedding model: %s (dim %d)", cfg.Embedding.ModelVersion, cfg.Embedding.Dim)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	return db, nil
}

func setupRouter(ragHandlers *handlers.RAGHandlers, cfg *config.Config) *gin.Engine {
	// Set gin mode based on environment
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(handlers.MetricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Auth.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Unauthenticated endpoints
	router.GET("/v1/health", ragHandlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwtValidator := auth.NewJWTValidator(cfg.Auth.JWTSecret)
	rateLimiter := handlers.NewRateLimiter(&cfg.RateLimit)

	// API v1 routes
	v1 := router.Group("/v1")
	v1.Use(handlers.AuthMiddleware(jwtValidator))
	{
		v1.POST("/index", rateLimiter.Middleware(), ragHandlers.Index)
		v1.POST("/analyze", rateLimiter.Middleware(), ragHandlers.Analyze)
		v1.GET("/history/:id", ragHandlers.History)
		v1.DELETE("/documents/:id", ragHandlers.DeleteDocument)
	}

	// Admin routes
	admin := router.Group("/admin")
	admin.Use(handlers.AuthMiddleware(jwtValidator), handlers.AdminMiddleware())
	{
		admin.POST("/cache/clear", ragHandlers.ClearCache)
		admin.POST("/cache/invalidate/:id", ragHandlers.InvalidateDocumentCache)
	}

	return router
}

func exportPoolStats(kv services.KVStore) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := kv.PoolStats()
		metrics.KVPoolTotalConns.Set(float64(stats.TotalConns))
		metrics.KVPoolIdleConns.Set(float64(stats.IdleConns))
	}
}
