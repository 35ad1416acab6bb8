package main

import (
	"alcyxob/coach-ai/internal/api"
	"alcyxob/coach-ai/internal/config"
	"alcyxob/coach-ai/internal/llm"
	"alcyxob/coach-ai/internal/repository/mongo"
	"alcyxob/coach-ai/internal/service"
	"alcyxob/coach-ai/internal/worker"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// @title Coach AI API
// @version 1.0
// @description AI workout program generation: synchronous pipeline runs and queued, resumable streamed jobs.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Coach AI Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureExerciseIndexes(ctx, appDB.Collection("exercises"))
		mongo.EnsureProgramIndexes(ctx, appDB.Collection("generated_programs"))
		mongo.EnsureAiJobIndexes(ctx, appDB.Collection("ai_jobs"), appDB.Collection("ai_job_chunks"))
		mongo.EnsureMessageIndexes(ctx, appDB.Collection("chat_messages"))
		log.Println("Index creation process completed.")
	}()

	// --- Redis / Queue ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	asynqRedis := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(asynqRedis)
	defer asynqClient.Close()

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	profileRepo := mongo.NewMongoProfileRepository(appDB)
	programRepo := mongo.NewMongoProgramRepository(appDB)
	jobRepo := mongo.NewMongoAiJobRepository(appDB)
	messageRepo := mongo.NewMongoMessageRepository(appDB)
	logRepo := mongo.NewMongoGenerationLogRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	llmClient := llm.NewClient(cfg.OpenAI)
	outbox := service.NewOutbox()
	defer outbox.Close()

	analyzer := service.NewProfileAnalyzer(llmClient)
	architect := service.NewProgramArchitect(llmClient)
	selector := service.NewExerciseSelector(llmClient)
	orchestrator := service.NewOrchestrator(
		analyzer, architect, selector,
		exerciseRepo, profileRepo, programRepo, logRepo,
		outbox, llmClient.Model(), cfg.Pipeline.MaxRetries,
	)

	ragService := service.NewRagService(llmClient, messageRepo, cfg.Pipeline.RagTimeout)
	jobService := service.NewJobService(jobRepo, asynqClient)
	chatService := service.NewChatService(
		llmClient, llmClient, orchestrator, ragService,
		jobRepo, messageRepo, exerciseRepo, programRepo,
		outbox, cfg.Pipeline.MaxToolRounds, cfg.Pipeline.RagLimit,
	)
	analyticsService := service.NewAnalyticsService(
		llmClient, ragService,
		jobRepo, messageRepo, programRepo, logRepo,
		outbox, cfg.Pipeline.MaxToolRounds, cfg.Pipeline.RagLimit,
	)

	// --- Worker Server ---
	asynqServer := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"ai": 10},
	})
	mux := asynq.NewServeMux()
	mux.Handle(service.TaskTypeChatProgram, worker.NewChatProgramWorker(chatService))
	mux.Handle(service.TaskTypeAnalytics, worker.NewAnalyticsWorker(analyticsService))

	go func() {
		if err := asynqServer.Run(mux); err != nil {
			log.Fatalf("FATAL: Could not run worker server: %v", err)
		}
	}()

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	limiter := api.NewRateLimiter(redisClient)
	api.SetupRoutes(router, &cfg, orchestrator, jobService, programRepo, limiter)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE endpoints hold the connection open
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	asynqServer.Shutdown()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
