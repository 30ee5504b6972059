package main

import (
	"log"
	"time"

	"mcq-service/internal/config"
	"mcq-service/internal/db"
	"mcq-service/internal/event"
	"mcq-service/internal/handlers"
	"mcq-service/internal/llm"
	"mcq-service/internal/quiz"
	"mcq-service/internal/repository"
	"mcq-service/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	cfg := config.Load()

	db.InitMongo(cfg.MongoDB.URI)
	defer db.Disconnect()
	database := db.Client.Database(cfg.MongoDB.Database)

	// RabbitMQ event publisher
	var publisher *event.EventPublisher
	if cfg.RabbitMQ.URI != "" && cfg.RabbitMQ.Exchange != "" {
		var err error
		publisher, err = event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
	} else {
		log.Println("RabbitMQ not configured, completion events will not be published")
	}

	// LLM-backed question and feedback sources
	llmClient := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	machine := quiz.NewMachine(llm.NewQuestionSource(llmClient), llm.NewFeedbackSource(llmClient))

	// Repositories, service, handlers
	sessionRepo := repository.NewSessionRepository(database)
	completedRepo := repository.NewCompletedQuizRepository(database)

	var completionPublisher service.CompletionPublisher
	if publisher != nil {
		completionPublisher = publisher
	}
	sessionService := service.NewSessionService(sessionRepo, completedRepo, machine, completionPublisher)

	quizHandler := handlers.NewQuizHandler(sessionService)
	statsHandler := handlers.NewStatsHandler(sessionService)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", quizHandler.HealthCheck)

		quizRoutes := api.Group("/quiz")
		{
			quizRoutes.POST("/mcqs", quizHandler.StartQuiz)
			quizRoutes.POST("/answer", quizHandler.SubmitAnswer)
			quizRoutes.GET("/status/:session_id", quizHandler.GetStatus)
			quizRoutes.POST("/end/:session_id", quizHandler.EndQuiz)
			quizRoutes.DELETE("/end/:session_id", quizHandler.EndQuiz)
			quizRoutes.GET("/stats", statsHandler.GetStats)
			quizRoutes.GET("/completed/:student_id", statsHandler.GetCompletedQuizzes)
		}
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("MCQ service listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
