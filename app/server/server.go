package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"rapidly/app/agent"
	"rapidly/app/api"
	"rapidly/model"
	"rapidly/store"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr, envDuration("PG_QUERY_TIMEOUT"))
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	embedder := model.NewOpenAIEmbedder(
		os.Getenv("EMBEDDING_URL"),
		os.Getenv("EMBEDDING_API_KEY"),
		os.Getenv("EMBEDDING_MODEL"),
		envDuration("EMBED_TIMEOUT"),
	)
	answerAgent := agent.New(
		os.Getenv("LLM_URL"),
		os.Getenv("LLM_MODEL"),
		envDuration("LLM_TIMEOUT"),
	)
	searchConfig := api.SearchConfigFromEnv()

	var (
		app             = fiber.New(config)
		checkHandler    = api.NewCheckHandler()
		searchHandler   = api.NewSearchHandler(pool, embedder, searchConfig)
		answerHandler   = api.NewAnswerHandler(answerAgent, envDuration("ANSWER_IDLE_TIMEOUT"))
		requestHandler  = api.NewRequestHandler(pool, embedder, answerAgent, searchConfig)
		documentHandler = api.NewDocumentHandler(pool, embedder, os.Getenv("UPLOAD_DIR"))
		check           = app.Group("/check")
		apiv1           = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/search", searchHandler.HandleSearch)
	apiv1.Get("/answer", answerHandler.HandleAnswer)
	apiv1.Post("/request", requestHandler.HandleRequest)
	apiv1.Post("/documents", documentHandler.HandleIngest)
	apiv1.Get("/documents/:id", documentHandler.HandleGetDocument)
	apiv1.Post("/upload", documentHandler.HandleUpload)

	err = app.Listen(s.listenAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}
